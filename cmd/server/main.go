package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/photodiary/server/internal/ai"
	"github.com/photodiary/server/internal/app"
	"github.com/photodiary/server/internal/config"
	"github.com/photodiary/server/internal/gateway"
	"github.com/photodiary/server/internal/handlers"
	"github.com/photodiary/server/internal/observability"
	"github.com/photodiary/server/internal/repository"
	"github.com/photodiary/server/internal/repository/migrations"
	"github.com/photodiary/server/internal/services"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "photodiary",
	Short: "Photo diary server",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			os.Setenv("CONFIG_PATH", configPath)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

var migrateStatus bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		db, dialect, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		if !migrateStatus {
			if err := migrations.MigrateUp(db, dialect); err != nil {
				return err
			}
		}

		status, err := migrations.CheckStatus(db, dialect)
		if err != nil {
			return err
		}
		fmt.Printf("Schema version: %d (latest %d, dirty %t)\n", status.Current, status.Latest, status.Dirty)
		if !status.UpToDate() {
			fmt.Println("Migrations pending")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (JSON, or TOML with a .toml extension)")
	migrateCmd.Flags().BoolVar(&migrateStatus, "status", false, "only report the schema version")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// openDB opens the configured database without migrating it
func openDB(cfg *config.Config) (*sql.DB, migrations.Dialect, error) {
	if cfg.UsePostgres() {
		db, err := repository.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("opening PostgreSQL database: %w", err)
		}
		return db, migrations.Postgres, nil
	}
	db, err := repository.OpenSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, "", fmt.Errorf("opening SQLite database: %w", err)
	}
	return db, migrations.SQLite, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (services.BlobStore, error) {
	s := cfg.Storage
	switch s.Type {
	case "s3":
		return services.NewS3BlobStore(ctx, services.S3Options{
			Bucket:          s.S3Bucket,
			Region:          s.S3Region,
			Endpoint:        s.S3Endpoint,
			Prefix:          s.S3Prefix,
			PublicBaseURL:   s.PublicBaseURL,
			AccessKeyID:     s.S3AccessKeyID,
			SecretAccessKey: s.S3SecretAccessKey,
		})
	case "memory":
		return services.NewMemoryBlobStore(s.PublicBaseURL), nil
	default:
		return services.NewFileBlobStore(s.BasePath, s.PublicBaseURL, s.AllowedExtensions, s.MaxFileSizeBytes())
	}
}

func newGenerator(ctx context.Context, cfg *config.Config, metrics *observability.DiaryMetrics, logger *observability.Logger) ai.Generator {
	if !cfg.AI.Enabled() {
		logger.Info("No AI API key configured, AI features disabled")
		return ai.Unavailable{}
	}
	gen, err := ai.NewGeminiGenerator(ctx, cfg.AI.APIKey, cfg.AI.Model, metrics, logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to create AI client, AI features disabled")
		return ai.Unavailable{}
	}
	return gen
}

func serve() error {
	logger := observability.GetLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.Initialize(ctx, observability.TelemetryConfig{
		ServiceName:    "photodiary",
		ServiceVersion: handlers.Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			observability.Errorf("Telemetry shutdown failed: %v", err)
		}
	}()

	diaryMetrics, err := observability.NewDiaryMetrics()
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		return fmt.Errorf("creating HTTP metrics: %w", err)
	}

	// Document store
	clock := repository.NewClock(nil)
	var (
		db     *sql.DB
		photos repository.PhotoRepo
	)
	if cfg.UsePostgres() {
		observability.Info("Using PostgreSQL database")
		db, err = repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("initializing PostgreSQL database: %w", err)
		}
		photos = repository.NewPhotoRepositoryPostgres(db, clock)
	} else {
		observability.Infof("Using SQLite database at %s", cfg.DatabasePath)
		db, err = repository.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("initializing SQLite database: %w", err)
		}
		photos = repository.NewPhotoRepository(db, clock)
	}
	defer db.Close()

	// Blob store
	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing %s blob store: %w", cfg.Storage.Type, err)
	}
	mediaDir := ""
	if fs, ok := blobs.(*services.FileBlobStore); ok {
		mediaDir = fs.BasePath()
	}

	gw := gateway.New(photos, blobs, gateway.Options{
		Collection: cfg.Storage.Collection,
		Metrics:    diaryMetrics,
		Logger:     logger,
	})

	hub := services.NewWebSocketHub(logger)
	hubDone := make(chan struct{})
	hubCtx, stopHub := context.WithCancel(context.Background())
	go func() {
		defer close(hubDone)
		hub.Run(hubCtx)
	}()

	diary := app.New(gw, app.Config{
		Generator:     newGenerator(ctx, cfg, diaryMetrics, logger),
		Images:        services.NewImageService(cfg.AI.MaxImageDimension),
		Broadcaster:   hub,
		Logger:        logger,
		MaxImageBytes: cfg.Storage.MaxFileSizeBytes(),
		AutoComment:   cfg.AI.AutoComment,
		AITimeout:     time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		Location:      time.Local,
	})
	if err := diary.Start(ctx); err != nil {
		observability.WithField("error", err.Error()).Warn("Initial photo load failed")
	}

	srv := &http.Server{
		Addr: cfg.ServerAddress,
		Handler: handlers.NewRouter(handlers.RouterConfig{
			App:            diary,
			Hub:            hub,
			Ping:           db.PingContext,
			MaxUploadBytes: cfg.Storage.MaxFileSizeBytes(),
			MediaDir:       mediaDir,
			HTTPMetrics:    httpMetrics,
			Logger:         logger,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Longer for uploads and AI calls
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		observability.Infof("Photo diary server starting on %s", cfg.ServerAddress)
		observability.Infof("Blob store: %s, max file size: %dMB", cfg.Storage.Type, cfg.Storage.MaxFileSizeMB)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stopHub()
			<-hubDone
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	observability.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		observability.Errorf("Server forced to shutdown: %v", err)
	}
	diary.Shutdown()
	stopHub()
	<-hubDone

	observability.Info("Server stopped")
	return nil
}
