package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string    `json:"serverAddress" toml:"server_address"`
	DatabasePath  string    `json:"databasePath" toml:"database_path"`
	DatabaseURL   string    `json:"databaseUrl" toml:"database_url"`
	Storage       Storage   `json:"storage" toml:"storage"`
	AI            AI        `json:"ai" toml:"ai"`
	Telemetry     Telemetry `json:"telemetry" toml:"telemetry"`
}

// Storage configuration. Type selects the blob store backend; the other
// fields apply to the backends noted beside them.
type Storage struct {
	Type              string   `json:"type" toml:"type"` // "filesystem", "s3" or "memory"
	Collection        string   `json:"collection" toml:"collection"`
	PublicBaseURL     string   `json:"publicBaseUrl" toml:"public_base_url"`
	MaxFileSizeMB     int64    `json:"maxFileSizeMB" toml:"max_file_size_mb"`
	AllowedExtensions []string `json:"allowedExtensions" toml:"allowed_extensions"`

	BasePath string `json:"basePath" toml:"base_path"` // filesystem

	S3Bucket   string `json:"s3Bucket" toml:"s3_bucket"`     // s3
	S3Region   string `json:"s3Region" toml:"s3_region"`     // s3
	S3Endpoint string `json:"s3Endpoint" toml:"s3_endpoint"` // s3, optional (MinIO etc.)
	S3Prefix   string `json:"s3Prefix" toml:"s3_prefix"`     // s3, optional

	S3AccessKeyID     string `json:"s3AccessKeyId" toml:"s3_access_key_id"`         // s3, optional
	S3SecretAccessKey string `json:"s3SecretAccessKey" toml:"s3_secret_access_key"` // s3, optional
}

// MaxFileSizeBytes returns the upload limit in bytes
func (s Storage) MaxFileSizeBytes() int64 {
	return s.MaxFileSizeMB * 1024 * 1024
}

// AI configuration for the generative AI collaborator
type AI struct {
	APIKey            string `json:"apiKey" toml:"api_key"`
	Model             string `json:"model" toml:"model"`
	AutoComment       bool   `json:"autoComment" toml:"auto_comment"`
	TimeoutSeconds    int    `json:"timeoutSeconds" toml:"timeout_seconds"`
	MaxImageDimension int    `json:"maxImageDimension" toml:"max_image_dimension"`
}

// Enabled reports whether an API key is configured
func (a AI) Enabled() bool {
	return strings.TrimSpace(a.APIKey) != ""
}

// Telemetry configuration
type Telemetry struct {
	Enabled      bool   `json:"enabled" toml:"enabled"`
	OTLPEndpoint string `json:"otlpEndpoint" toml:"otlp_endpoint"`
	Environment  string `json:"environment" toml:"environment"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "photodiary.db",
		Storage: Storage{
			Type:          "filesystem",
			Collection:    "photos",
			PublicBaseURL: "/media",
			MaxFileSizeMB: 10,
			AllowedExtensions: []string{
				".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".heif",
			},
			BasePath: "./media",
		},
		AI: AI{
			Model:             "gemini-2.5-flash",
			AutoComment:       true,
			TimeoutSeconds:    60,
			MaxImageDimension: 1024,
		},
		Telemetry: Telemetry{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			Environment:  "development",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if err := readFile(configPath, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "filesystem" {
		if err := os.MkdirAll(cfg.Storage.BasePath, 0755); err != nil {
			return nil, err
		}
		absPath, err := filepath.Abs(cfg.Storage.BasePath)
		if err != nil {
			return nil, err
		}
		cfg.Storage.BasePath = absPath
	}

	return cfg, nil
}

// readFile decodes path into cfg. A missing file is not an error. Files
// ending in .toml are decoded as TOML, everything else as JSON.
func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decoding config %s: %w", path, err)
		}
		return nil
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decoding config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}

	// Storage
	if t := os.Getenv("STORAGE_TYPE"); t != "" {
		cfg.Storage.Type = strings.ToLower(t)
	}
	if basePath := os.Getenv("PHOTO_STORAGE_PATH"); basePath != "" {
		cfg.Storage.BasePath = basePath
	}
	if base := os.Getenv("PUBLIC_BASE_URL"); base != "" {
		cfg.Storage.PublicBaseURL = base
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		cfg.Storage.S3Bucket = bucket
	}
	if region := os.Getenv("S3_REGION"); region != "" {
		cfg.Storage.S3Region = region
	}
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		cfg.Storage.S3Endpoint = endpoint
	}
	if keyID := os.Getenv("S3_ACCESS_KEY_ID"); keyID != "" {
		cfg.Storage.S3AccessKeyID = keyID
		cfg.Storage.S3SecretAccessKey = os.Getenv("S3_SECRET_ACCESS_KEY")
	}

	// AI: GEMINI_API_KEY wins over the generic API_KEY
	if key := os.Getenv("API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if model := os.Getenv("AI_MODEL"); model != "" {
		cfg.AI.Model = model
	}
	if auto := os.Getenv("AI_AUTO_COMMENT"); auto != "" {
		cfg.AI.AutoComment = auto == "true" || auto == "1"
	}
	if timeout := os.Getenv("AI_TIMEOUT_SECONDS"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			cfg.AI.TimeoutSeconds = secs
		}
	}

	// Telemetry
	if enabled := os.Getenv("OTEL_ENABLED"); enabled != "" {
		cfg.Telemetry.Enabled = enabled == "true" || enabled == "1"
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Telemetry.OTLPEndpoint = endpoint
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Telemetry.Environment = env
	}
}

// Validate checks the storage backend selection and limits
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "filesystem":
		if strings.TrimSpace(c.Storage.BasePath) == "" {
			return fmt.Errorf("filesystem storage requires basePath to be set")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("s3 storage requires s3Bucket to be set")
		}
		if c.Storage.S3Region == "" {
			return fmt.Errorf("s3 storage requires s3Region to be set")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	if c.Storage.MaxFileSizeMB <= 0 {
		return fmt.Errorf("maxFileSizeMB must be positive")
	}
	if strings.TrimSpace(c.Storage.Collection) == "" {
		return fmt.Errorf("storage collection cannot be empty")
	}
	return nil
}
