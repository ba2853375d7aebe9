// Package app is the application scope: it owns the photo state and the
// currently opened comment thread, and forwards their changes to the UI.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/photodiary/server/internal/ai"
	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/observability"
	"github.com/photodiary/server/internal/services"
	"github.com/photodiary/server/internal/state"
)

// Broadcaster pushes messages to connected UI clients
type Broadcaster interface {
	BroadcastToTopic(topic string, msg services.WSMessage)
	BroadcastAll(msg services.WSMessage)
}

// Config wires the collaborators of an App
type Config struct {
	Generator     ai.Generator
	Images        state.ImagePreparer
	Broadcaster   Broadcaster
	Logger        *observability.Logger
	MaxImageBytes int64
	AutoComment   bool
	AITimeout     time.Duration
	Location      *time.Location
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToTopic(string, services.WSMessage) {}
func (nopBroadcaster) BroadcastAll(services.WSMessage)             {}

// App holds the UI session state. At most one comment thread is open.
type App struct {
	remote state.RemoteStore
	cfg    Config
	logger *observability.Logger
	photos *state.PhotoState

	mu     sync.Mutex
	thread *state.CommentThread
}

// New creates an App over remote. Call Start to perform the initial load.
func New(remote state.RemoteStore, cfg Config) *App {
	if cfg.Generator == nil {
		cfg.Generator = ai.Unavailable{}
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = nopBroadcaster{}
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNopLogger()
	}

	a := &App{
		remote: remote,
		cfg:    cfg,
		logger: cfg.Logger.WithField("component", "app"),
	}
	a.photos = state.NewPhotoState(remote, state.Options{
		Generator:     cfg.Generator,
		Images:        cfg.Images,
		Notifier:      a,
		Logger:        cfg.Logger,
		MaxImageBytes: cfg.MaxImageBytes,
		AutoComment:   cfg.AutoComment,
		AITimeout:     cfg.AITimeout,
		Location:      cfg.Location,
		OnAutoComment: a.autoCommentPosted,
	})
	a.photos.Subscribe(a.photosChanged)
	return a
}

// Photos returns the photo state
func (a *App) Photos() *state.PhotoState {
	return a.photos
}

// AIAvailable reports whether an AI collaborator is configured
func (a *App) AIAvailable() bool {
	return a.cfg.Generator.Available()
}

// Start performs the initial load. A failure leaves the state in Error and
// is returned for logging only.
func (a *App) Start(ctx context.Context) error {
	return a.photos.Refresh(ctx)
}

// Shutdown waits for background AI work to finish
func (a *App) Shutdown() {
	a.photos.Wait()
}

// Notify pushes a notice to every client
func (a *App) Notify(notice models.Notice) {
	a.cfg.Broadcaster.BroadcastAll(services.WSMessage{
		Type: services.WSTypeNotice,
		Payload: services.NoticePayload{
			Level:   notice.Level,
			Message: notice.Message,
			PhotoID: notice.PhotoID,
		},
	})
}

func (a *App) photosChanged(snap state.Snapshot) {
	a.cfg.Broadcaster.BroadcastToTopic(services.TopicPhotos, services.WSMessage{
		Type: services.WSTypePhotosChanged,
		Payload: services.PhotosChangedPayload{
			Status: string(snap.Status),
			Error:  snap.Error,
			Total:  len(snap.Photos),
		},
	})
}

func (a *App) threadChanged(photoID string, comments []state.LocalComment) {
	a.cfg.Broadcaster.BroadcastToTopic(services.TopicThread, services.WSMessage{
		Type:    services.WSTypeThreadChanged,
		Payload: services.ThreadChangedPayload{PhotoID: photoID, Comments: len(comments)},
	})
}

func (a *App) autoCommentPosted(comment models.Comment) {
	if t := a.Thread(); t != nil {
		t.AddRemote(comment)
	}
}

// OpenPhoto discards any open thread, opens one for photoID and loads its
// comments. The thread stays open if loading fails so it can be retried.
func (a *App) OpenPhoto(ctx context.Context, photoID string) (*state.CommentThread, error) {
	photo, ok := a.photos.Photo(photoID)
	if !ok {
		return nil, fmt.Errorf("open photo %s: %w", photoID, models.ErrPhotoNotFound)
	}

	thread := state.NewCommentThread(a.remote, photo, state.ThreadOptions{
		Generator:     a.cfg.Generator,
		Images:        a.cfg.Images,
		Notifier:      a,
		Logger:        a.cfg.Logger,
		MaxImageBytes: a.cfg.MaxImageBytes,
		OnConfirmed:   a.photos.ApplyCommentAdded,
		OnChange:      a.threadChanged,
	})

	a.mu.Lock()
	a.thread = thread
	a.mu.Unlock()

	return thread, thread.Load(ctx)
}

// ClosePhoto discards the open thread, if any
func (a *App) ClosePhoto() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.thread = nil
}

// Thread returns the open thread or nil
func (a *App) Thread() *state.CommentThread {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.thread
}

// RemovePhoto deletes a photo and closes its thread if it is open
func (a *App) RemovePhoto(ctx context.Context, photoID string) error {
	if err := a.photos.Remove(ctx, photoID); err != nil {
		return err
	}

	a.mu.Lock()
	if a.thread != nil && a.thread.PhotoID() == photoID {
		a.thread = nil
	}
	a.mu.Unlock()
	return nil
}
