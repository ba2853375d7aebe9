package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/photodiary/server/internal/ai"
	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/observability"
)

// Status of the photo collection
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusError   Status = "error"
)

const defaultAITimeout = 60 * time.Second

// Snapshot is a value copy of the collection and its status
type Snapshot struct {
	Status Status         `json:"status"`
	Error  string         `json:"error,omitempty"`
	Photos []models.Photo `json:"photos"`
}

// View is a filtered, date-grouped projection of a Snapshot
type View struct {
	Status  Status      `json:"status"`
	Error   string      `json:"error,omitempty"`
	Groups  []DateGroup `json:"groups"`
	Matches int         `json:"matches"`
	Total   int         `json:"total"`
}

// Options configures a PhotoState
type Options struct {
	Generator     ai.Generator
	Images        ImagePreparer
	Notifier      Notifier
	Logger        *observability.Logger
	MaxImageBytes int64
	AutoComment   bool
	AITimeout     time.Duration
	Location      *time.Location

	// OnAutoComment is called after an automatic AI comment has been stored
	OnAutoComment func(models.Comment)
}

// PhotoState owns the in-memory photo collection. All methods are safe for
// concurrent use; mutations on different photo ids never touch each other's
// entries.
type PhotoState struct {
	remote RemoteStore
	opts   Options
	logger *observability.Logger

	mu     sync.Mutex
	status Status
	errMsg string
	photos []models.Photo

	subMu       sync.Mutex
	subscribers map[int]func(Snapshot)
	nextSub     int

	// serializes publish so subscribers see snapshots in order
	pubMu sync.Mutex

	background sync.WaitGroup
}

// NewPhotoState creates an Idle PhotoState over remote
func NewPhotoState(remote RemoteStore, opts Options) *PhotoState {
	if opts.Generator == nil {
		opts.Generator = ai.Unavailable{}
	}
	if opts.Images == nil {
		opts.Images = passthroughImages{}
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(models.Notice) {})
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewNopLogger()
	}
	if opts.MaxImageBytes <= 0 {
		opts.MaxImageBytes = models.MaxImageBytes
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = defaultAITimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &PhotoState{
		remote:      remote,
		opts:        opts,
		logger:      opts.Logger.WithField("component", "photo_state"),
		status:      StatusIdle,
		subscribers: make(map[int]func(Snapshot)),
	}
}

// Snapshot returns a copy of the current state
func (s *PhotoState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *PhotoState) snapshotLocked() Snapshot {
	photos := make([]models.Photo, len(s.photos))
	for i, p := range s.photos {
		photos[i] = p.Clone()
	}
	return Snapshot{Status: s.status, Error: s.errMsg, Photos: photos}
}

// View filters and groups the current collection. It never calls the remote store.
func (s *PhotoState) View(term string, favoritesOnly bool) View {
	snap := s.Snapshot()
	matched := FilterPhotos(snap.Photos, term, favoritesOnly, s.opts.Location)
	groups := GroupByDate(matched, s.opts.Location)
	if groups == nil {
		groups = []DateGroup{}
	}
	return View{
		Status:  snap.Status,
		Error:   snap.Error,
		Groups:  groups,
		Matches: len(matched),
		Total:   len(snap.Photos),
	}
}

// Subscribe registers fn to receive every state change. The returned func
// removes the subscription. fn is never called with internal locks held.
func (s *PhotoState) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *PhotoState) publish() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	snap := s.Snapshot()
	s.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (s *PhotoState) indexLocked(photoID string) int {
	return slices.IndexFunc(s.photos, func(p models.Photo) bool { return p.ID == photoID })
}

// Photo returns a copy of the photo with the given id
func (s *PhotoState) Photo(photoID string) (models.Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(photoID)
	if i < 0 {
		return models.Photo{}, false
	}
	return s.photos[i].Clone(), true
}

// Refresh reloads the whole collection. Photos stay visible while loading; a
// failure replaces them with the fixed load error message.
func (s *PhotoState) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.status = StatusLoading
	s.errMsg = ""
	s.mu.Unlock()
	s.publish()

	photos, err := s.remote.ListPhotos(ctx)

	s.mu.Lock()
	if err != nil {
		s.status = StatusError
		s.errMsg = MsgLoadFailed
		s.photos = nil
	} else {
		s.status = StatusLoaded
		s.photos = photos
	}
	s.mu.Unlock()
	s.publish()

	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to load photos")
		return err
	}
	return nil
}

// Upload validates in, creates the photo remotely and then reloads the
// collection so the server timestamp decides its position. When enabled, an
// AI comment is generated in the background afterwards.
func (s *PhotoState) Upload(ctx context.Context, in models.NewPhotoInput) (*models.Photo, error) {
	if err := in.Validate(s.opts.MaxImageBytes); err != nil {
		return nil, err
	}

	photo, err := s.remote.CreatePhoto(ctx, in)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Upload failed")
		s.opts.Notifier.Notify(errorNotice(MsgUploadFailed, ""))
		return nil, err
	}

	if err := s.Refresh(ctx); err != nil {
		s.logger.WithContext(ctx).WithField("photo_id", photo.ID).Warn("Photo uploaded but reload failed")
	}

	s.scheduleAutoComment(ctx, *photo, in)
	return photo, nil
}

func (s *PhotoState) scheduleAutoComment(ctx context.Context, photo models.Photo, in models.NewPhotoInput) {
	if !s.opts.AutoComment || !s.opts.Generator.Available() {
		return
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.AITimeout)
		defer cancel()

		if err := s.autoComment(ctx, photo.ID, in); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("photo_id", photo.ID).Warn("Automatic AI comment failed")
		}
	}()
}

func (s *PhotoState) autoComment(ctx context.Context, photoID string, in models.NewPhotoInput) error {
	data, mimeType := s.opts.Images.Prepare(in.Image, in.Filename)
	text, err := s.opts.Generator.Comment(ctx, ai.Image{Data: data, MIMEType: mimeType})
	if err != nil {
		return err
	}
	text, err = models.ValidateCommentText(text)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrAIUnavailable, err)
	}

	comment, err := s.remote.AddComment(ctx, photoID, text, ai.RandomAuthor(), false)
	if err != nil {
		return err
	}
	s.ApplyCommentAdded(*comment)
	if s.opts.OnAutoComment != nil {
		s.opts.OnAutoComment(*comment)
	}
	s.logger.WithField("photo_id", photoID).WithField("author", comment.Username).Debug("Automatic AI comment posted")
	return nil
}

// Wait blocks until every background AI task has finished
func (s *PhotoState) Wait() {
	s.background.Wait()
}

// Remove deletes the photo remotely and, on success, drops it from the
// collection by id without reloading.
func (s *PhotoState) Remove(ctx context.Context, photoID string) error {
	photo, ok := s.Photo(photoID)
	if !ok {
		return fmt.Errorf("remove photo %s: %w", photoID, models.ErrPhotoNotFound)
	}

	if err := s.remote.DeletePhoto(ctx, photo.ID, photo.ImageURL); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("photo_id", photoID).Error("Failed to delete photo")
		s.opts.Notifier.Notify(errorNotice(MsgDeleteFailed, photoID))
		return err
	}

	s.mu.Lock()
	s.photos = slices.DeleteFunc(s.photos, func(p models.Photo) bool { return p.ID == photoID })
	s.mu.Unlock()
	s.publish()
	return nil
}

// ToggleFavorite flips the flag locally at once, then persists it. If the
// remote write fails the flag is put back to its prior value. It returns the
// flag value now held locally.
func (s *PhotoState) ToggleFavorite(ctx context.Context, photoID string) (bool, error) {
	s.mu.Lock()
	i := s.indexLocked(photoID)
	if i < 0 {
		s.mu.Unlock()
		return false, fmt.Errorf("toggle favorite %s: %w", photoID, models.ErrPhotoNotFound)
	}
	prior := s.photos[i].IsFavorite
	next := !prior
	s.photos[i].IsFavorite = next
	s.mu.Unlock()
	s.publish()

	err := s.remote.SetFavorite(ctx, photoID, next)
	if err == nil {
		return next, nil
	}

	s.mu.Lock()
	if i := s.indexLocked(photoID); i >= 0 {
		s.photos[i].IsFavorite = prior
	}
	s.mu.Unlock()
	s.publish()

	s.logger.WithContext(ctx).WithError(err).WithField("photo_id", photoID).Error("Failed to update favorite")
	s.opts.Notifier.Notify(errorNotice(MsgFavoriteFailed, photoID))
	return prior, err
}

// ApplyCommentAdded raises the local comment count to the count the store
// reported when comment was added. A refresh that already saw the comment
// leaves nothing to do.
func (s *PhotoState) ApplyCommentAdded(comment models.Comment) {
	s.mu.Lock()
	i := s.indexLocked(comment.PhotoID)
	changed := i >= 0 && comment.ParentCount > s.photos[i].CommentCount
	if changed {
		s.photos[i].CommentCount = comment.ParentCount
	}
	s.mu.Unlock()
	if changed {
		s.publish()
	}
}

// Caption asks the AI collaborator for a description and tags for an image
// that has not been uploaded yet.
func (s *PhotoState) Caption(ctx context.Context, data []byte, filename string) (*ai.Caption, error) {
	if len(data) == 0 {
		return nil, models.NewValidationError("file", "Please select a photo to upload.")
	}
	if !s.opts.Generator.Available() {
		return nil, models.ErrAIUnavailable
	}

	prepared, mimeType := s.opts.Images.Prepare(data, filename)
	caption, err := s.opts.Generator.Caption(ctx, ai.Image{Data: prepared, MIMEType: mimeType})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("AI caption failed")
		if !errors.Is(err, models.ErrAIUnavailable) {
			err = fmt.Errorf("%w: %w", models.ErrAIUnavailable, err)
		}
		return nil, err
	}

	text, err := ai.CleanText(caption.Text)
	if err != nil {
		return nil, err
	}
	return &ai.Caption{Text: text, Tags: ai.SanitizeTags(caption.Tags...)}, nil
}
