package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/photodiary/server/internal/ai"
	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/observability"
)

// CommentStatus tracks an entry from optimistic insert to confirmation
type CommentStatus string

const (
	CommentPending   CommentStatus = "pending"
	CommentConfirmed CommentStatus = "confirmed"
	// CommentFailed marks a submit whose outcome is unknown, e.g. it was
	// cancelled before the store answered.
	CommentFailed CommentStatus = "failed"
)

// LocalComment is a comment as held by a thread
type LocalComment struct {
	models.Comment
	LocalID string        `json:"localId"`
	Status  CommentStatus `json:"status"`
}

// ThreadOptions configures a CommentThread
type ThreadOptions struct {
	Generator     ai.Generator
	Images        ImagePreparer
	Notifier      Notifier
	Logger        *observability.Logger
	MaxImageBytes int64

	// OnConfirmed is called with the stored comment once the store accepts it
	OnConfirmed func(comment models.Comment)
	// OnChange receives a copy of the list after every change
	OnChange func(photoID string, comments []LocalComment)
}

// CommentThread is the comment list of one opened photo
type CommentThread struct {
	remote RemoteStore
	photo  models.Photo
	opts   ThreadOptions
	logger *observability.Logger

	loads singleflight.Group

	mu       sync.Mutex
	loaded   bool
	comments []LocalComment
}

// NewCommentThread creates an empty, unloaded thread for photo
func NewCommentThread(remote RemoteStore, photo models.Photo, opts ThreadOptions) *CommentThread {
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
	return &CommentThread{
		remote: remote,
		photo:  photo.Clone(),
		opts:   opts,
		logger: opts.Logger.WithField("component", "comment_thread").WithField("photo_id", photo.ID),
	}
}

// PhotoID returns the id of the photo this thread belongs to
func (t *CommentThread) PhotoID() string {
	return t.photo.ID
}

// Comments returns a copy of the list
func (t *CommentThread) Comments() []LocalComment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.comments)
}

// Loaded reports whether the list has been fetched
func (t *CommentThread) Loaded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loaded
}

func (t *CommentThread) changed() {
	if t.opts.OnChange != nil {
		t.opts.OnChange(t.photo.ID, t.Comments())
	}
}

// arrange moves user comments ahead of AI comments, keeping relative order
func arrange(comments []LocalComment) []LocalComment {
	slices.SortStableFunc(comments, func(a, b LocalComment) int {
		switch {
		case a.IsUserComment == b.IsUserComment:
			return 0
		case a.IsUserComment:
			return -1
		default:
			return 1
		}
	})
	return comments
}

// Load fetches the list once. Later calls return immediately; concurrent
// calls share one fetch. Entries submitted before the fetch completed are kept.
func (t *CommentThread) Load(ctx context.Context) error {
	if t.Loaded() {
		return nil
	}

	_, err, _ := t.loads.Do("load", func() (any, error) {
		if t.Loaded() {
			return nil, nil
		}

		fetched, err := t.remote.ListComments(ctx, t.photo.ID)
		if err != nil {
			t.logger.WithContext(ctx).WithError(err).Error("Failed to load comments")
			t.opts.Notifier.Notify(errorNotice(MsgCommentsFailed, t.photo.ID))
			return nil, err
		}

		t.mu.Lock()
		known := make(map[string]bool, len(fetched))
		merged := make([]LocalComment, 0, len(fetched)+len(t.comments))
		for _, c := range fetched {
			known[c.ID] = true
			merged = append(merged, LocalComment{Comment: c, LocalID: c.ID, Status: CommentConfirmed})
		}
		for _, c := range t.comments {
			if c.Status == CommentConfirmed && known[c.ID] {
				continue
			}
			merged = append(merged, c)
		}
		t.comments = arrange(merged)
		t.loaded = true
		t.mu.Unlock()

		t.changed()
		return nil, nil
	})
	return err
}

// Submit validates text and shows it at once as pending, then stores it.
// On success the entry is confirmed with the server's id and timestamp. If
// the store rejects the write the entry is removed again; if the outcome is
// unknown because ctx ended first, the entry stays marked as failed.
func (t *CommentThread) Submit(ctx context.Context, text string) (*LocalComment, error) {
	text, err := models.ValidateCommentText(text)
	if err != nil {
		return nil, err
	}

	localID := uuid.New().String()
	t.mu.Lock()
	t.comments = arrange(append(t.comments, LocalComment{
		Comment: models.Comment{
			PhotoID:       t.photo.ID,
			Text:          text,
			Username:      models.UserAuthor,
			IsUserComment: true,
		},
		LocalID: localID,
		Status:  CommentPending,
	}))
	t.mu.Unlock()
	t.changed()

	stored, err := t.remote.AddComment(ctx, t.photo.ID, text, models.UserAuthor, true)
	if err != nil {
		unconfirmed := ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))

		t.mu.Lock()
		if unconfirmed {
			if i := t.indexLocked(localID); i >= 0 {
				t.comments[i].Status = CommentFailed
			}
		} else {
			t.comments = slices.DeleteFunc(t.comments, func(c LocalComment) bool { return c.LocalID == localID })
		}
		t.mu.Unlock()
		t.changed()

		t.logger.WithContext(ctx).WithError(err).WithField("unconfirmed", unconfirmed).Error("Failed to post comment")
		t.opts.Notifier.Notify(errorNotice(MsgCommentFailed, t.photo.ID))
		return nil, err
	}

	t.mu.Lock()
	// A load that ran while the write was in flight may already hold the row
	t.comments = slices.DeleteFunc(t.comments, func(c LocalComment) bool {
		return c.ID == stored.ID && c.LocalID != localID
	})
	var confirmed LocalComment
	if i := t.indexLocked(localID); i >= 0 {
		t.comments[i].Comment = *stored
		t.comments[i].Status = CommentConfirmed
		confirmed = t.comments[i]
	}
	t.mu.Unlock()
	t.changed()

	if t.opts.OnConfirmed != nil {
		t.opts.OnConfirmed(*stored)
	}
	if confirmed.LocalID == "" {
		confirmed = LocalComment{Comment: *stored, LocalID: localID, Status: CommentConfirmed}
	}
	return &confirmed, nil
}

// Dismiss drops a failed entry from the list
func (t *CommentThread) Dismiss(localID string) bool {
	t.mu.Lock()
	i := t.indexLocked(localID)
	ok := i >= 0 && t.comments[i].Status == CommentFailed
	if ok {
		t.comments = slices.Delete(t.comments, i, i+1)
	}
	t.mu.Unlock()
	if ok {
		t.changed()
	}
	return ok
}

// AddRemote inserts a comment stored by someone else, such as the automatic
// AI comment after an upload. Comments already present are ignored.
func (t *CommentThread) AddRemote(comment models.Comment) {
	if comment.PhotoID != t.photo.ID {
		return
	}
	t.mu.Lock()
	if slices.ContainsFunc(t.comments, func(c LocalComment) bool { return c.ID == comment.ID }) {
		t.mu.Unlock()
		return
	}
	t.comments = arrange(append(t.comments, LocalComment{Comment: comment, LocalID: comment.ID, Status: CommentConfirmed}))
	t.mu.Unlock()
	t.changed()
}

func (t *CommentThread) indexLocked(localID string) int {
	return slices.IndexFunc(t.comments, func(c LocalComment) bool { return c.LocalID == localID })
}

// RequestAIComment asks the AI collaborator for a comment on this photo and
// returns it as a draft. Nothing is stored and the list is not touched.
func (t *CommentThread) RequestAIComment(ctx context.Context) (string, error) {
	text, err := t.generateComment(ctx)
	if err != nil {
		t.logger.WithContext(ctx).WithError(err).Warn("AI comment request failed")
		t.opts.Notifier.Notify(errorNotice(MsgAIFailed, t.photo.ID))
		if !errors.Is(err, models.ErrAIUnavailable) {
			err = fmt.Errorf("%w: %w", models.ErrAIUnavailable, err)
		}
		return "", err
	}
	return text, nil
}

func (t *CommentThread) generateComment(ctx context.Context) (string, error) {
	if !t.opts.Generator.Available() {
		return "", models.ErrAIUnavailable
	}

	rc, err := t.remote.OpenImage(ctx, t.photo.ImageURL)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, t.opts.MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > t.opts.MaxImageBytes {
		return "", models.ErrFileTooLarge
	}

	prepared, mimeType := t.opts.Images.Prepare(data, t.photo.ImageURL)
	text, err := t.opts.Generator.Comment(ctx, ai.Image{Data: prepared, MIMEType: mimeType})
	if err != nil {
		return "", err
	}
	return models.ValidateCommentText(text)
}
