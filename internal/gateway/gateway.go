package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/observability"
	"github.com/photodiary/server/internal/repository"
	"github.com/photodiary/server/internal/services"
)

// Options tunes a Gateway. Zero values pick sensible defaults.
type Options struct {
	Collection string
	Now        func() time.Time
	Metrics    *observability.DiaryMetrics
	Logger     *observability.Logger
}

// Gateway is the single boundary to the remote document and blob stores.
// Every failure it returns wraps models.ErrRemoteUnavailable except
// ErrParentNotFound from AddComment.
type Gateway struct {
	photos     repository.PhotoRepo
	blobs      services.BlobStore
	collection string
	now        func() time.Time
	metrics    *observability.DiaryMetrics
	logger     *observability.Logger
}

// New creates a Gateway over the given stores
func New(photos repository.PhotoRepo, blobs services.BlobStore, opts Options) *Gateway {
	if opts.Collection == "" {
		opts.Collection = "photos"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewNopLogger()
	}
	return &Gateway{
		photos:     photos,
		blobs:      blobs,
		collection: opts.Collection,
		now:        opts.Now,
		metrics:    opts.Metrics,
		logger:     opts.Logger.WithField("component", "gateway"),
	}
}

func remote(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrRemoteUnavailable, err)
}

// ListPhotos returns every photo, newest first
func (g *Gateway) ListPhotos(ctx context.Context) (photos []models.Photo, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "gateway", "ListPhotos")
	defer func() { observability.EndSpan(span, err) }()

	photos, err = g.photos.List(ctx)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Error("Failed to list photos")
		return nil, remote("list photos", err)
	}
	return photos, nil
}

// CreatePhoto uploads the image and then inserts the record. If the insert
// fails the uploaded blob is left behind; it is logged and counted as an orphan.
func (g *Gateway) CreatePhoto(ctx context.Context, in models.NewPhotoInput) (photo *models.Photo, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "gateway", "CreatePhoto")
	defer func() {
		observability.EndSpan(span, err)
		g.metrics.RecordPhotoUpload(ctx, int64(len(in.Image)), err == nil)
	}()

	contentType := in.ContentType
	if contentType == "" {
		contentType = services.DetectContentType(in.Image, in.Filename)
	}

	key := services.BlobKey(g.collection, in.Extension(), g.now())
	ref, err := g.blobs.Put(ctx, key, bytes.NewReader(in.Image), int64(len(in.Image)), contentType)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).WithField("key", key).Error("Failed to upload image")
		return nil, remote("upload image", err)
	}

	photo = &models.Photo{
		ImageURL:    ref,
		Description: strings.TrimSpace(in.Description),
		Tags:        models.NormalizeTags(in.Tags),
	}
	if err := g.photos.Add(ctx, photo); err != nil {
		g.logger.WithContext(ctx).WithError(err).WithField("image_ref", ref).Warn("Photo record insert failed, uploaded image is orphaned")
		g.metrics.RecordBlobOrphan(ctx)
		return nil, remote("create photo", err)
	}

	observability.AddEvent(span, "photo.created", observability.PhotoID(photo.ID))
	return photo, nil
}

// DeletePhoto removes the record and the blob as two independent calls. A
// failure of either is reported; the other is not rolled back.
func (g *Gateway) DeletePhoto(ctx context.Context, photoID, imageRef string) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "gateway", "DeletePhoto")
	defer func() {
		observability.EndSpan(span, err)
		g.metrics.RecordPhotoDelete(ctx, err == nil)
	}()
	logger := g.logger.WithContext(ctx).WithField("photo_id", photoID)

	// Plain group: one failing call must not cancel the other
	var group errgroup.Group
	group.Go(func() error {
		found, err := g.photos.Delete(ctx, photoID)
		if err != nil {
			logger.WithError(err).Error("Failed to delete photo record")
			return remote("delete photo record", err)
		}
		if !found {
			logger.Debug("Photo record already gone")
		}
		return nil
	})
	group.Go(func() error {
		if err := g.blobs.Delete(ctx, imageRef); err != nil {
			logger.WithError(err).WithField("image_ref", imageRef).Error("Failed to delete image")
			return remote("delete image", err)
		}
		return nil
	})
	return group.Wait()
}

// SetFavorite writes the favorite flag only
func (g *Gateway) SetFavorite(ctx context.Context, photoID string, value bool) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "gateway", "SetFavorite")
	defer func() {
		observability.EndSpan(span, err)
		g.metrics.RecordFavoriteToggle(ctx, value, err == nil)
	}()

	found, err := g.photos.SetFavorite(ctx, photoID, value)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).WithField("photo_id", photoID).Error("Failed to set favorite")
		return remote("set favorite", err)
	}
	if !found {
		return remote("set favorite", models.ErrPhotoNotFound)
	}
	return nil
}

// ListComments returns the thread oldest first, with user-authored comments
// moved ahead of AI-authored ones.
func (g *Gateway) ListComments(ctx context.Context, photoID string) (comments []models.Comment, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "gateway", "ListComments")
	defer func() { observability.EndSpan(span, err) }()

	comments, err = g.photos.ListComments(ctx, photoID)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).WithField("photo_id", photoID).Error("Failed to list comments")
		return nil, remote("list comments", err)
	}
	return models.UserFirst(comments), nil
}

// AddComment appends a comment and increments the parent's count atomically
func (g *Gateway) AddComment(ctx context.Context, photoID, text, author string, isUser bool) (comment *models.Comment, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "gateway", "AddComment")
	defer func() {
		observability.EndSpan(span, err)
		g.metrics.RecordCommentAdd(ctx, isUser, err == nil)
	}()

	comment = &models.Comment{
		PhotoID:       photoID,
		Text:          text,
		Username:      author,
		IsUserComment: isUser,
	}
	if err := g.photos.AddComment(ctx, comment); err != nil {
		if errors.Is(err, models.ErrParentNotFound) {
			return nil, fmt.Errorf("add comment: %w", err)
		}
		g.logger.WithContext(ctx).WithError(err).WithField("photo_id", photoID).Error("Failed to add comment")
		return nil, remote("add comment", err)
	}
	return comment, nil
}

// OpenImage streams the blob behind imageRef
func (g *Gateway) OpenImage(ctx context.Context, imageRef string) (rc io.ReadCloser, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "gateway", "OpenImage")
	defer func() { observability.EndSpan(span, err) }()

	rc, err = g.blobs.Open(ctx, imageRef)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).WithField("image_ref", imageRef).Warn("Failed to open image")
		return nil, remote("open image", err)
	}
	return rc, nil
}
