// Package state holds the in-memory photo collection and comment threads the
// UI renders from, and keeps them in step with the remote stores.
package state

import (
	"context"
	"io"

	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/services"
)

// User-facing messages. Raw errors are logged, never shown.
const (
	MsgLoadFailed     = "Failed to load photos. This could be due to network issues or incorrect storage permissions. Check the server logs for more details."
	MsgUploadFailed   = "Upload failed. Please try again."
	MsgDeleteFailed   = "Failed to delete photo. Please try again."
	MsgFavoriteFailed = "Failed to update favorite status. Please try again."
	MsgCommentsFailed = "Could not load comments."
	MsgCommentFailed  = "Failed to post comment."
	MsgAIFailed       = "AI failed to generate a comment."
)

// RemoteStore is the gateway the state managers talk to
type RemoteStore interface {
	ListPhotos(ctx context.Context) ([]models.Photo, error)
	CreatePhoto(ctx context.Context, in models.NewPhotoInput) (*models.Photo, error)
	DeletePhoto(ctx context.Context, photoID, imageRef string) error
	SetFavorite(ctx context.Context, photoID string, value bool) error
	ListComments(ctx context.Context, photoID string) ([]models.Comment, error)
	AddComment(ctx context.Context, photoID, text, author string, isUser bool) (*models.Comment, error)
	OpenImage(ctx context.Context, imageRef string) (io.ReadCloser, error)
}

// Notifier receives user-facing notices
type Notifier interface {
	Notify(notice models.Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(models.Notice)

func (f NotifierFunc) Notify(notice models.Notice) { f(notice) }

// ImagePreparer shrinks an image before it is handed to the AI collaborator
type ImagePreparer interface {
	Prepare(data []byte, filename string) ([]byte, string)
}

type passthroughImages struct{}

func (passthroughImages) Prepare(data []byte, filename string) ([]byte, string) {
	return data, services.DetectContentType(data, filename)
}

func errorNotice(message, photoID string) models.Notice {
	return models.Notice{Level: models.NoticeError, Message: message, PhotoID: photoID}
}
