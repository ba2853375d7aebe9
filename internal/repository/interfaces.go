package repository

import (
	"context"

	"github.com/photodiary/server/internal/models"
)

// PhotoRepo defines the interface for photo and comment persistence.
// GetByID returns (nil, nil) when the photo does not exist.
type PhotoRepo interface {
	List(ctx context.Context) ([]models.Photo, error)
	GetByID(ctx context.Context, id string) (*models.Photo, error)
	Add(ctx context.Context, photo *models.Photo) error
	Delete(ctx context.Context, id string) (bool, error)
	SetFavorite(ctx context.Context, id string, value bool) (bool, error)
	ListComments(ctx context.Context, photoID string) ([]models.Comment, error)
	AddComment(ctx context.Context, comment *models.Comment) error
}
