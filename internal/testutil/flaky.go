package testutil

import (
	"context"
	"io"
	"sync"

	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/repository"
	"github.com/photodiary/server/internal/services"
)

// Faults holds per-operation errors to inject. Safe for concurrent use.
type Faults struct {
	mu   sync.Mutex
	errs map[string]error
}

// Set makes op fail with err until cleared with a nil err.
func (f *Faults) Set(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = make(map[string]error)
	}
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

func (f *Faults) get(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}

// FlakyRepo wraps a PhotoRepo and fails selected operations
type FlakyRepo struct {
	repository.PhotoRepo
	Faults
}

func (r *FlakyRepo) List(ctx context.Context) ([]models.Photo, error) {
	if err := r.get("List"); err != nil {
		return nil, err
	}
	return r.PhotoRepo.List(ctx)
}

func (r *FlakyRepo) Add(ctx context.Context, photo *models.Photo) error {
	if err := r.get("Add"); err != nil {
		return err
	}
	return r.PhotoRepo.Add(ctx, photo)
}

func (r *FlakyRepo) Delete(ctx context.Context, id string) (bool, error) {
	if err := r.get("Delete"); err != nil {
		return false, err
	}
	return r.PhotoRepo.Delete(ctx, id)
}

func (r *FlakyRepo) SetFavorite(ctx context.Context, id string, value bool) (bool, error) {
	if err := r.get("SetFavorite"); err != nil {
		return false, err
	}
	return r.PhotoRepo.SetFavorite(ctx, id, value)
}

func (r *FlakyRepo) ListComments(ctx context.Context, photoID string) ([]models.Comment, error) {
	if err := r.get("ListComments"); err != nil {
		return nil, err
	}
	return r.PhotoRepo.ListComments(ctx, photoID)
}

func (r *FlakyRepo) AddComment(ctx context.Context, comment *models.Comment) error {
	if err := r.get("AddComment"); err != nil {
		return err
	}
	return r.PhotoRepo.AddComment(ctx, comment)
}

// FlakyBlobStore wraps a BlobStore and fails selected operations
type FlakyBlobStore struct {
	services.BlobStore
	Faults
}

func (s *FlakyBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := s.get("Put"); err != nil {
		return "", err
	}
	return s.BlobStore.Put(ctx, key, r, size, contentType)
}

func (s *FlakyBlobStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := s.get("Open"); err != nil {
		return nil, err
	}
	return s.BlobStore.Open(ctx, ref)
}

func (s *FlakyBlobStore) Delete(ctx context.Context, ref string) error {
	if err := s.get("Delete"); err != nil {
		return err
	}
	return s.BlobStore.Delete(ctx, ref)
}
