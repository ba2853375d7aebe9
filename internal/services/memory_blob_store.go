package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/photodiary/server/internal/models"
)

type memoryBlob struct {
	data        []byte
	contentType string
}

// MemoryBlobStore keeps blobs in process memory. It is safe for concurrent use.
type MemoryBlobStore struct {
	mu            sync.RWMutex
	publicBaseURL string
	blobs         map[string]memoryBlob
}

// NewMemoryBlobStore creates an empty MemoryBlobStore
func NewMemoryBlobStore(publicBaseURL string) *MemoryBlobStore {
	if publicBaseURL == "" {
		publicBaseURL = "memory://blobs"
	}
	return &MemoryBlobStore{
		publicBaseURL: publicBaseURL,
		blobs:         make(map[string]memoryBlob),
	}
}

func (s *MemoryBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := key
	for i := 1; ; i++ {
		if _, exists := s.blobs[stored]; !exists {
			break
		}
		stored = fmt.Sprintf("%s_%03d", key, i)
	}
	s.blobs[stored] = memoryBlob{data: data, contentType: contentType}
	return publicRef(s.publicBaseURL, stored), nil
}

func (s *MemoryBlobStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[keyFromRef(s.publicBaseURL, ref)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrBlobNotFound, ref)
	}
	return io.NopCloser(bytes.NewReader(blob.data)), nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blobs, keyFromRef(s.publicBaseURL, ref))
	return nil
}

// Len returns the number of stored blobs
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
