package testutil

import (
	"path/filepath"
	"testing"

	"github.com/photodiary/server/internal/repository"
)

// NewTestRepository creates a migrated SQLite repository in a temp directory.
// A file database is used so every pooled connection sees the same data.
func NewTestRepository(t *testing.T, clock repository.Clock) *repository.PhotoRepository {
	t.Helper()

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "diary.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return repository.NewPhotoRepository(db, clock)
}
