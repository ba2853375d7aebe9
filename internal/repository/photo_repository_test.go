package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photodiary/server/internal/models"
)

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func setupRepo(t *testing.T, clock Clock) *PhotoRepository {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "diary.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPhotoRepository(db, clock)
}

func addPhoto(t *testing.T, repo PhotoRepo, description string, tags ...string) models.Photo {
	t.Helper()
	photo := &models.Photo{
		ImageURL:    "/media/photos/" + description + ".jpg",
		Description: description,
		Tags:        tags,
	}
	require.NoError(t, repo.Add(context.Background(), photo))
	return *photo
}

func TestPhotoRepository_AddAndList(t *testing.T) {
	ctx := context.Background()
	clock := &fixedClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	repo := setupRepo(t, clock)

	t.Run("Add assigns identity and defaults", func(t *testing.T) {
		photo := addPhoto(t, repo, "beach", "sea", "sun")

		assert.NotEmpty(t, photo.ID)
		assert.Equal(t, clock.Now(), photo.CreatedAt)
		assert.False(t, photo.IsFavorite)
		assert.Equal(t, 0, photo.CommentCount)

		got, err := repo.GetByID(ctx, photo.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, []string{"sea", "sun"}, got.Tags)
		assert.True(t, photo.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("List orders newest first with insertion tiebreak", func(t *testing.T) {
		same := addPhoto(t, repo, "same-instant")
		clock.Set(clock.Now().Add(time.Hour))
		newest := addPhoto(t, repo, "later")

		photos, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, photos, 3)

		assert.Equal(t, newest.ID, photos[0].ID)
		assert.Equal(t, same.ID, photos[1].ID)
		assert.Equal(t, "beach", photos[2].Description)
	})

	t.Run("missing tags come back as empty slice", func(t *testing.T) {
		photos, err := repo.List(ctx)
		require.NoError(t, err)
		for _, p := range photos {
			assert.NotNil(t, p.Tags)
		}
	})

	t.Run("GetByID returns nil for unknown id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestPhotoRepository_SetFavoriteAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t, nil)
	photo := addPhoto(t, repo, "mountain")

	ok, err := repo.SetFavorite(ctx, photo.ID, true)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, photo.ID)
	require.NoError(t, err)
	assert.True(t, got.IsFavorite)
	assert.Equal(t, photo.Description, got.Description)

	ok, err = repo.SetFavorite(ctx, "missing", true)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.AddComment(ctx, &models.Comment{PhotoID: photo.ID, Text: "nice", Username: models.UserAuthor, IsUserComment: true}))

	deleted, err := repo.Delete(ctx, photo.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	comments, err := repo.ListComments(ctx, photo.ID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	deleted, err = repo.Delete(ctx, photo.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestPhotoRepository_AddComment(t *testing.T) {
	ctx := context.Background()
	repo := setupRepo(t, nil)
	photo := addPhoto(t, repo, "forest")

	t.Run("increments comment count", func(t *testing.T) {
		c := &models.Comment{PhotoID: photo.ID, Text: "Lovely", Username: models.UserAuthor, IsUserComment: true}
		require.NoError(t, repo.AddComment(ctx, c))
		assert.NotEmpty(t, c.ID)
		assert.False(t, c.CreatedAt.IsZero())
		assert.Equal(t, 1, c.ParentCount)

		got, err := repo.GetByID(ctx, photo.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.CommentCount)

		second := &models.Comment{PhotoID: photo.ID, Text: "Again", Username: "Dreamer"}
		require.NoError(t, repo.AddComment(ctx, second))
		assert.Equal(t, 2, second.ParentCount)
	})

	t.Run("missing parent writes nothing", func(t *testing.T) {
		err := repo.AddComment(ctx, &models.Comment{PhotoID: "gone", Text: "hi", Username: "Dreamer"})
		assert.ErrorIs(t, err, models.ErrParentNotFound)

		comments, err := repo.ListComments(ctx, "gone")
		require.NoError(t, err)
		assert.Empty(t, comments)
	})

	t.Run("concurrent adds keep count consistent", func(t *testing.T) {
		const n = 8
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repo.AddComment(ctx, &models.Comment{PhotoID: photo.ID, Text: "wow", Username: "PhotoFan"})
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		comments, err := repo.ListComments(ctx, photo.ID)
		require.NoError(t, err)
		got, err := repo.GetByID(ctx, photo.ID)
		require.NoError(t, err)
		assert.Len(t, comments, n+1)
		assert.Equal(t, len(comments), got.CommentCount)
	})

	t.Run("lists oldest first", func(t *testing.T) {
		comments, err := repo.ListComments(ctx, photo.ID)
		require.NoError(t, err)
		require.NotEmpty(t, comments)
		assert.Equal(t, "Lovely", comments[0].Text)
		for i := 1; i < len(comments); i++ {
			assert.False(t, comments[i].CreatedAt.Before(comments[i-1].CreatedAt))
		}
	})
}

func TestClock_NonDecreasing(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	times := []time.Time{base.Add(time.Second), base, base.Add(2 * time.Second)}
	i := 0
	clock := NewClock(func() time.Time {
		t := times[i]
		i++
		return t
	})

	first := clock.Now()
	second := clock.Now()
	third := clock.Now()

	assert.Equal(t, base.Add(time.Second), first)
	assert.Equal(t, first, second)
	assert.Equal(t, base.Add(2*time.Second), third)
	assert.Equal(t, time.UTC, third.Location())
}
