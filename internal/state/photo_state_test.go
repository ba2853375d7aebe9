package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photodiary/server/internal/ai"
	"github.com/photodiary/server/internal/models"
)

func TestPhotoState_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("starts idle and loads newest first", func(t *testing.T) {
		e := newEnv(t)
		seeded := e.seed(t, "first", "second")
		s := e.photoState(Options{})

		assert.Equal(t, StatusIdle, s.Snapshot().Status)
		require.NoError(t, s.Refresh(ctx))

		snap := s.Snapshot()
		assert.Equal(t, StatusLoaded, snap.Status)
		require.Len(t, snap.Photos, 2)
		assert.Equal(t, seeded[1].ID, snap.Photos[0].ID)
		assert.Equal(t, seeded[0].ID, snap.Photos[1].ID)
	})

	t.Run("failure shows fixed message and only refresh recovers", func(t *testing.T) {
		e := newEnv(t)
		e.seed(t, "first")
		s := e.photoState(Options{})
		require.NoError(t, s.Refresh(ctx))

		e.repo.Set("List", errNetwork)
		assert.ErrorIs(t, s.Refresh(ctx), models.ErrRemoteUnavailable)

		snap := s.Snapshot()
		assert.Equal(t, StatusError, snap.Status)
		assert.Equal(t, MsgLoadFailed, snap.Error)
		assert.Empty(t, snap.Photos)

		e.repo.Set("List", nil)
		require.NoError(t, s.Refresh(ctx))
		assert.Equal(t, StatusLoaded, s.Snapshot().Status)
		assert.Len(t, s.Snapshot().Photos, 1)
	})

	t.Run("publishes loading then loaded", func(t *testing.T) {
		e := newEnv(t)
		s := e.photoState(Options{})

		var mu sync.Mutex
		var seen []Status
		unsubscribe := s.Subscribe(func(snap Snapshot) {
			mu.Lock()
			seen = append(seen, snap.Status)
			mu.Unlock()
		})
		require.NoError(t, s.Refresh(ctx))
		unsubscribe()
		require.NoError(t, s.Refresh(ctx))

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []Status{StatusLoading, StatusLoaded}, seen)
	})
}

func TestPhotoState_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("beach day into an empty collection", func(t *testing.T) {
		e := newEnv(t)
		s := e.photoState(Options{})

		_, err := s.Upload(ctx, photoInput("Beach day", "beach", "sunset"))
		require.NoError(t, err)

		snap := s.Snapshot()
		require.Len(t, snap.Photos, 1)
		p := snap.Photos[0]
		assert.Equal(t, "Beach day", p.Description)
		assert.Equal(t, []string{"beach", "sunset"}, p.Tags)
		assert.False(t, p.IsFavorite)
		assert.Equal(t, 0, p.CommentCount)
	})

	t.Run("new photo is listed first", func(t *testing.T) {
		e := newEnv(t)
		e.seed(t, "older")
		s := e.photoState(Options{})
		require.NoError(t, s.Refresh(ctx))

		photo, err := s.Upload(ctx, photoInput("newest"))
		require.NoError(t, err)

		snap := s.Snapshot()
		require.Len(t, snap.Photos, 2)
		assert.Equal(t, photo.ID, snap.Photos[0].ID)
	})

	t.Run("validation fails before any remote call", func(t *testing.T) {
		e := newEnv(t)
		e.repo.Set("Add", errNetwork)
		e.blobs.Set("Put", errNetwork)
		s := e.photoState(Options{})

		_, err := s.Upload(ctx, photoInput("  "))
		assert.ErrorIs(t, err, models.ErrValidation)

		_, err = s.Upload(ctx, models.NewPhotoInput{Description: "no file"})
		assert.ErrorIs(t, err, models.ErrValidation)

		assert.Empty(t, e.notes.Notices())
		assert.Equal(t, StatusIdle, s.Snapshot().Status)
	})

	t.Run("remote failure leaves collection untouched", func(t *testing.T) {
		e := newEnv(t)
		e.seed(t, "existing")
		s := e.photoState(Options{})
		require.NoError(t, s.Refresh(ctx))
		before := s.Snapshot()

		e.blobs.Set("Put", errNetwork)
		_, err := s.Upload(ctx, photoInput("Beach day"))
		assert.ErrorIs(t, err, models.ErrRemoteUnavailable)

		assert.Equal(t, before, s.Snapshot())
		assert.Equal(t, []string{MsgUploadFailed}, e.notes.Messages())
	})
}

func TestPhotoState_AutoComment(t *testing.T) {
	t.Run("posts one AI comment in the background", func(t *testing.T) {
		e := newEnv(t)
		var posted []models.Comment
		var mu sync.Mutex
		s := e.photoState(Options{
			AutoComment: true,
			OnAutoComment: func(c models.Comment) {
				mu.Lock()
				posted = append(posted, c)
				mu.Unlock()
			},
		})

		ctx, cancel := context.WithCancel(context.Background())
		photo, err := s.Upload(ctx, photoInput("Beach day", "beach"))
		cancel()
		require.NoError(t, err)
		s.Wait()

		comments, err := e.gw.ListComments(context.Background(), photo.ID)
		require.NoError(t, err)
		require.Len(t, comments, 1)
		assert.Equal(t, "Love this! 🌊", comments[0].Text)
		assert.False(t, comments[0].IsUserComment)
		assert.Contains(t, ai.Authors, comments[0].Username)

		local, ok := s.Photo(photo.ID)
		require.True(t, ok)
		assert.Equal(t, 1, local.CommentCount)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, posted, 1)
		assert.Equal(t, comments[0].ID, posted[0].ID)
	})

	t.Run("AI failure never fails the upload", func(t *testing.T) {
		e := newEnv(t)
		e.gen.Err = models.ErrAIUnavailable
		s := e.photoState(Options{AutoComment: true})

		photo, err := s.Upload(context.Background(), photoInput("Beach day"))
		require.NoError(t, err)
		s.Wait()

		local, ok := s.Photo(photo.ID)
		require.True(t, ok)
		assert.Equal(t, 0, local.CommentCount)
		assert.Empty(t, e.notes.Notices())
		assert.Equal(t, 1, e.gen.Calls())
	})

	t.Run("skipped when disabled or unavailable", func(t *testing.T) {
		e := newEnv(t)
		s := e.photoState(Options{AutoComment: false})
		_, err := s.Upload(context.Background(), photoInput("one"))
		require.NoError(t, err)

		e.gen.Disabled = true
		s = e.photoState(Options{AutoComment: true})
		_, err = s.Upload(context.Background(), photoInput("two"))
		require.NoError(t, err)
		s.Wait()

		assert.Equal(t, 0, e.gen.Calls())
	})

	t.Run("uses the prepared image", func(t *testing.T) {
		e := newEnv(t)
		s := e.photoState(Options{AutoComment: true, Images: fixedPreparer{}})

		_, err := s.Upload(context.Background(), photoInput("Beach day"))
		require.NoError(t, err)
		s.Wait()

		assert.Equal(t, ai.Image{Data: []byte("small"), MIMEType: "image/jpeg"}, e.gen.LastImage())
	})
}

type fixedPreparer struct{}

func (fixedPreparer) Prepare([]byte, string) ([]byte, string) {
	return []byte("small"), "image/jpeg"
}

func TestPhotoState_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("drops exactly the removed id", func(t *testing.T) {
		e := newEnv(t)
		seeded := e.seed(t, "a", "b", "c")
		s := e.photoState(Options{})
		require.NoError(t, s.Refresh(ctx))

		require.NoError(t, s.Remove(ctx, seeded[1].ID))

		snap := s.Snapshot()
		assert.Len(t, snap.Photos, 2)
		for _, p := range snap.Photos {
			assert.NotEqual(t, seeded[1].ID, p.ID)
		}
	})

	t.Run("failure leaves collection untouched", func(t *testing.T) {
		e := newEnv(t)
		seeded := e.seed(t, "a", "b")
		s := e.photoState(Options{})
		require.NoError(t, s.Refresh(ctx))
		before := s.Snapshot()

		e.repo.Set("Delete", errNetwork)
		assert.ErrorIs(t, s.Remove(ctx, seeded[0].ID), models.ErrRemoteUnavailable)

		assert.Equal(t, before, s.Snapshot())
		assert.Equal(t, []string{MsgDeleteFailed}, e.notes.Messages())
	})

	t.Run("unknown id", func(t *testing.T) {
		e := newEnv(t)
		s := e.photoState(Options{})
		assert.ErrorIs(t, s.Remove(ctx, "nope"), models.ErrPhotoNotFound)
	})
}

func TestPhotoState_ToggleFavorite(t *testing.T) {
	ctx := context.Background()

	t.Run("persists the flipped value", func(t *testing.T) {
		e := newEnv(t)
		seeded := e.seed(t, "a")
		s := e.photoState(Options{})
		require.NoError(t, s.Refresh(ctx))

		value, err := s.ToggleFavorite(ctx, seeded[0].ID)
		require.NoError(t, err)
		assert.True(t, value)

		require.NoError(t, s.Refresh(ctx))
		assert.True(t, s.Snapshot().Photos[0].IsFavorite)
	})

	t.Run("failed toggle restores false and notifies", func(t *testing.T) {
		e := newEnv(t)
		seeded := e.seed(t, "a")
		s := e.photoState(Options{})
		require.NoError(t, s.Refresh(ctx))
		before := s.Snapshot()

		e.repo.Set("SetFavorite", errNetwork)
		value, err := s.ToggleFavorite(ctx, seeded[0].ID)
		assert.ErrorIs(t, err, models.ErrRemoteUnavailable)
		assert.False(t, value)

		assert.Equal(t, before, s.Snapshot())
		assert.Equal(t, []models.Notice{{
			Level:   models.NoticeError,
			Message: MsgFavoriteFailed,
			PhotoID: seeded[0].ID,
		}}, e.notes.Notices())
	})

	t.Run("failed toggle restores true", func(t *testing.T) {
		e := newEnv(t)
		seeded := e.seed(t, "a")
		s := e.photoState(Options{})
		require.NoError(t, s.Refresh(ctx))
		_, err := s.ToggleFavorite(ctx, seeded[0].ID)
		require.NoError(t, err)

		e.repo.Set("SetFavorite", errNetwork)
		_, err = s.ToggleFavorite(ctx, seeded[0].ID)
		require.Error(t, err)

		p, _ := s.Photo(seeded[0].ID)
		assert.True(t, p.IsFavorite)
	})

	t.Run("flip is visible before the remote call returns", func(t *testing.T) {
		e := newEnv(t)
		seeded := e.seed(t, "a")
		remote := &gatedRemote{RemoteStore: e.gw}
		gate := remote.gate(seeded[0].ID)
		s := NewPhotoState(remote, Options{Notifier: e.notes})
		require.NoError(t, s.Refresh(ctx))

		done := make(chan struct{})
		go func() {
			defer close(done)
			s.ToggleFavorite(ctx, seeded[0].ID)
		}()

		require.Eventually(t, func() bool {
			p, _ := s.Photo(seeded[0].ID)
			return p.IsFavorite
		}, time.Second, time.Millisecond)

		gate <- nil
		<-done
	})

	t.Run("overlapping toggles on different ids do not interfere", func(t *testing.T) {
		e := newEnv(t)
		seeded := e.seed(t, "a", "b")
		a, b := seeded[0].ID, seeded[1].ID
		remote := &gatedRemote{RemoteStore: e.gw}
		gateA, gateB := remote.gate(a), remote.gate(b)
		s := NewPhotoState(remote, Options{Notifier: e.notes})
		require.NoError(t, s.Refresh(ctx))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); s.ToggleFavorite(ctx, a) }()
		go func() { defer wg.Done(); s.ToggleFavorite(ctx, b) }()

		require.Eventually(t, func() bool {
			pa, _ := s.Photo(a)
			pb, _ := s.Photo(b)
			return pa.IsFavorite && pb.IsFavorite
		}, time.Second, time.Millisecond)

		gateB <- errNetwork
		gateA <- nil
		wg.Wait()

		pa, _ := s.Photo(a)
		pb, _ := s.Photo(b)
		assert.True(t, pa.IsFavorite)
		assert.False(t, pb.IsFavorite)
		assert.Equal(t, []string{MsgFavoriteFailed}, e.notes.Messages())
	})

	t.Run("unknown id", func(t *testing.T) {
		e := newEnv(t)
		s := e.photoState(Options{})
		_, err := s.ToggleFavorite(ctx, "nope")
		assert.ErrorIs(t, err, models.ErrPhotoNotFound)
	})
}

func TestPhotoState_CommentCount(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	seeded := e.seed(t, "a")
	s := e.photoState(Options{})
	require.NoError(t, s.Refresh(ctx))

	p, _ := s.Photo(seeded[0].ID)
	thread := NewCommentThread(e.gw, p, ThreadOptions{OnConfirmed: s.ApplyCommentAdded})
	require.NoError(t, thread.Load(ctx))

	const n = 4
	for i := 0; i < n; i++ {
		_, err := thread.Submit(ctx, "comment")
		require.NoError(t, err)
	}

	local, _ := s.Photo(p.ID)
	assert.Equal(t, n, local.CommentCount)

	require.NoError(t, s.Refresh(ctx))
	remote, _ := s.Photo(p.ID)
	assert.Equal(t, n, remote.CommentCount)

	comments, err := e.gw.ListComments(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, comments, n)
}

func TestPhotoState_CommentCountWithRefreshDuringWrite(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	seeded := e.seed(t, "a")
	s := e.photoState(Options{})
	require.NoError(t, s.Refresh(ctx))

	p, _ := s.Photo(seeded[0].ID)
	remote := &countingRemote{RemoteStore: e.gw}
	remote.afterAdd = func() { require.NoError(t, s.Refresh(ctx)) }
	thread := NewCommentThread(remote, p, ThreadOptions{OnConfirmed: s.ApplyCommentAdded})

	_, err := thread.Submit(ctx, "hello")
	require.NoError(t, err)

	local, _ := s.Photo(p.ID)
	assert.Equal(t, 1, local.CommentCount)

	t.Run("stale count is ignored", func(t *testing.T) {
		s.ApplyCommentAdded(models.Comment{PhotoID: p.ID, ParentCount: 0})
		local, _ := s.Photo(p.ID)
		assert.Equal(t, 1, local.CommentCount)
	})
}

func TestPhotoState_View(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seed(t, "Beach day", "Mountain hike")
	s := e.photoState(Options{})
	require.NoError(t, s.Refresh(ctx))

	view := s.View("beach", false)
	assert.Equal(t, StatusLoaded, view.Status)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, 1, view.Matches)
	require.Len(t, view.Groups, 1)
	assert.Equal(t, "2024-06-01", view.Groups[0].Date)
	assert.Equal(t, "Saturday, June 1, 2024", view.Groups[0].Label)

	assert.Equal(t, view, s.View("beach", false))
	assert.Empty(t, s.View("", true).Groups)
}

func TestPhotoState_Caption(t *testing.T) {
	ctx := context.Background()

	t.Run("cleans model output", func(t *testing.T) {
		e := newEnv(t)
		e.gen.CaptionOut = &ai.Caption{Text: `  "Golden hour"  `, Tags: []string{"Beach", "beach", "sun set!"}}
		s := e.photoState(Options{})

		caption, err := s.Caption(ctx, []byte("jpeg-bytes"), "IMG.jpg")
		require.NoError(t, err)
		assert.Equal(t, "Golden hour", caption.Text)
		assert.Equal(t, []string{"beach", "sun set"}, caption.Tags)
	})

	t.Run("unavailable generator", func(t *testing.T) {
		e := newEnv(t)
		s := e.photoState(Options{Generator: ai.Unavailable{}})

		_, err := s.Caption(ctx, []byte("jpeg-bytes"), "IMG.jpg")
		assert.ErrorIs(t, err, models.ErrAIUnavailable)
	})

	t.Run("empty image", func(t *testing.T) {
		e := newEnv(t)
		s := e.photoState(Options{})

		_, err := s.Caption(ctx, nil, "IMG.jpg")
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}
