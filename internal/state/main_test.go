package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/photodiary/server/internal/gateway"
	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/services"
	"github.com/photodiary/server/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errNetwork = errors.New("network unreachable")

type env struct {
	gw    *gateway.Gateway
	repo  *testutil.FlakyRepo
	blobs *testutil.FlakyBlobStore
	clock *testutil.StubClock
	notes *testutil.RecordingNotifier
	gen   *testutil.FakeGenerator
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := testutil.FixedClock()
	e := &env{
		repo:  &testutil.FlakyRepo{PhotoRepo: testutil.NewTestRepository(t, clock)},
		blobs: &testutil.FlakyBlobStore{BlobStore: services.NewMemoryBlobStore("")},
		clock: clock,
		notes: &testutil.RecordingNotifier{},
		gen:   &testutil.FakeGenerator{CommentOut: "Love this! 🌊"},
	}
	e.gw = gateway.New(e.repo, e.blobs, gateway.Options{Now: clock.Now})
	return e
}

func (e *env) photoState(opts Options) *PhotoState {
	if opts.Notifier == nil {
		opts.Notifier = e.notes
	}
	if opts.Generator == nil {
		opts.Generator = e.gen
	}
	return NewPhotoState(e.gw, opts)
}

func photoInput(description string, tags ...string) models.NewPhotoInput {
	return models.NewPhotoInput{
		Image:       []byte("jpeg-bytes"),
		Filename:    "IMG_0001.jpg",
		Description: description,
		Tags:        tags,
	}
}

// seed stores photos directly through the gateway, one minute apart
func (e *env) seed(t *testing.T, descriptions ...string) []*models.Photo {
	t.Helper()
	var out []*models.Photo
	for _, d := range descriptions {
		p, err := e.gw.CreatePhoto(context.Background(), photoInput(d))
		if err != nil {
			t.Fatalf("seed %q: %v", d, err)
		}
		out = append(out, p)
		e.clock.Advance(time.Minute)
	}
	return out
}

// gatedRemote holds SetFavorite calls for selected ids until released
type gatedRemote struct {
	RemoteStore
	mu    sync.Mutex
	gates map[string]chan error
}

func (r *gatedRemote) gate(photoID string) chan error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gates == nil {
		r.gates = make(map[string]chan error)
	}
	ch := make(chan error, 1)
	r.gates[photoID] = ch
	return ch
}

func (r *gatedRemote) SetFavorite(ctx context.Context, photoID string, value bool) error {
	r.mu.Lock()
	ch, ok := r.gates[photoID]
	r.mu.Unlock()
	if ok {
		if err := <-ch; err != nil {
			return err
		}
	}
	return r.RemoteStore.SetFavorite(ctx, photoID, value)
}

// countingRemote counts ListComments calls and can hold AddComment until ctx
// ends. afterAdd runs once a write has been stored, before it is reported.
type countingRemote struct {
	RemoteStore
	mu         sync.Mutex
	listCalls  int
	blockAdd   bool
	addStarted chan struct{}
	afterAdd   func()
}

func (r *countingRemote) ListComments(ctx context.Context, photoID string) ([]models.Comment, error) {
	r.mu.Lock()
	r.listCalls++
	r.mu.Unlock()
	return r.RemoteStore.ListComments(ctx, photoID)
}

func (r *countingRemote) AddComment(ctx context.Context, photoID, text, author string, isUser bool) (*models.Comment, error) {
	if r.blockAdd {
		close(r.addStarted)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	comment, err := r.RemoteStore.AddComment(ctx, photoID, text, author, isUser)
	if err == nil && r.afterAdd != nil {
		r.afterAdd()
	}
	return comment, err
}

func (r *countingRemote) ListCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listCalls
}
