package testutil

import (
	"context"
	"sync"

	"github.com/photodiary/server/internal/ai"
	"github.com/photodiary/server/internal/models"
)

// FakeGenerator is a scripted ai.Generator
type FakeGenerator struct {
	mu         sync.Mutex
	CommentOut string
	CaptionOut *ai.Caption
	Err        error
	Disabled   bool
	calls      int
	lastImage  ai.Image
}

func (g *FakeGenerator) Available() bool { return !g.Disabled }

func (g *FakeGenerator) Comment(ctx context.Context, img ai.Image) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastImage = img
	if g.Disabled {
		return "", models.ErrAIUnavailable
	}
	if g.Err != nil {
		return "", g.Err
	}
	return g.CommentOut, nil
}

func (g *FakeGenerator) Caption(ctx context.Context, img ai.Image) (*ai.Caption, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastImage = img
	if g.Disabled {
		return nil, models.ErrAIUnavailable
	}
	if g.Err != nil {
		return nil, g.Err
	}
	return g.CaptionOut, nil
}

// Calls returns how many generation requests were made
func (g *FakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// LastImage returns the image passed to the most recent request
func (g *FakeGenerator) LastImage() ai.Image {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastImage
}
