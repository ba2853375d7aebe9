package ai

import (
	"context"

	"github.com/photodiary/server/internal/models"
)

// Image is the payload handed to the model
type Image struct {
	Data     []byte
	MIMEType string
}

// Caption is a suggested description and tag set for an upload
type Caption struct {
	Text string   `json:"caption"`
	Tags []string `json:"tags"`
}

// Generator produces short texts about a photo. Callers must treat every
// result as untrusted and every failure as non-fatal.
type Generator interface {
	Available() bool
	Comment(ctx context.Context, img Image) (string, error)
	Caption(ctx context.Context, img Image) (*Caption, error)
}

// Unavailable is the Generator used when no API key is configured
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Comment(context.Context, Image) (string, error) {
	return "", models.ErrAIUnavailable
}

func (Unavailable) Caption(context.Context, Image) (*Caption, error) {
	return nil, models.ErrAIUnavailable
}
