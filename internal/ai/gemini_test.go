package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/photodiary/server/internal/models"
)

type fakeModels struct {
	text   string
	err    error
	model  string
	config *genai.GenerateContentConfig
	parts  []*genai.Part
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 {
		f.parts = contents[0].Parts
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

var testImage = Image{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: "image/jpeg"}

func TestGeminiGenerator_Comment(t *testing.T) {
	ctx := context.Background()

	t.Run("returns cleaned comment", func(t *testing.T) {
		fake := &fakeModels{text: "  \"What a view! 😍\"\n"}
		gen := newGeminiGenerator(fake, "", nil, nil)

		text, err := gen.Comment(ctx, testImage)
		require.NoError(t, err)
		assert.Equal(t, "What a view! 😍", text)
		assert.Equal(t, DefaultModel, fake.model)
		require.Len(t, fake.parts, 2)
		assert.Equal(t, "image/jpeg", fake.parts[0].InlineData.MIMEType)
		assert.Equal(t, commentPrompt, fake.parts[1].Text)
	})

	t.Run("maps client errors to ErrAIUnavailable", func(t *testing.T) {
		gen := newGeminiGenerator(&fakeModels{err: errors.New("quota exceeded")}, "gemini-test", nil, nil)

		_, err := gen.Comment(ctx, testImage)
		assert.ErrorIs(t, err, models.ErrAIUnavailable)
	})

	t.Run("empty output is unavailable", func(t *testing.T) {
		gen := newGeminiGenerator(&fakeModels{text: "   "}, "", nil, nil)

		_, err := gen.Comment(ctx, testImage)
		assert.ErrorIs(t, err, models.ErrAIUnavailable)
	})

	t.Run("requires image bytes", func(t *testing.T) {
		fake := &fakeModels{text: "hi"}
		gen := newGeminiGenerator(fake, "", nil, nil)

		_, err := gen.Comment(ctx, Image{})
		assert.ErrorIs(t, err, models.ErrAIUnavailable)
		assert.Empty(t, fake.model)
	})
}

func TestGeminiGenerator_Caption(t *testing.T) {
	ctx := context.Background()

	t.Run("parses and sanitizes JSON", func(t *testing.T) {
		fake := &fakeModels{text: `{"caption": " A sunny afternoon at the beach ", "tags": ["Beach", "sun!", "beach", "x", "ocean waves"]}`}
		gen := newGeminiGenerator(fake, "", nil, nil)

		caption, err := gen.Caption(ctx, testImage)
		require.NoError(t, err)
		assert.Equal(t, "A sunny afternoon at the beach", caption.Text)
		assert.Equal(t, []string{"beach", "sun", "ocean waves"}, caption.Tags)
		require.NotNil(t, fake.config)
		assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
		assert.Equal(t, genai.TypeObject, fake.config.ResponseSchema.Type)
	})

	t.Run("malformed JSON is unavailable", func(t *testing.T) {
		gen := newGeminiGenerator(&fakeModels{text: "beach, sun"}, "", nil, nil)

		_, err := gen.Caption(ctx, testImage)
		assert.ErrorIs(t, err, models.ErrAIUnavailable)
	})

	t.Run("nothing usable is unavailable", func(t *testing.T) {
		gen := newGeminiGenerator(&fakeModels{text: `{"caption": "", "tags": ["!"]}`}, "", nil, nil)

		_, err := gen.Caption(ctx, testImage)
		assert.ErrorIs(t, err, models.ErrAIUnavailable)
	})
}

func TestUnavailable(t *testing.T) {
	var gen Generator = Unavailable{}

	assert.False(t, gen.Available())
	_, err := gen.Comment(context.Background(), testImage)
	assert.ErrorIs(t, err, models.ErrAIUnavailable)
	_, err = gen.Caption(context.Background(), testImage)
	assert.ErrorIs(t, err, models.ErrAIUnavailable)
}
