package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/photodiary/server/internal/models"
	"github.com/photodiary/server/internal/observability"
)

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator talks to the Gemini API
type GeminiGenerator struct {
	client  contentGenerator
	model   string
	metrics *observability.DiaryMetrics
	logger  *observability.Logger
}

// NewGeminiGenerator creates a Gemini client for apiKey
func NewGeminiGenerator(ctx context.Context, apiKey, model string, metrics *observability.DiaryMetrics, logger *observability.Logger) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return newGeminiGenerator(client.Models, model, metrics, logger), nil
}

func newGeminiGenerator(gen contentGenerator, model string, metrics *observability.DiaryMetrics, logger *observability.Logger) *GeminiGenerator {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &GeminiGenerator{
		client:  gen,
		model:   model,
		metrics: metrics,
		logger:  logger.WithField("component", "gemini"),
	}
}

func (g *GeminiGenerator) Available() bool { return true }

// Comment asks for a short, friendly comment about the photo
func (g *GeminiGenerator) Comment(ctx context.Context, img Image) (text string, err error) {
	ctx, span := observability.StartClientSpan(ctx, "gemini", "ai.Comment")
	defer func() {
		observability.EndSpan(span, err)
		g.metrics.RecordAIRequest(ctx, "comment", err == nil)
	}()

	out, err := g.generate(ctx, img, commentPrompt, nil)
	if err != nil {
		return "", err
	}
	return CleanText(out)
}

// Caption asks for a caption and tags as structured JSON
func (g *GeminiGenerator) Caption(ctx context.Context, img Image) (caption *Caption, err error) {
	ctx, span := observability.StartClientSpan(ctx, "gemini", "ai.Caption")
	defer func() {
		observability.EndSpan(span, err)
		g.metrics.RecordAIRequest(ctx, "caption", err == nil)
	}()

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"caption": {Type: genai.TypeString},
				"tags": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
			},
			Required: []string{"caption", "tags"},
		},
	}

	out, err := g.generate(ctx, img, captionPrompt, cfg)
	if err != nil {
		return nil, err
	}

	var raw Caption
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		g.logger.WithError(err).Warn("Caption response was not valid JSON")
		return nil, fmt.Errorf("%w: malformed caption response", models.ErrAIUnavailable)
	}

	result := &Caption{Tags: SanitizeTags(raw.Tags...)}
	if text, err := CleanText(raw.Text); err == nil {
		result.Text = text
	}
	if result.Text == "" && len(result.Tags) == 0 {
		return nil, fmt.Errorf("%w: empty caption response", models.ErrAIUnavailable)
	}
	return result, nil
}

func (g *GeminiGenerator) generate(ctx context.Context, img Image, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: no image data", models.ErrAIUnavailable)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, img.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := g.client.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		g.logger.WithContext(ctx).WithError(err).Warn("Gemini request failed")
		return "", fmt.Errorf("%w: %w", models.ErrAIUnavailable, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: empty response", models.ErrAIUnavailable)
	}
	return resp.Text(), nil
}
