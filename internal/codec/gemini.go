package codec

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region generator

// generator is the slice of *genai.Models the adapter needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// #endregion generator

// #region gemini-adapter

// GeminiAdapter evaluates sentences with the Gemini API.
type GeminiAdapter struct {
	models   generator
	profiles Profiles
}

// NewGeminiAdapter creates a Gemini API client authenticated by apiKey.
func NewGeminiAdapter(ctx context.Context, apiKey string, profiles Profiles) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required (set GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewGeminiAdapterWithModels(client.Models, profiles), nil
}

// NewGeminiAdapterWithModels creates an adapter over an injected generator.
// Used for testing without network access.
func NewGeminiAdapterWithModels(models generator, profiles Profiles) *GeminiAdapter {
	if profiles == nil {
		profiles = DefaultProfiles()
	}
	return &GeminiAdapter{models: models, profiles: profiles}
}

// #endregion gemini-adapter

// #region evaluate

// Evaluate asks the configured model to judge req.SentenceText.
func (g *GeminiAdapter) Evaluate(ctx context.Context, req eval.Request) (Feedback, error) {
	if strings.TrimSpace(req.SentenceText) == "" {
		return Feedback{}, eval.Errorf(eval.KindMalformedResponse, "no sentence text to evaluate")
	}
	prof, err := g.profiles.Lookup(req.Model)
	if err != nil {
		return Feedback{}, eval.Wrap(eval.KindModelUnavailable, err, "")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(prof.Temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}
	if prof.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = prof.MaxOutputTokens
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buildPrompt(req), genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(ctx, prof.Model, contents, cfg)
	if err != nil {
		return Feedback{}, classifyGenAIError(err)
	}

	text, err := responseText(resp)
	if err != nil {
		return Feedback{}, err
	}
	fb, err := parsePayload([]byte(text))
	if err != nil {
		return Feedback{}, err
	}
	return fb, checkComplete(req, fb)
}

// #endregion evaluate

// #region response

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", eval.Errorf(eval.KindMalformedResponse, "no candidates returned")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", eval.Errorf(eval.KindMalformedResponse, "empty candidate (finish reason %s)", cand.FinishReason)
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}

// responseSchema mirrors payloadSchema for Gemini structured output.
func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type:     genai.TypeObject,
		Required: []string{"verdicts"},
		Properties: map[string]*genai.Schema{
			"verdicts": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type:     genai.TypeObject,
					Required: []string{"criterionId", "passed", "rating"},
					Properties: map[string]*genai.Schema{
						"criterionId": {Type: genai.TypeString},
						"passed":      {Type: genai.TypeBoolean},
						"rating": {
							Type:    genai.TypeInteger,
							Minimum: genai.Ptr(float64(eval.MinRating)),
							Maximum: genai.Ptr(float64(eval.MaxRating)),
						},
						"suggestion": {Type: genai.TypeString},
					},
				},
			},
			"correction": {Type: genai.TypeString},
		},
	}
}

// #endregion response

// #region classify-error

// classifyGenAIError maps transport and API failures onto the taxonomy.
func classifyGenAIError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return eval.Wrap(eval.KindTimeout, err, "")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return eval.Wrap(eval.KindTimeout, err, "")
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return eval.Wrap(kindForStatus(apiErr.Code), err, fmt.Sprintf("gemini %d %s: %s", apiErr.Code, apiErr.Status, apiErr.Message))
	}
	return eval.Wrap(eval.KindModelUnavailable, err, "")
}

func kindForStatus(code int) eval.Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return eval.KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return eval.KindTimeout
	default:
		return eval.KindModelUnavailable
	}
}

// #endregion classify-error
