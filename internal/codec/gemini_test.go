package codec

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region fakes

type fakeGenerator struct {
	text      string
	err       error
	lastModel string
	lastCfg   *genai.GenerateContentConfig
	lastText  string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.lastModel = model
	f.lastCfg = cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.lastText = contents[0].Parts[0].Text
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

func twoCriteria() []eval.Criterion {
	return []eval.Criterion{
		{ID: "short", Description: "Keep statements short.", Weight: 1},
		{ID: "no-universals", Description: "Avoid universal terms.", Weight: 1},
	}
}

// #endregion fakes

// #region evaluate-tests

func TestGeminiEvaluateParsesVerdicts(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n" + `{"verdicts":[
		{"criterionId":"short","passed":true,"rating":5},
		{"criterionId":"no-universals","passed":false,"rating":2,"suggestion":"drop always"}
	],"correction":"I often feel calm."}` + "\n```"}
	a := NewGeminiAdapterWithModels(gen, nil)

	fb, err := a.Evaluate(context.Background(), eval.Request{
		SentenceText: "I always feel calm.",
		Model:        eval.ModelPro,
		Criteria:     twoCriteria(),
		Level:        eval.FeedbackConcise,
	})
	require.NoError(t, err)
	require.Len(t, fb.Verdicts, 2)
	assert.False(t, fb.Verdicts["no-universals"].Passed)
	assert.Equal(t, "drop always", fb.Verdicts["no-universals"].Suggestion)
	assert.Equal(t, "I often feel calm.", fb.Correction)

	assert.Equal(t, "gemini-1.5-pro", gen.lastModel)
	assert.Equal(t, "application/json", gen.lastCfg.ResponseMIMEType)
	assert.Equal(t, int32(400), gen.lastCfg.MaxOutputTokens)
	assert.Contains(t, gen.lastText, "[no-universals] Avoid universal terms.")
	assert.Contains(t, gen.lastText, "under 12 words")
}

func TestGeminiProfilesDispatchByChoice(t *testing.T) {
	gen := &fakeGenerator{text: `{"verdicts":[{"criterionId":"short","passed":true,"rating":4}]}`}
	a := NewGeminiAdapterWithModels(gen, nil)

	for choice, want := range map[eval.ModelChoice]string{
		eval.ModelFlash:  "gemini-1.5-flash",
		eval.ModelPro:    "gemini-1.5-pro",
		eval.ModelLegacy: "gemini-pro",
	} {
		_, err := a.Evaluate(context.Background(), eval.Request{
			SentenceText: "x", Model: choice, Criteria: twoCriteria()[:1],
		})
		require.NoError(t, err)
		assert.Equal(t, want, gen.lastModel)
	}
}

func TestGeminiMissingCriterionIsSurfaced(t *testing.T) {
	gen := &fakeGenerator{text: `{"verdicts":[{"criterionId":"short","passed":true,"rating":5}]}`}
	a := NewGeminiAdapterWithModels(gen, nil)

	fb, err := a.Evaluate(context.Background(), eval.Request{
		SentenceText: "I always feel calm.", Model: eval.ModelFlash, Criteria: twoCriteria(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, eval.ErrPartialCriteriaMissing))
	var e *eval.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, []string{"no-universals"}, e.Criteria)
	assert.Len(t, fb.Verdicts, 1)
}

func TestGeminiMalformedResponses(t *testing.T) {
	cases := map[string]string{
		"not json":        "Overall Rating: 7/10",
		"rating range":    `{"verdicts":[{"criterionId":"short","passed":true,"rating":9}]}`,
		"missing passed":  `{"verdicts":[{"criterionId":"short","rating":3}]}`,
		"duplicate":       `{"verdicts":[{"criterionId":"short","passed":true,"rating":3},{"criterionId":"short","passed":false,"rating":1}]}`,
		"empty":           "   ",
		"verdicts absent": `{"correction":"x"}`,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			a := NewGeminiAdapterWithModels(&fakeGenerator{text: text}, nil)
			_, err := a.Evaluate(context.Background(), eval.Request{
				SentenceText: "x", Model: eval.ModelFlash, Criteria: twoCriteria()[:1],
			})
			assert.Equal(t, eval.KindMalformedResponse, eval.KindOf(err), "%v", err)
		})
	}
}

func TestGeminiEmptySentence(t *testing.T) {
	gen := &fakeGenerator{}
	a := NewGeminiAdapterWithModels(gen, nil)
	_, err := a.Evaluate(context.Background(), eval.Request{SentenceText: "  ", Model: eval.ModelFlash, Criteria: twoCriteria()})
	assert.Equal(t, eval.KindMalformedResponse, eval.KindOf(err))
	assert.Empty(t, gen.lastModel)
}

// #endregion evaluate-tests

// #region error-mapping-tests

func TestGeminiErrorClassification(t *testing.T) {
	cases := []struct {
		err  error
		want eval.Kind
	}{
		{genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}, eval.KindRateLimited},
		{genai.APIError{Code: 504, Status: "DEADLINE_EXCEEDED"}, eval.KindTimeout},
		{genai.APIError{Code: 503, Status: "UNAVAILABLE"}, eval.KindModelUnavailable},
		{genai.APIError{Code: 404, Status: "NOT_FOUND"}, eval.KindModelUnavailable},
		{fmt.Errorf("post: %w", context.DeadlineExceeded), eval.KindTimeout},
		{errors.New("connection reset"), eval.KindModelUnavailable},
	}
	for _, tc := range cases {
		a := NewGeminiAdapterWithModels(&fakeGenerator{err: tc.err}, nil)
		_, err := a.Evaluate(context.Background(), eval.Request{SentenceText: "x", Model: eval.ModelFlash, Criteria: twoCriteria()})
		assert.Equal(t, tc.want, eval.KindOf(err), "%v", tc.err)
	}
}

func TestNewGeminiAdapterRequiresKey(t *testing.T) {
	_, err := NewGeminiAdapter(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "GEMINI_API_KEY"))
}

// #endregion error-mapping-tests
