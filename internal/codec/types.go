package codec

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region adapter

// Adapter evaluates one sentence against a set of criteria using an
// external model. Implementations keep no state between calls and are
// safe for concurrent use. Failures are *eval.Error values; when a model
// leaves criteria unaddressed the returned Feedback still carries the
// verdicts that were present alongside a PartialCriteriaMissing error.
type Adapter interface {
	Evaluate(ctx context.Context, req eval.Request) (Feedback, error)
}

// Feedback is a model's structured critique of one sentence.
type Feedback struct {
	Verdicts   map[string]eval.RuleVerdict
	Correction string
}

// #endregion adapter

// #region profiles

// ModelProfile configures one model choice.
type ModelProfile struct {
	Label           string  `yaml:"label"`
	Model           string  `yaml:"model" validate:"required"`
	Temperature     float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxOutputTokens int32   `yaml:"max_output_tokens" validate:"gte=0"`
}

// Profiles maps each model choice to its configuration.
type Profiles map[eval.ModelChoice]ModelProfile

// DefaultProfiles returns the three Gemini generations the tool ships with.
func DefaultProfiles() Profiles {
	return Profiles{
		eval.ModelFlash:  {Label: "Gemini 1.5 Flash (Fast)", Model: "gemini-1.5-flash", Temperature: 0.7, MaxOutputTokens: 400},
		eval.ModelPro:    {Label: "Gemini 1.5 Pro (Balanced)", Model: "gemini-1.5-pro", Temperature: 0.7, MaxOutputTokens: 400},
		eval.ModelLegacy: {Label: "Gemini 1.0 Pro (Legacy)", Model: "gemini-pro", Temperature: 0.7, MaxOutputTokens: 400},
	}
}

// Lookup returns the profile for a model choice.
func (p Profiles) Lookup(m eval.ModelChoice) (ModelProfile, error) {
	prof, ok := p[m]
	if !ok || prof.Model == "" {
		return ModelProfile{}, fmt.Errorf("no profile for model %q", m)
	}
	return prof, nil
}

// #endregion profiles

// #region completeness

// checkComplete reports criteria the feedback did not address.
func checkComplete(req eval.Request, fb Feedback) error {
	var missing []string
	for _, c := range req.Criteria {
		if _, ok := fb.Verdicts[c.ID]; !ok {
			missing = append(missing, c.ID)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &eval.Error{
		Kind:     eval.KindPartialCriteriaMissing,
		Reason:   fmt.Sprintf("model addressed %d of %d criteria", len(req.Criteria)-len(missing), len(req.Criteria)),
		Criteria: missing,
	}
}

// #endregion completeness
