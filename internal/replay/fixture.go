package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/sentence-eval/internal/codec"
	"github.com/danielpatrickdp/sentence-eval/internal/eval"
	"github.com/danielpatrickdp/sentence-eval/internal/orchestrator"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Model           string                  `json:"model"`
	Criteria        []string                `json:"criteria"`
	Config          FixtureConfig           `json:"config"`
	Sentences       []FixtureSentence       `json:"sentences"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig mirrors orchestrator.Config with JSON tags.
type FixtureConfig struct {
	MaxInFlight   int `json:"max_in_flight"`
	MaxAttempts   int `json:"max_attempts"`
	BackoffMS     int `json:"backoff_ms"`
	CallTimeoutMS int `json:"call_timeout_ms"`
}

// FixtureSentence is one batch input and its scripted adapter replies.
type FixtureSentence struct {
	Text  string        `json:"text"`
	Steps []FixtureStep `json:"steps"`
}

// FixtureStep mirrors codec.Step with JSON tags. A step with neither Kind
// nor Verdicts passes every criterion at PassRating (default 5).
type FixtureStep struct {
	Kind       string                    `json:"kind,omitempty"`
	DelayMS    int                       `json:"delay_ms,omitempty"`
	PassRating int                       `json:"pass_rating,omitempty"`
	Verdicts   map[string]FixtureVerdict `json:"verdicts,omitempty"`
	Correction string                    `json:"correction,omitempty"`
}

// FixtureVerdict is a scripted verdict for one criterion.
type FixtureVerdict struct {
	Passed     bool   `json:"passed"`
	Rating     int    `json:"rating"`
	Suggestion string `json:"suggestion,omitempty"`
}

// FixtureExpectedResult captures the expected outcome per sentence.
type FixtureExpectedResult struct {
	Index    int    `json:"index"`
	State    string `json:"state"`
	Kind     string `json:"kind,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if _, err := eval.ParseModelChoice(f.Model); err != nil {
		return nil, fmt.Errorf("fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToConfig converts a FixtureConfig to an orchestrator.Config. Replays are
// never rate limited.
func (fc *FixtureConfig) ToConfig() orchestrator.Config {
	return orchestrator.Config{
		MaxInFlight: fc.MaxInFlight,
		MaxAttempts: fc.MaxAttempts,
		BackoffBase: time.Duration(fc.BackoffMS) * time.Millisecond,
		BackoffMax:  time.Duration(fc.BackoffMS) * time.Millisecond * 8,
		CallTimeout: time.Duration(fc.CallTimeoutMS) * time.Millisecond,
	}
}

// ToSteps converts scripted steps to codec steps for the given criteria.
func (fs *FixtureSentence) ToSteps(criteria []eval.Criterion) []codec.Step {
	steps := make([]codec.Step, len(fs.Steps))
	for i, s := range fs.Steps {
		step := codec.Step{
			Kind:       eval.Kind(s.Kind),
			Correction: s.Correction,
			Delay:      time.Duration(s.DelayMS) * time.Millisecond,
		}
		switch {
		case s.Kind != "":
		case len(s.Verdicts) > 0:
			step.Verdicts = make(map[string]eval.RuleVerdict, len(s.Verdicts))
			for id, v := range s.Verdicts {
				step.Verdicts[id] = eval.RuleVerdict{CriterionID: id, Passed: v.Passed, Rating: v.Rating, Suggestion: v.Suggestion}
			}
		default:
			rating := s.PassRating
			if rating == 0 {
				rating = eval.MaxRating
			}
			step.Verdicts = codec.PassAll(criteria, rating)
		}
		steps[i] = step
	}
	return steps
}

// #endregion fixture-loader
