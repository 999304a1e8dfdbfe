package eval

import (
	"fmt"
	"strings"
	"time"
)

// #region model-choice

// ModelChoice selects which model profile evaluates a sentence.
type ModelChoice string

const (
	ModelFlash  ModelChoice = "flash"
	ModelPro    ModelChoice = "pro"
	ModelLegacy ModelChoice = "legacy"
)

// ModelChoices lists every supported choice in display order.
var ModelChoices = []ModelChoice{ModelFlash, ModelPro, ModelLegacy}

// ParseModelChoice accepts flash, pro or legacy in any case.
func ParseModelChoice(s string) (ModelChoice, error) {
	m := ModelChoice(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown model %q (want flash, pro or legacy)", s)
	}
	return m, nil
}

// Valid reports whether m is one of the known choices.
func (m ModelChoice) Valid() bool {
	switch m {
	case ModelFlash, ModelPro, ModelLegacy:
		return true
	}
	return false
}

// #endregion model-choice

// #region feedback-level

// FeedbackLevel controls how much prose the model returns in suggestions.
type FeedbackLevel string

const (
	FeedbackConcise       FeedbackLevel = "concise"
	FeedbackDetailed      FeedbackLevel = "detailed"
	FeedbackComprehensive FeedbackLevel = "comprehensive"
)

// ParseFeedbackLevel accepts concise, detailed or comprehensive in any case.
func ParseFeedbackLevel(s string) (FeedbackLevel, error) {
	l := FeedbackLevel(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case FeedbackConcise, FeedbackDetailed, FeedbackComprehensive:
		return l, nil
	}
	return "", fmt.Errorf("unknown feedback level %q", s)
}

// #endregion feedback-level

// #region criterion

// Criterion is one linguistic rule a sentence is checked against.
type Criterion struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description" yaml:"description"`
	Weight      float64 `json:"weight" yaml:"weight"`
}

// #endregion criterion

// #region verdict

const (
	MinRating = 1
	MaxRating = 5
)

// RuleVerdict is the outcome of one criterion applied to one sentence.
// Weight is copied from the criterion when the verdict is produced.
type RuleVerdict struct {
	CriterionID string  `json:"criterionId"`
	Passed      bool    `json:"passed"`
	Rating      int     `json:"rating"`
	Suggestion  string  `json:"suggestion,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
}

// #endregion verdict

// #region request

// Request is a single sentence evaluation against a set of criteria.
type Request struct {
	SentenceText string
	Model        ModelChoice
	Criteria     []Criterion
	Level        FeedbackLevel
}

// #endregion request

// #region result

// Result is an evaluated sentence. Verdicts follow the requested criteria order.
type Result struct {
	SentenceText string
	Model        ModelChoice
	Timestamp    time.Time
	Verdicts     []RuleVerdict
	Correction   string
}

// OverallScore is the weighted pass ratio of the verdicts.
func (r Result) OverallScore() float64 {
	return Score(r.Verdicts)
}

// Verdict returns the verdict for a criterion, if present.
func (r Result) Verdict(criterionID string) (RuleVerdict, bool) {
	for _, v := range r.Verdicts {
		if v.CriterionID == criterionID {
			return v, true
		}
	}
	return RuleVerdict{}, false
}

// #endregion result

// #region entry

// Entry is a recorded Result with its history sequence number.
type Entry struct {
	Sequence int64
	Result
}

// #endregion entry

// #region time-range

// TimeRange bounds a history query. From is inclusive, To exclusive;
// a zero bound is open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls within the range.
func (tr TimeRange) Contains(t time.Time) bool {
	if !tr.From.IsZero() && t.Before(tr.From) {
		return false
	}
	if !tr.To.IsZero() && !t.Before(tr.To) {
		return false
	}
	return true
}

// LastWeek returns the seven days ending at now.
func LastWeek(now time.Time) TimeRange {
	return TimeRange{From: now.Add(-7 * 24 * time.Hour), To: now}
}

// #endregion time-range
