package eval

import (
	"fmt"
	"time"
)

// #region score

// Score computes the weighted pass ratio in [0, 1]. When no verdict carries
// a positive weight every verdict counts once. No verdicts scores 0.
func Score(verdicts []RuleVerdict) float64 {
	if len(verdicts) == 0 {
		return 0
	}
	var total, passed float64
	weighted := false
	for _, v := range verdicts {
		if v.Weight > 0 {
			weighted = true
			break
		}
	}
	for _, v := range verdicts {
		w := 1.0
		if weighted {
			w = v.Weight
			if w < 0 {
				w = 0
			}
		}
		total += w
		if v.Passed {
			passed += w
		}
	}
	if total == 0 {
		return 0
	}
	return passed / total
}

// MeanRating averages verdict ratings, 0 when there are none.
func MeanRating(verdicts []RuleVerdict) float64 {
	if len(verdicts) == 0 {
		return 0
	}
	var sum int
	for _, v := range verdicts {
		sum += v.Rating
	}
	return float64(sum) / float64(len(verdicts))
}

// #endregion score

// #region assemble

// Assemble orders verdicts by the requested criteria and stamps weights.
// Every requested criterion must be present; verdicts for criteria that
// were not requested are ignored. A missing criterion yields a
// PartialCriteriaMissing error listing every absent id.
func Assemble(req Request, verdicts map[string]RuleVerdict, correction string, now time.Time) (Result, error) {
	ordered := make([]RuleVerdict, 0, len(req.Criteria))
	var missing []string
	seen := make(map[string]bool, len(req.Criteria))
	for _, c := range req.Criteria {
		if seen[c.ID] {
			return Result{}, Errorf(KindMalformedResponse, "criterion %s requested twice", c.ID)
		}
		seen[c.ID] = true

		v, ok := verdicts[c.ID]
		if !ok {
			missing = append(missing, c.ID)
			continue
		}
		if err := ValidateVerdict(v); err != nil {
			return Result{}, err
		}
		v.CriterionID = c.ID
		v.Weight = c.Weight
		ordered = append(ordered, v)
	}
	if len(missing) > 0 {
		return Result{}, &Error{
			Kind:     KindPartialCriteriaMissing,
			Reason:   fmt.Sprintf("%d of %d criteria not addressed", len(missing), len(req.Criteria)),
			Criteria: missing,
		}
	}
	return Result{
		SentenceText: req.SentenceText,
		Model:        req.Model,
		Timestamp:    now.UTC(),
		Verdicts:     ordered,
		Correction:   correction,
	}, nil
}

// ValidateVerdict checks the rating range.
func ValidateVerdict(v RuleVerdict) error {
	if v.Rating < MinRating || v.Rating > MaxRating {
		return &Error{
			Kind:     KindMalformedResponse,
			Reason:   fmt.Sprintf("rating %d outside %d..%d", v.Rating, MinRating, MaxRating),
			Criteria: []string{v.CriterionID},
		}
	}
	return nil
}

// #endregion assemble
