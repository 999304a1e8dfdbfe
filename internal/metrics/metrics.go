// Package metrics derives trends and summary statistics from the history.
package metrics

import (
	"context"
	"iter"

	"github.com/danielpatrickdp/sentence-eval/internal/criteria"
	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region aggregator

// History is the read side of the history store.
type History interface {
	Query(ctx context.Context, tr eval.TimeRange) iter.Seq2[eval.Entry, error]
}

// Aggregator computes derived views on demand. It holds no state of its
// own, so repeated calls over an unchanged history return equal results.
type Aggregator struct {
	history  History
	registry *criteria.Registry
}

// New creates an Aggregator over history, validating criterion ids against
// registry.
func New(history History, registry *criteria.Registry) *Aggregator {
	return &Aggregator{history: history, registry: registry}
}

// #endregion aggregator

// #region trend

// Trend returns one point per entry in tr that carries a verdict for
// criterionID, in sequence order.
func (a *Aggregator) Trend(ctx context.Context, criterionID string, tr eval.TimeRange) ([]TrendPoint, error) {
	if _, err := a.registry.Get(criterionID); err != nil {
		return nil, err
	}
	points := []TrendPoint{}
	var seen, passed int
	for e, err := range a.history.Query(ctx, tr) {
		if err != nil {
			return nil, err
		}
		v, ok := e.Verdict(criterionID)
		if !ok {
			continue
		}
		seen++
		if v.Passed {
			passed++
		}
		points = append(points, TrendPoint{
			Sequence:  e.Sequence,
			Timestamp: e.Timestamp,
			Passed:    v.Passed,
			Rating:    v.Rating,
			PassRate:  float64(passed) / float64(seen),
		})
	}
	return points, nil
}

// Scores returns every entry's overall score in sequence order.
func (a *Aggregator) Scores(ctx context.Context, tr eval.TimeRange) ([]ScorePoint, error) {
	points := []ScorePoint{}
	for e, err := range a.history.Query(ctx, tr) {
		if err != nil {
			return nil, err
		}
		points = append(points, ScorePoint{Sequence: e.Sequence, Timestamp: e.Timestamp, Score: e.OverallScore()})
	}
	return points, nil
}

// #endregion trend

// #region pass-rates

// PassRates aggregates every criterion seen in tr. Registry criteria come
// first in registry order, including ones with no verdicts; ids found only
// in history follow in first-seen order.
func (a *Aggregator) PassRates(ctx context.Context, tr eval.TimeRange) ([]RulePassRate, error) {
	type accum struct {
		evaluated, passed, ratingSum int
	}
	byID := make(map[string]*accum)
	var extra []string
	for e, err := range a.history.Query(ctx, tr) {
		if err != nil {
			return nil, err
		}
		for _, v := range e.Verdicts {
			acc, ok := byID[v.CriterionID]
			if !ok {
				acc = &accum{}
				byID[v.CriterionID] = acc
				if _, err := a.registry.Get(v.CriterionID); err != nil {
					extra = append(extra, v.CriterionID)
				}
			}
			acc.evaluated++
			acc.ratingSum += v.Rating
			if v.Passed {
				acc.passed++
			}
		}
	}

	rate := func(id, name string) RulePassRate {
		r := RulePassRate{CriterionID: id, Name: name}
		if acc, ok := byID[id]; ok && acc.evaluated > 0 {
			r.Evaluated = acc.evaluated
			r.Passed = acc.passed
			r.Rate = float64(acc.passed) / float64(acc.evaluated)
			r.MeanRating = float64(acc.ratingSum) / float64(acc.evaluated)
		}
		return r
	}

	list := a.registry.List()
	out := make([]RulePassRate, 0, len(list)+len(extra))
	for _, c := range list {
		out = append(out, rate(c.ID, c.Name))
	}
	for _, id := range extra {
		out = append(out, rate(id, id))
	}
	return out, nil
}

// #endregion pass-rates

// #region summary

// Summary computes totals and score extremes over tr. Ties for best and
// worst keep the earliest entry.
func (a *Aggregator) Summary(ctx context.Context, tr eval.TimeRange) (Summary, error) {
	s := Summary{ByModel: make(map[eval.ModelChoice]int)}
	var scoreSum, ratingSum float64
	for e, err := range a.history.Query(ctx, tr) {
		if err != nil {
			return Summary{}, err
		}
		score := e.OverallScore()
		s.Total++
		scoreSum += score
		ratingSum += eval.MeanRating(e.Verdicts)
		s.ByModel[e.Model]++

		if s.Best == nil || score > s.BestScore {
			entry := e
			s.Best, s.BestScore = &entry, score
		}
		if s.Worst == nil || score < s.WorstScore {
			entry := e
			s.Worst, s.WorstScore = &entry, score
		}
		if s.First.IsZero() {
			s.First = e.Timestamp
		}
		s.Last = e.Timestamp
	}
	if s.Total > 0 {
		s.AverageScore = scoreSum / float64(s.Total)
		s.AverageRating = ratingSum / float64(s.Total)
	}
	return s, nil
}

// #endregion summary
