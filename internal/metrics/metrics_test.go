package metrics

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/sentence-eval/internal/criteria"
	"github.com/danielpatrickdp/sentence-eval/internal/eval"
	"github.com/danielpatrickdp/sentence-eval/internal/state"
)

var now = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(t *testing.T, s *state.Store, at time.Time, model eval.ModelChoice, verdicts ...eval.RuleVerdict) {
	t.Helper()
	_, err := s.Record(context.Background(), eval.Result{
		SentenceText: "s", Model: model, Timestamp: at, Verdicts: verdicts,
	})
	require.NoError(t, err)
}

func v(id string, passed bool, rating int) eval.RuleVerdict {
	return eval.RuleVerdict{CriterionID: id, Passed: passed, Rating: rating, Weight: 1}
}

// #region trend-tests

func TestTrend_LastWeekKeepsEntriesInRange(t *testing.T) {
	s := newStore(t)
	record(t, s, now.Add(-10*24*time.Hour), eval.ModelFlash, v("short", false, 1))
	record(t, s, now.Add(-3*24*time.Hour), eval.ModelFlash, v("short", true, 5))
	record(t, s, now.Add(-time.Hour), eval.ModelFlash, v("short", false, 2))

	agg := New(s, criteria.Default())
	points, err := agg.Trend(context.Background(), "short", eval.LastWeek(now))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, int64(2), points[0].Sequence)
	assert.Equal(t, 1.0, points[0].PassRate)
	assert.Equal(t, int64(3), points[1].Sequence)
	assert.Equal(t, 0.5, points[1].PassRate)
}

func TestTrend_Idempotent(t *testing.T) {
	s := newStore(t)
	record(t, s, now, eval.ModelPro, v("short", true, 4), v("relevant", false, 2))
	record(t, s, now.Add(time.Minute), eval.ModelPro, v("short", false, 2))

	agg := New(s, criteria.Default())
	first, err := agg.Trend(context.Background(), "short", eval.TimeRange{})
	require.NoError(t, err)
	second, err := agg.Trend(context.Background(), "short", eval.TimeRange{})
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("trend changed between calls (-first +second):\n%s", diff)
	}
}

func TestTrend_SkipsEntriesWithoutCriterion(t *testing.T) {
	s := newStore(t)
	record(t, s, now, eval.ModelFlash, v("relevant", true, 5))
	record(t, s, now, eval.ModelFlash, v("short", true, 5))

	points, err := New(s, criteria.Default()).Trend(context.Background(), "short", eval.TimeRange{})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, int64(2), points[0].Sequence)
}

func TestTrend_UnknownCriterion(t *testing.T) {
	_, err := New(newStore(t), criteria.Default()).Trend(context.Background(), "rule-x", eval.TimeRange{})
	assert.ErrorIs(t, err, eval.ErrNotFound)
}

func TestTrend_EmptyHistoryGivesNoPoints(t *testing.T) {
	points, err := New(newStore(t), criteria.Default()).Trend(context.Background(), "short", eval.TimeRange{})
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestScores(t *testing.T) {
	s := newStore(t)
	record(t, s, now, eval.ModelFlash, v("short", true, 5), v("relevant", false, 2))
	scores, err := New(s, criteria.Default()).Scores(context.Background(), eval.TimeRange{})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, 0.5, scores[0].Score)
}

// #endregion trend-tests

// #region pass-rate-tests

func TestPassRates(t *testing.T) {
	s := newStore(t)
	record(t, s, now, eval.ModelFlash, v("short", true, 5), v("custom-rule", false, 1))
	record(t, s, now, eval.ModelFlash, v("short", false, 3))

	reg := criteria.Default()
	rates, err := New(s, reg).PassRates(context.Background(), eval.TimeRange{})
	require.NoError(t, err)
	require.Len(t, rates, reg.Len()+1)

	byID := map[string]RulePassRate{}
	for _, r := range rates {
		byID[r.CriterionID] = r
	}
	short := byID["short"]
	assert.Equal(t, 2, short.Evaluated)
	assert.Equal(t, 1, short.Passed)
	assert.Equal(t, 0.5, short.Rate)
	assert.Equal(t, 4.0, short.MeanRating)

	assert.Zero(t, byID["relevant"].Evaluated)
	assert.Equal(t, "custom-rule", rates[len(rates)-1].CriterionID)
	assert.Equal(t, reg.List()[0].ID, rates[0].CriterionID)
}

// #endregion pass-rate-tests

// #region summary-tests

func TestSummary(t *testing.T) {
	s := newStore(t)
	record(t, s, now, eval.ModelFlash, v("short", true, 5), v("relevant", true, 5))
	record(t, s, now.Add(time.Minute), eval.ModelPro, v("short", false, 1), v("relevant", false, 1))
	record(t, s, now.Add(2*time.Minute), eval.ModelFlash, v("short", true, 4), v("relevant", false, 2))

	sum, err := New(s, criteria.Default()).Summary(context.Background(), eval.TimeRange{})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Total)
	assert.InDelta(t, 0.5, sum.AverageScore, 1e-9)
	assert.Equal(t, 1.0, sum.BestScore)
	assert.Equal(t, 0.0, sum.WorstScore)
	assert.InDelta(t, 3.0, sum.AverageRating, 1e-9)
	require.NotNil(t, sum.Best)
	assert.Equal(t, int64(1), sum.Best.Sequence)
	require.NotNil(t, sum.Worst)
	assert.Equal(t, int64(2), sum.Worst.Sequence)
	assert.Equal(t, map[eval.ModelChoice]int{eval.ModelFlash: 2, eval.ModelPro: 1}, sum.ByModel)
	assert.True(t, sum.First.Equal(now))
	assert.True(t, sum.Last.Equal(now.Add(2*time.Minute)))
}

func TestSummary_Empty(t *testing.T) {
	sum, err := New(newStore(t), criteria.Default()).Summary(context.Background(), eval.TimeRange{})
	require.NoError(t, err)
	assert.Zero(t, sum.Total)
	assert.Nil(t, sum.Best)
	assert.Zero(t, sum.AverageScore)
}

// #endregion summary-tests

// #region error-tests

type brokenHistory struct{}

func (brokenHistory) Query(context.Context, eval.TimeRange) iter.Seq2[eval.Entry, error] {
	return func(yield func(eval.Entry, error) bool) {
		yield(eval.Entry{}, eval.Wrap(eval.KindStorageFault, errors.New("disk gone"), ""))
	}
}

func TestAggregator_PropagatesStorageFault(t *testing.T) {
	agg := New(brokenHistory{}, criteria.Default())
	ctx := context.Background()

	_, err := agg.Trend(ctx, "short", eval.TimeRange{})
	assert.ErrorIs(t, err, eval.ErrStorageFault)
	_, err = agg.PassRates(ctx, eval.TimeRange{})
	assert.ErrorIs(t, err, eval.ErrStorageFault)
	_, err = agg.Summary(ctx, eval.TimeRange{})
	assert.ErrorIs(t, err, eval.ErrStorageFault)
	_, err = agg.Scores(ctx, eval.TimeRange{})
	assert.ErrorIs(t, err, eval.ErrStorageFault)
}

// #endregion error-tests
