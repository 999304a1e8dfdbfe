package metrics

import (
	"time"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region trend-point

// TrendPoint is one entry's contribution to a criterion trend. PassRate is
// the cumulative pass rate up to and including this entry.
type TrendPoint struct {
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Passed    bool      `json:"passed"`
	Rating    int       `json:"rating"`
	PassRate  float64   `json:"passRate"`
}

// #endregion trend-point

// #region score-point

// ScorePoint is one entry's overall score.
type ScorePoint struct {
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}

// #endregion score-point

// #region rule-pass-rate

// RulePassRate aggregates one criterion over a time range.
type RulePassRate struct {
	CriterionID string  `json:"criterionId"`
	Name        string  `json:"name"`
	Evaluated   int     `json:"evaluated"`
	Passed      int     `json:"passed"`
	Rate        float64 `json:"rate"`
	MeanRating  float64 `json:"meanRating"`
}

// #endregion rule-pass-rate

// #region summary

// Summary is the overall performance view of a time range. Best and Worst
// are nil when the range is empty.
type Summary struct {
	Total         int                      `json:"total"`
	AverageScore  float64                  `json:"averageScore"`
	BestScore     float64                  `json:"bestScore"`
	WorstScore    float64                  `json:"worstScore"`
	AverageRating float64                  `json:"averageRating"`
	Best          *eval.Entry              `json:"best,omitempty"`
	Worst         *eval.Entry              `json:"worst,omitempty"`
	ByModel       map[eval.ModelChoice]int `json:"byModel"`
	First         time.Time                `json:"first"`
	Last          time.Time                `json:"last"`
}

// #endregion summary
