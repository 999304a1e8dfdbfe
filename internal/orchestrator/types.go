package orchestrator

// #region imports
import (
	"context"
	"time"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #endregion

// #region sentence-state

// SentenceState is where a sentence is in its evaluation lifecycle.
type SentenceState string

const (
	StatePending        SentenceState = "pending"
	StateRetrying       SentenceState = "retrying"
	StateSucceeded      SentenceState = "succeeded"
	StateFailedTerminal SentenceState = "failed_terminal"
)

// #endregion

// #region outcome

// Outcome is the per-sentence result of a batch. Exactly one of Entry and
// Err is set once the batch returns.
type Outcome struct {
	Index    int
	Sentence string
	State    SentenceState
	Result   *eval.Result
	Entry    *eval.Entry
	Err      *eval.Error
	Attempts int
}

// OK reports whether the sentence was evaluated and recorded.
func (o Outcome) OK() bool { return o.State == StateSucceeded }

// #endregion

// #region config

// Config bounds the batch worker pool and the retry loop.
type Config struct {
	MaxInFlight       int                `yaml:"max_in_flight" validate:"gte=1,lte=64"`
	MaxAttempts       int                `yaml:"max_attempts" validate:"gte=1,lte=10"`
	BackoffBase       time.Duration      `yaml:"backoff_base" validate:"gte=0"`
	BackoffMax        time.Duration      `yaml:"backoff_max" validate:"gte=0"`
	RequestsPerSecond float64            `yaml:"requests_per_second" validate:"gte=0"`
	CallTimeout       time.Duration      `yaml:"call_timeout" validate:"gt=0"`
	Level             eval.FeedbackLevel `yaml:"feedback_level" validate:"oneof=concise detailed comprehensive"`
}

// DefaultConfig matches the pacing of a free-tier API key.
func DefaultConfig() Config {
	return Config{
		MaxInFlight:       4,
		MaxAttempts:       3,
		BackoffBase:       500 * time.Millisecond,
		BackoffMax:        8 * time.Second,
		RequestsPerSecond: 2,
		CallTimeout:       30 * time.Second,
		Level:             eval.FeedbackDetailed,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = d.MaxInFlight
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BackoffMax < c.BackoffBase {
		c.BackoffMax = c.BackoffBase
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.Level == "" {
		c.Level = d.Level
	}
	return c
}

// #endregion

// #region attempt-record

// AttemptRecord is one adapter call, persisted in attempt_log.
type AttemptRecord struct {
	BatchID   string
	Index     int
	Attempt   int
	Model     eval.ModelChoice
	Kind      eval.Kind // empty on success
	Duration  time.Duration
	CreatedAt time.Time
}

// #endregion

// #region interfaces

// Recorder durably stores a successful result. *state.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, res eval.Result) (eval.Entry, error)
}

// #endregion
