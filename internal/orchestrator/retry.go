package orchestrator

import (
	"time"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region policy

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait first. Only transient kinds are retried.
type RetryPolicy struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// policyFor extracts the retry settings from a normalized config.
func policyFor(cfg Config) RetryPolicy {
	return RetryPolicy{MaxAttempts: cfg.MaxAttempts, BackoffBase: cfg.BackoffBase, BackoffMax: cfg.BackoffMax}
}

// #endregion

// #region next

// Next returns the state after attempt number attempts failed with kind,
// and the delay before the following attempt when that state is Retrying.
func (p RetryPolicy) Next(attempts int, kind eval.Kind) (SentenceState, time.Duration) {
	if !kind.Transient() {
		return StateFailedTerminal, 0
	}
	// Budget spent: attempts counts every adapter call made so far.
	if attempts >= p.MaxAttempts {
		return StateFailedTerminal, 0
	}
	return StateRetrying, p.Backoff(attempts)
}

// Backoff doubles from BackoffBase for each completed attempt, capped at
// BackoffMax.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	if p.BackoffBase <= 0 || attempts <= 0 {
		return 0
	}
	d := p.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if p.BackoffMax > 0 && d >= p.BackoffMax {
			return p.BackoffMax
		}
	}
	if p.BackoffMax > 0 && d > p.BackoffMax {
		return p.BackoffMax
	}
	return d
}

// #endregion
