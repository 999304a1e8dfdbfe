package orchestrator

import (
	"testing"
	"time"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

func TestRetryPolicy_BudgetExhausted(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2, BackoffBase: time.Millisecond}

	state, _ := p.Next(1, eval.KindTimeout)
	if state != StateRetrying {
		t.Errorf("after 1 timeout: got %s, want retrying", state)
	}
	state, _ = p.Next(2, eval.KindTimeout)
	if state != StateFailedTerminal {
		t.Errorf("after 2 timeouts: got %s, want failed_terminal", state)
	}
}

func TestRetryPolicy_PermanentKindsNotRetried(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5}
	for _, k := range []eval.Kind{
		eval.KindMalformedResponse,
		eval.KindModelUnavailable,
		eval.KindPartialCriteriaMissing,
		eval.KindStorageFault,
	} {
		if state, _ := p.Next(1, k); state != StateFailedTerminal {
			t.Errorf("%s: got %s, want failed_terminal", k, state)
		}
	}
}

func TestRetryPolicy_RateLimitedRetries(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BackoffBase: 10 * time.Millisecond}
	state, delay := p.Next(1, eval.KindRateLimited)
	if state != StateRetrying {
		t.Fatalf("got %s, want retrying", state)
	}
	if delay != 10*time.Millisecond {
		t.Errorf("delay = %v, want 10ms", delay)
	}
}

func TestRetryPolicy_BackoffDoublesAndCaps(t *testing.T) {
	p := RetryPolicy{BackoffBase: 100 * time.Millisecond, BackoffMax: 350 * time.Millisecond}
	want := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond, 350 * time.Millisecond, 350 * time.Millisecond}
	for attempts, w := range want {
		if got := p.Backoff(attempts); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", attempts, got, w)
		}
	}
}
