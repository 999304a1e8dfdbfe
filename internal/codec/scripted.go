package codec

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region step

// Step is one canned adapter reply. A non-empty Kind makes the call fail;
// otherwise Verdicts are returned. Delay simulates latency and honors ctx.
type Step struct {
	Kind       eval.Kind
	Verdicts   map[string]eval.RuleVerdict
	Correction string
	Delay      time.Duration
}

// PassAll builds verdicts passing every criterion with the given rating.
func PassAll(criteria []eval.Criterion, rating int) map[string]eval.RuleVerdict {
	out := make(map[string]eval.RuleVerdict, len(criteria))
	for _, c := range criteria {
		out[c.ID] = eval.RuleVerdict{CriterionID: c.ID, Passed: true, Rating: rating}
	}
	return out
}

// #endregion step

// #region scripted-adapter

// ScriptedAdapter replays canned replies keyed by sentence. Each call for a
// sentence consumes the next step; the last step repeats once exhausted.
// Sentences with no script pass every criterion with rating 5, except a
// blank sentence, which is malformed as it is for the model adapters. Unlike the
// model adapters it keeps per-sentence cursors, so it belongs to replay
// and tests.
type ScriptedAdapter struct {
	mu      sync.Mutex
	scripts map[string][]Step
	calls   map[string]int
}

// NewScriptedAdapter creates an adapter from per-sentence scripts.
func NewScriptedAdapter(scripts map[string][]Step) *ScriptedAdapter {
	if scripts == nil {
		scripts = map[string][]Step{}
	}
	return &ScriptedAdapter{scripts: scripts, calls: make(map[string]int)}
}

// Calls returns how many times a sentence was evaluated.
func (s *ScriptedAdapter) Calls(sentence string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[sentence]
}

// TotalCalls returns the number of Evaluate calls across all sentences.
func (s *ScriptedAdapter) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Evaluate returns the next scripted step for req.SentenceText.
func (s *ScriptedAdapter) Evaluate(ctx context.Context, req eval.Request) (Feedback, error) {
	s.mu.Lock()
	n := s.calls[req.SentenceText]
	s.calls[req.SentenceText] = n + 1
	script := s.scripts[req.SentenceText]
	s.mu.Unlock()

	step := Step{Verdicts: PassAll(req.Criteria, eval.MaxRating)}
	if strings.TrimSpace(req.SentenceText) == "" {
		step = Step{Kind: eval.KindMalformedResponse}
	}
	if len(script) > 0 {
		step = script[min(n, len(script)-1)]
	}

	if step.Delay > 0 {
		t := time.NewTimer(step.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return Feedback{}, eval.Wrap(eval.KindTimeout, ctx.Err(), "")
		}
	}

	if step.Kind != "" {
		return Feedback{}, eval.Errorf(step.Kind, "scripted failure on call %d", n+1)
	}
	fb := Feedback{Verdicts: make(map[string]eval.RuleVerdict, len(step.Verdicts)), Correction: step.Correction}
	for id, v := range step.Verdicts {
		v.CriterionID = id
		fb.Verdicts[id] = v
	}
	return fb, checkComplete(req, fb)
}

// #endregion scripted-adapter
