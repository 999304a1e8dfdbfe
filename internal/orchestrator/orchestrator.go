package orchestrator

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/danielpatrickdp/sentence-eval/internal/codec"
	"github.com/danielpatrickdp/sentence-eval/internal/eval"
	"github.com/danielpatrickdp/sentence-eval/internal/logging"
)

// #endregion

// #region evaluator-struct

// Evaluator runs batches of sentences through an adapter, retries
// transient failures and records every success before returning it.
type Evaluator struct {
	adapter  codec.Adapter
	history  Recorder
	cfg      Config
	policy   RetryPolicy
	limiter  *rate.Limiter
	metrics  *Metrics
	attempts *AttemptLog
	audit    *logging.AuditLog
	logger   *zap.Logger
	now      func() time.Time
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger. The evaluator logs under the "orch" name.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) { e.logger = logging.OrNop(l).Named("orch") }
}

// WithMetrics enables prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// WithAttemptLog persists every adapter call.
func WithAttemptLog(l *AttemptLog) Option {
	return func(e *Evaluator) { e.attempts = l }
}

// WithAudit writes one batch_runs row per batch.
func WithAudit(a *logging.AuditLog) Option {
	return func(e *Evaluator) { e.audit = a }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// #endregion

// #region constructor

// New creates an Evaluator. Zero config fields take DefaultConfig values.
func New(adapter codec.Adapter, history Recorder, cfg Config, opts ...Option) *Evaluator {
	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	e := &Evaluator{
		adapter: adapter,
		history: history,
		cfg:     cfg,
		policy:  policyFor(cfg),
		limiter: rate.NewLimiter(limit, max(1, cfg.MaxInFlight)),
		logger:  zap.NewNop().Named("orch"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Evaluator) Config() Config { return e.cfg }

// #endregion

// #region evaluate-batch

// Evaluate evaluates sentences against criteria with one model. The
// returned outcomes match the input order and length. Failures are
// reported per sentence; the error return is reserved for invalid
// arguments: an unknown model, or no or duplicate criteria. After ctx is cancelled no new sentence or retry starts, calls
// already in flight finish under CallTimeout, and sentences never started
// fail with kind Canceled.
func (e *Evaluator) Evaluate(ctx context.Context, sentences []string, criteria []eval.Criterion, model eval.ModelChoice) ([]Outcome, error) {
	if !model.Valid() {
		return nil, fmt.Errorf("evaluate batch: unknown model %q", model)
	}
	if len(criteria) == 0 {
		return nil, errors.New("evaluate batch: no criteria selected")
	}
	seen := make(map[string]struct{}, len(criteria))
	for _, c := range criteria {
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("evaluate batch: criterion %q selected twice", c.ID)
		}
		seen[c.ID] = struct{}{}
	}

	batchID := uuid.NewString()
	started := e.now()
	log := e.logger.With(zap.String("batch_id", batchID))
	log.Info("batch start",
		zap.Int("sentences", len(sentences)),
		zap.Int("criteria", len(criteria)),
		zap.String("model", string(model)))

	out := make([]Outcome, len(sentences))
	for i, s := range sentences {
		out[i] = Outcome{Index: i, Sentence: s, State: StatePending}
	}

	var calls atomic.Int64
	sem := semaphore.NewWeighted(int64(e.cfg.MaxInFlight))
	var g errgroup.Group
	for i := range sentences {
		// Acquire may succeed on a done context, so check first.
		if ctx.Err() != nil || sem.Acquire(ctx, 1) != nil {
			e.cancelRemaining(ctx, out[i:])
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			e.metrics.trackInFlight(1)
			defer e.metrics.trackInFlight(-1)
			out[i] = e.evaluateOne(ctx, log, batchID, out[i], criteria, model, &calls)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range out {
		e.metrics.observeOutcome(o)
	}
	e.logBatch(ctx, log, batchID, model, out, int(calls.Load()), started)
	return out, nil
}

func (e *Evaluator) cancelRemaining(ctx context.Context, rest []Outcome) {
	for j := range rest {
		rest[j].State = StateFailedTerminal
		rest[j].Err = eval.Wrap(eval.KindCanceled, context.Cause(ctx), "batch canceled before sentence started")
	}
}

// #endregion

// #region evaluate-one

// evaluateOne drives one sentence through Pending, Retrying and a final
// state.
func (e *Evaluator) evaluateOne(
	ctx context.Context,
	log *zap.Logger,
	batchID string,
	o Outcome,
	criteria []eval.Criterion,
	model eval.ModelChoice,
	calls *atomic.Int64,
) Outcome {
	req := eval.Request{SentenceText: o.Sentence, Model: model, Criteria: criteria, Level: e.cfg.Level}
	log = log.With(zap.Int("index", o.Index))

	for {
		if err := e.limiter.Wait(ctx); err != nil {
			return e.canceled(o, err)
		}

		res, err := e.attempt(ctx, batchID, o.Index, o.Attempts+1, req)
		o.Attempts++
		calls.Add(1)

		if err == nil {
			entry, recErr := e.history.Record(context.WithoutCancel(ctx), res)
			if recErr != nil {
				o.State = StateFailedTerminal
				o.Err = recordFault(recErr)
				log.Error("record failed", zap.Error(recErr))
				return o
			}
			o.State = StateSucceeded
			o.Result = &entry.Result
			o.Entry = &entry
			log.Debug("sentence recorded", zap.Int64("sequence", entry.Sequence), zap.Int("attempts", o.Attempts))
			return o
		}

		evalErr := classify(err)
		next, delay := e.policy.Next(o.Attempts, evalErr.Kind)
		if next == StateFailedTerminal {
			o.State = StateFailedTerminal
			o.Err = evalErr
			log.Warn("sentence failed",
				zap.String("kind", string(evalErr.Kind)),
				zap.Int("attempts", o.Attempts),
				zap.String("reason", evalErr.Reason))
			return o
		}

		o.State = StateRetrying
		o.Err = evalErr
		log.Info("retrying",
			zap.String("kind", string(evalErr.Kind)),
			zap.Int("attempt", o.Attempts),
			zap.Duration("backoff", delay))
		if err := sleep(ctx, delay); err != nil {
			return e.canceled(o, err)
		}
	}
}

// attempt makes one adapter call on a context detached from batch
// cancellation and bounded by CallTimeout, then assembles the result.
func (e *Evaluator) attempt(ctx context.Context, batchID string, index, n int, req eval.Request) (eval.Result, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	fb, err := e.adapter.Evaluate(callCtx, req)
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	var res eval.Result
	if err == nil {
		res, err = eval.Assemble(req, fb.Verdicts, fb.Correction, e.now())
	}
	d := time.Since(start)

	var kind eval.Kind
	if err != nil {
		kind = classify(err).Kind
	}
	e.metrics.observeAttempt(req.Model, kind, d)
	if e.attempts != nil {
		rec := AttemptRecord{BatchID: batchID, Index: index, Attempt: n, Model: req.Model, Kind: kind, Duration: d}
		if logErr := e.attempts.Record(context.WithoutCancel(ctx), rec); logErr != nil {
			e.logger.Warn("attempt log write failed", zap.Error(logErr))
		}
	}
	return res, err
}

// canceled closes out a sentence whose next attempt was stopped by ctx.
func (e *Evaluator) canceled(o Outcome, cause error) Outcome {
	reason := "batch canceled before sentence started"
	if o.Attempts > 0 {
		reason = fmt.Sprintf("batch canceled after %d attempt(s)", o.Attempts)
		if o.Err != nil {
			reason += ", last error: " + o.Err.Error()
		}
	}
	o.State = StateFailedTerminal
	o.Err = eval.Wrap(eval.KindCanceled, cause, reason)
	return o
}

// #endregion

// #region helpers

// classify maps any adapter or assembly error onto the taxonomy.
func classify(err error) *eval.Error {
	if errors.Is(err, context.DeadlineExceeded) && eval.KindOf(err) == "" {
		return eval.Wrap(eval.KindTimeout, err, "adapter call exceeded its deadline")
	}
	return eval.AsError(err, eval.KindModelUnavailable)
}

// recordFault classifies a Recorder failure as StorageFault, reusing the
// inner reason when the recorder already returned an *eval.Error.
func recordFault(err error) *eval.Error {
	reason := err.Error()
	var inner *eval.Error
	if errors.As(err, &inner) && inner.Reason != "" {
		reason = inner.Reason
	}
	return eval.Wrap(eval.KindStorageFault, err, "record result: "+reason)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Evaluator) logBatch(ctx context.Context, log *zap.Logger, batchID string, model eval.ModelChoice, out []Outcome, calls int, started time.Time) {
	run := logging.BatchRun{
		ID:         batchID,
		Model:      string(model),
		Sentences:  len(out),
		Attempts:   calls,
		StartedAt:  started,
		FinishedAt: e.now(),
	}
	for _, o := range out {
		switch {
		case o.OK():
			run.Succeeded++
		case o.Err != nil && o.Err.Kind == eval.KindCanceled:
			run.Canceled++
		default:
			run.Failed++
			if run.Note == "" && o.Err != nil {
				run.Note = o.Err.Error()
			}
		}
	}
	log.Info("batch done",
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", run.Failed),
		zap.Int("canceled", run.Canceled),
		zap.Int("attempts", run.Attempts),
		zap.Duration("elapsed", run.Duration()))

	if e.audit == nil {
		return
	}
	if err := e.audit.LogBatch(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("batch audit write failed", zap.Error(err))
	}
}

// #endregion
