package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielpatrickdp/sentence-eval/internal/eval"
)

// #region metrics

// Metrics instruments the batch evaluator. A nil *Metrics records nothing.
type Metrics struct {
	sentences *prometheus.CounterVec
	attempts  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	inFlight  prometheus.Gauge
}

// NewMetrics registers the evaluator collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// sentences counts finished sentences by final state and kind
		sentences: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentence_eval_sentences_total",
			Help: "Sentences finished by final state and error kind",
		}, []string{"state", "kind"}),

		// attempts counts adapter calls by outcome
		attempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sentence_eval_attempts_total",
			Help: "Adapter calls by model and outcome",
		}, []string{"model", "outcome"}),

		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sentence_eval_adapter_duration_seconds",
			Help:    "Adapter call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}, []string{"model"}),

		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "sentence_eval_in_flight",
			Help: "Sentences currently being evaluated",
		}),
	}
}

// #endregion

// #region observe

func (m *Metrics) observeAttempt(model eval.ModelChoice, kind eval.Kind, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if kind != "" {
		outcome = string(kind)
	}
	m.attempts.WithLabelValues(string(model), outcome).Inc()
	m.latency.WithLabelValues(string(model)).Observe(d.Seconds())
}

func (m *Metrics) observeOutcome(o Outcome) {
	if m == nil {
		return
	}
	kind := ""
	if o.Err != nil {
		kind = string(o.Err.Kind)
	}
	m.sentences.WithLabelValues(string(o.State), kind).Inc()
}

func (m *Metrics) trackInFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}

// #endregion
