package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	analyses     *prometheus.CounterVec
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	judgments    *prometheus.CounterVec
	confidence   *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder. Call once per process.
func New() *Recorder {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the collectors on reg.
func NewWith(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_analyses_total",
				Help: "Completed analysis runs by outcome",
			},
			[]string{"pair", "outcome"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_messages_sent_total",
				Help: "Total number of messages sent to backend",
			},
			[]string{"backend", "pair"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		judgments: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalflow_judgments_total",
				Help: "External judgment calls by model and result",
			},
			[]string{"model", "result"},
		),
		confidence: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalflow_last_confidence",
				Help: "Confidence of the last prediction for a pair",
			},
			[]string{"pair"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalflow_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordAnalysis counts a finished run.
func (r *Recorder) RecordAnalysis(pair, outcome string) {
	r.analyses.WithLabelValues(pair, outcome).Inc()
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, pair string) {
	r.messagesSent.WithLabelValues(backend, pair).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordJudgment counts an oracle call.
func (r *Recorder) RecordJudgment(model, result string) {
	r.judgments.WithLabelValues(model, result).Inc()
}

// RecordConfidence stores the last confidence for a pair.
func (r *Recorder) RecordConfidence(pair string, confidence float64) {
	r.confidence.WithLabelValues(pair).Set(confidence)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordAnalysis(string, string)    {}
func (Nop) RecordMessageSent(string, string) {}
func (Nop) RecordError(string)               {}
func (Nop) RecordJudgment(string, string)    {}
func (Nop) RecordConfidence(string, float64) {}
func (Nop) RecordLatency(string, float64)    {}
