package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	pkgkafka "SignalFlow/pkg/kafka"
)

// Analyzer is the part of AnalysisUseCase the request handler needs.
type Analyzer interface {
	RunAnalysis(ctx context.Context, pair string, tf domrepo.Timeframe, sink domrepo.ProgressSink) *models.Prediction
}

// KafkaRequestsHandler consumes analysis requests; each run publishes its own prediction.
type KafkaRequestsHandler struct {
	topic    string
	analyzer Analyzer
	metrics  domrepo.Metrics
}

func NewKafkaRequestsHandler(topic string, analyzer Analyzer, metrics domrepo.Metrics) *KafkaRequestsHandler {
	return &KafkaRequestsHandler{topic: topic, analyzer: analyzer, metrics: metrics}
}

func (h *KafkaRequestsHandler) Topic() string { return h.topic }

// incoming message schema: {pair, timeframe, requestedAt}
func (h *KafkaRequestsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Pair        string `json:"pair"`
		Timeframe   string `json:"timeframe"`
		RequestedAt int64  `json:"requestedAt"` // ms
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	m.Pair = strings.TrimSpace(m.Pair)
	if m.Pair == "" {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("analysis request: pair required")
	}
	tf := domrepo.DefaultTimeframe()
	if m.Timeframe != "" {
		tf = domrepo.Timeframe(strings.TrimSpace(m.Timeframe))
		if !domrepo.IsValidTimeframe(tf) {
			h.metrics.RecordError("consumer_invalid")
			return fmt.Errorf("analysis request: unsupported timeframe %q", m.Timeframe)
		}
	}
	if m.RequestedAt > 0 {
		h.metrics.RecordLatency("request_queue_seconds", time.Since(time.UnixMilli(m.RequestedAt)).Seconds())
	}

	p := h.analyzer.RunAnalysis(ctx, m.Pair, tf, domrepo.DiscardProgress)
	if p != nil && p.Failed() {
		h.metrics.RecordError("request_failed")
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaRequestsHandler)(nil)
