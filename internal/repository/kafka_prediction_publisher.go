package repository

import (
	"context"

	"SignalFlow/internal/domain/models"
)

// MessagePublisher is the subset of the Kafka producer used here.
type MessagePublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPredictionPublisher implements PredictionPublisher for Kafka.
type KafkaPredictionPublisher struct {
	producer MessagePublisher
	topic    string
}

// NewKafkaPredictionPublisher creates a publisher keyed by pair.
func NewKafkaPredictionPublisher(producer MessagePublisher, topic string) *KafkaPredictionPublisher {
	return &KafkaPredictionPublisher{producer: producer, topic: topic}
}

func (p *KafkaPredictionPublisher) Publish(ctx context.Context, pred *models.Prediction) error {
	if pred == nil {
		return nil
	}
	return p.producer.Publish(ctx, p.topic, []byte(pred.Pair), pred)
}

func (p *KafkaPredictionPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPredictionPublisher drops predictions.
type NopPredictionPublisher struct{}

func (NopPredictionPublisher) Publish(context.Context, *models.Prediction) error { return nil }
func (NopPredictionPublisher) Close() error                                      { return nil }
