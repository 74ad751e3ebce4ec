package repository

import (
	"context"
	"fmt"

	"Ares/internal/domain/models"
	"Ares/pkg/kafka"
)

type eventProducer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// Broadcaster fans events out to live subscribers.
type Broadcaster interface {
	Broadcast(ev models.SignalEvent)
}

// KafkaSignalPublisher writes signal events to Kafka keyed by symbol, then
// hands them to the live feed.
type KafkaSignalPublisher struct {
	producer eventProducer
	topic    string
	feed     Broadcaster
}

// NewKafkaSignalPublisher builds the publisher. A nil producer (Kafka
// disabled) only feeds live subscribers.
func NewKafkaSignalPublisher(p *kafka.Producer, topic string, feed Broadcaster) *KafkaSignalPublisher {
	if p == nil {
		return newSignalPublisher(nil, topic, feed)
	}
	return newSignalPublisher(p, topic, feed)
}

func newSignalPublisher(p eventProducer, topic string, feed Broadcaster) *KafkaSignalPublisher {
	return &KafkaSignalPublisher{producer: p, topic: topic, feed: feed}
}

func (p *KafkaSignalPublisher) PublishSignal(ctx context.Context, ev models.SignalEvent) error {
	if p.feed != nil {
		p.feed.Broadcast(ev)
	}
	if p.producer == nil {
		return nil
	}
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev); err != nil {
		return fmt.Errorf("publish signal %s: %w", ev.Symbol, err)
	}
	return nil
}

type tracedProducer interface {
	PublishTraced(ctx context.Context, topic string, key []byte, traceID string, value interface{}) error
}

// KafkaScanRequester queues scan requests on the scan topic keyed by run id.
// The run id also travels as the trace header so consumer logs carry it.
type KafkaScanRequester struct {
	producer tracedProducer
	topic    string
}

func NewKafkaScanRequester(p *kafka.Producer, topic string) *KafkaScanRequester {
	return &KafkaScanRequester{producer: p, topic: topic}
}

func (r *KafkaScanRequester) RequestScan(ctx context.Context, req models.ScanRequest) error {
	if err := r.producer.PublishTraced(ctx, r.topic, []byte(req.RunID), req.RunID, req); err != nil {
		return fmt.Errorf("request scan %s: %w", req.RunID, err)
	}
	return nil
}
