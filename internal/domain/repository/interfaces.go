package repository

import (
	"context"

	"Ares/internal/domain/models"
)

// SignalPublisher delivers signal events to downstream consumers.
type SignalPublisher interface {
	PublishSignal(ctx context.Context, ev models.SignalEvent) error
}

// Metrics is the application-level instrumentation sink.
type Metrics interface {
	RecordAnalysis(verdict string)
	RecordBetaDefaulted()
	RecordOptimization(objective, result string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// ScanRequester queues a market scan for asynchronous processing.
type ScanRequester interface {
	RequestScan(ctx context.Context, req models.ScanRequest) error
}
