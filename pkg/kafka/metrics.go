package kafka

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// register adds c to reg, or returns the collector already registered under
// the same descriptor so several producers or consumers can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	return &producerMetrics{
		messages: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ares_kafka_producer_messages_total",
			Help: "Messages published to Kafka.",
		}, []string{"topic", "compression", "result"})),
		bytes: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ares_kafka_producer_bytes_total",
			Help: "Payload bytes published to Kafka.",
		}, []string{"topic", "compression"})),
		latency: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ares_kafka_producer_publish_seconds",
			Help:    "Time spent in WriteMessages.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})),
	}
}

func (m *producerMetrics) observe(topic, comp string, count int, bytes int64, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(topic, comp, resultLabel(err)).Add(float64(count))
	m.bytes.WithLabelValues(topic, comp).Add(float64(bytes))
	m.latency.WithLabelValues(topic).Observe(took.Seconds())
}

type consumerMetrics struct {
	queued       *prometheus.GaugeVec
	handled      *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	deadLettered *prometheus.CounterVec
}

func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	return &consumerMetrics{
		queued: register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ares_kafka_consumer_queued",
			Help: "Fetched messages waiting for a worker lane.",
		}, []string{"topic"})),
		handled: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ares_kafka_consumer_handled_total",
			Help: "Messages handled, by final result.",
		}, []string{"topic", "result"})),
		latency: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ares_kafka_consumer_handle_seconds",
			Help:    "Handling time per message including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"})),
		deadLettered: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ares_kafka_consumer_dead_lettered_total",
			Help: "Messages written to the dead letter topic.",
		}, []string{"topic"})),
	}
}

func (m *consumerMetrics) observe(topic string, took time.Duration, err error) {
	m.handled.WithLabelValues(topic, resultLabel(err)).Inc()
	m.latency.WithLabelValues(topic).Observe(took.Seconds())
}
