package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"Ares/pkg/logger"
)

type ProducerOption func(*ProducerConfig)

// ProducerConfig is the writer setup shared by every topic the producer
// publishes to.
type ProducerConfig struct {
	Brokers []string

	// delivery
	RequiredAcks int // -1 waits for all in-sync replicas
	MaxAttempts  int
	Compression  string
	HashByKey    bool // same key, same partition
	Async        bool

	// batching
	BatchSize    int
	BatchBytes   int
	BatchTimeout time.Duration

	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	AutoCreate   bool
	Registerer   prometheus.Registerer
}

func defaultProducerConfig() *ProducerConfig {
	return &ProducerConfig{
		RequiredAcks: -1,
		MaxAttempts:  3,
		Compression:  "gzip",
		BatchSize:    100,
		BatchBytes:   1 << 20,
		BatchTimeout: time.Second,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
}

func WithBrokers(brokers []string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithDelivery sets acks, writer retries and the codec (gzip, snappy, lz4,
// zstd or none).
func WithDelivery(acks, maxAttempts int, compression string) ProducerOption {
	return func(c *ProducerConfig) {
		c.RequiredAcks = acks
		if maxAttempts > 0 {
			c.MaxAttempts = maxAttempts
		}
		c.Compression = compression
	}
}

// WithBatching bounds a batch by message count, bytes and linger time.
// Zero values keep the defaults.
func WithBatching(size, bytes int, linger time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		if size > 0 {
			c.BatchSize = size
		}
		if bytes > 0 {
			c.BatchBytes = bytes
		}
		if linger > 0 {
			c.BatchTimeout = linger
		}
	}
}

func WithTimeouts(write, read time.Duration) ProducerOption {
	return func(c *ProducerConfig) {
		c.WriteTimeout = write
		c.ReadTimeout = read
	}
}

// WithAsync makes Publish return before the broker acknowledges.
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

// WithHashByKey keeps events of one symbol or run on one partition.
func WithHashByKey(hash bool) ProducerOption {
	return func(c *ProducerConfig) { c.HashByKey = hash }
}

// WithAutoCreateTopics lets the writer create missing topics, for local brokers.
func WithAutoCreateTopics(on bool) ProducerOption {
	return func(c *ProducerConfig) { c.AutoCreate = on }
}

// WithRegisterer sets where producer metrics are registered.
func WithRegisterer(reg prometheus.Registerer) ProducerOption {
	return func(c *ProducerConfig) { c.Registerer = reg }
}

type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig describes one consumer group reading every registered topic.
type ConsumerConfig struct {
	Brokers     []string
	GroupID     string
	StartOffset string // "earliest" or "latest", for a group without commits

	// Workers is the number of ordered lanes; Buffer is the queue per lane.
	Workers int
	Buffer  int

	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	DLQTopic   string

	MinBytes int
	MaxBytes int

	Logger     *logger.Logger
	Registerer prometheus.Registerer
}

func defaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		GroupID:     "ares",
		StartOffset: "earliest",
		Workers:     1,
		Buffer:      16,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	}
}

func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) { c.Brokers = brokers }
}

// WithConsumerGroup sets the group and where it starts without a committed offset.
func WithConsumerGroup(groupID, startOffset string) ConsumerOption {
	return func(c *ConsumerConfig) {
		if groupID != "" {
			c.GroupID = groupID
		}
		if startOffset != "" {
			c.StartOffset = startOffset
		}
	}
}

// WithConsumerWorkers sets the lane count and the queue length of each lane.
func WithConsumerWorkers(workers, buffer int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if workers > 0 {
			c.Workers = workers
		}
		if buffer > 0 {
			c.Buffer = buffer
		}
	}
}

// WithConsumerRetry sets how many times a failing message is retried and the
// exponential backoff bounds between attempts.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ routes messages that exhaust their retries to topic.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) { c.DLQTopic = topic }
}

func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if minBytes > 0 {
			c.MinBytes = minBytes
		}
		if maxBytes > 0 {
			c.MaxBytes = maxBytes
		}
	}
}

func WithConsumerLogger(l *logger.Logger) ConsumerOption {
	return func(c *ConsumerConfig) { c.Logger = l }
}

func WithConsumerRegisterer(reg prometheus.Registerer) ConsumerOption {
	return func(c *ConsumerConfig) { c.Registerer = reg }
}
