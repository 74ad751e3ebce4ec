package kafka

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"Ares/pkg/logger"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// fetcher is the subset of *kafka.Reader the consumer uses.
type fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var errStopping = errors.New("consumer stopping")

// Consumer reads every registered topic in one group. Each fetched message is
// routed to a worker lane picked from its topic and partition, so a partition
// is handled in order while partitions run in parallel. Offsets are committed
// after the handler succeeds or the message reaches the dead letter topic.
type Consumer struct {
	cfg     *ConsumerConfig
	log     *logger.Logger
	hook    ConsumerHook
	metrics *consumerMetrics

	handlers  map[string]MessageHandler
	readers   map[string]fetcher
	newReader func(topic string) fetcher
	lanes     []chan kafka.Message
	dlq       messageWriter

	done     chan struct{}
	cancel   context.CancelFunc
	fetchWG  sync.WaitGroup
	workWG   sync.WaitGroup
	stopOnce sync.Once
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		log:      log.Component("kafka_consumer"),
		hook:     NoopHook{},
		metrics:  newConsumerMetrics(cfg.Registerer),
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]fetcher),
		lanes:    make([]chan kafka.Message, cfg.Workers),
		done:     make(chan struct{}),
	}
	for i := range c.lanes {
		c.lanes[i] = make(chan kafka.Message, cfg.Buffer)
	}
	c.newReader = c.groupReader
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.Hash{}}
	}
	return c, nil
}

// RegisterHandler binds handler to its topic. Handlers must be registered
// before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.log.Warn("handler already registered", logger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

// WithConsumerHook sets the hook run around every handler call.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

func (c *Consumer) groupReader(topic string) fetcher {
	start := kafka.FirstOffset
	if c.cfg.StartOffset == "latest" {
		start = kafka.LastOffset
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		Topic:       topic,
		GroupID:     c.cfg.GroupID,
		MinBytes:    c.cfg.MinBytes,
		MaxBytes:    c.cfg.MaxBytes,
		StartOffset: start,
	})
}

// Start opens a reader per registered topic and starts the lanes.
func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("no handlers registered")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for _, lane := range c.lanes {
		c.workWG.Add(1)
		go c.work(lane)
	}
	for topic := range c.handlers {
		r := c.newReader(topic)
		c.readers[topic] = r
		c.fetchWG.Add(1)
		go c.fetch(ctx, topic, r)
	}
	c.log.Info("started",
		logger.String("group", c.cfg.GroupID),
		logger.Int("topics", len(c.readers)),
		logger.Int("lanes", len(c.lanes)),
	)
	return nil
}

// Stop ends fetching, lets the lanes drain what they already hold and closes
// the readers. ctx bounds the drain.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		c.log.Info("stopping")
		close(c.done)
		if c.cancel != nil {
			c.cancel()
		}
		c.fetchWG.Wait()
		for _, lane := range c.lanes {
			close(lane)
		}

		drained := make(chan struct{})
		go func() {
			c.workWG.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-ctx.Done():
			err = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.log.Warn("close reader", logger.String("topic", topic), logger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.log.Warn("close dlq writer", logger.Error(cerr))
			}
		}
	})
	return err
}

func (c *Consumer) fetch(ctx context.Context, topic string, r fetcher) {
	defer c.fetchWG.Done()
	for {
		km, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Error("fetch message", logger.String("topic", topic), logger.Error(err))
			select {
			case <-time.After(time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		if km.Topic == "" {
			km.Topic = topic
		}

		select {
		case c.lanes[laneFor(km, len(c.lanes))] <- km:
			c.metrics.queued.WithLabelValues(topic).Inc()
		case <-ctx.Done():
			return
		}
	}
}

func laneFor(km kafka.Message, lanes int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(km.Topic))
	_, _ = h.Write([]byte(strconv.Itoa(km.Partition)))
	return int(h.Sum32() % uint32(lanes))
}

func (c *Consumer) work(lane <-chan kafka.Message) {
	defer c.workWG.Done()
	for km := range lane {
		c.metrics.queued.WithLabelValues(km.Topic).Dec()
		h, ok := c.handlers[km.Topic]
		if !ok {
			continue
		}

		start := time.Now()
		err := c.process(h, km)
		c.metrics.observe(km.Topic, time.Since(start), err)

		// an interrupted retry is left uncommitted for redelivery
		if errors.Is(err, errStopping) {
			continue
		}
		if err == nil || c.dlq != nil {
			c.commit(km)
		}
	}
}

// process runs the handler with retries and writes a message that still
// fails to the dead letter topic. It returns the last handler error.
func (c *Consumer) process(h MessageHandler, km kafka.Message) error {
	var err error
	attempts := 0
	for {
		attempts++
		ctx, hkm, data, herr := c.hook.BeforeHandle(context.Background(), km.Topic, km, km.Value)
		if herr != nil {
			err = herr
			break
		}
		err = safeHandle(ctx, h, data)
		c.hook.AfterHandle(ctx, km.Topic, hkm, data, err)
		if err == nil {
			return nil
		}
		if attempts > c.cfg.RetryMax {
			break
		}
		c.hook.OnError(ctx, km.Topic, hkm, data, err)
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-c.done:
			return fmt.Errorf("%w: %v", errStopping, err)
		}
	}

	c.hook.OnError(context.Background(), km.Topic, km, km.Value, err)
	c.log.Error("message failed",
		logger.String("topic", km.Topic),
		logger.Int("partition", km.Partition),
		logger.Int64("offset", km.Offset),
		logger.Int("attempts", attempts),
		logger.Error(err),
	)
	c.deadLetter(km, attempts, err)
	return err
}

func safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, data)
}

func (c *Consumer) deadLetter(km kafka.Message, attempts int, cause error) {
	if c.dlq == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Topic: c.cfg.DLQTopic,
		Key:   km.Key,
		Value: km.Value,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "source_topic", Value: []byte(km.Topic)},
			{Key: "attempts", Value: []byte(strconv.Itoa(attempts))},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.log.Error("write dlq", logger.String("dlq_topic", c.cfg.DLQTopic), logger.Error(err))
		return
	}
	c.metrics.deadLettered.WithLabelValues(km.Topic).Inc()
}

func (c *Consumer) commit(km kafka.Message) {
	r := c.readers[km.Topic]
	if r == nil {
		return
	}
	const attempts = 3
	var err error
	for i := 1; i <= attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, i))
	}
	c.log.Error("commit offset",
		logger.String("topic", km.Topic),
		logger.Int64("offset", km.Offset),
		logger.Error(err),
	)
}

// backoffWithJitter doubles min per attempt up to max and takes off up to half.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := max
	if attempt < 32 {
		if exp := min << uint(attempt-1); exp > 0 && exp < max {
			d = exp
		}
	}
	return d - time.Duration(rand.Int63n(int64(d)/2+1))
}
