package logger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(ctx context.Context, topic string, payload interface{}) error

func (f PublisherFunc) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return f(ctx, topic, payload)
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush period, default 30s
	CountThreshold int           // distinct entries that force a flush, default 100
	Topic          string
	Publisher      Publisher
	PublishTimeout time.Duration // default 30s
}

// AggregatedLogEntry is one distinct (level, message, fields, caller) tuple
// with the number of times it was seen during a window.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates error logs and ships them in batches. A single
// worker owns publishing so batches leave in order.
type LogCollector struct {
	cfg CollectionConfig

	mu      sync.Mutex
	window  map[string]*AggregatedLogEntry
	batches chan []AggregatedLogEntry

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 30 * time.Second
	}

	c := &LogCollector{
		cfg:     cfg,
		window:  make(map[string]*AggregatedLogEntry),
		batches: make(chan []AggregatedLogEntry, 4),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// AddLog counts one occurrence. Reaching the threshold hands the window to
// the worker; if the worker is backed up the window keeps growing instead.
func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.window[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.window[key] = &AggregatedLogEntry{
			Level: level, Message: message, Fields: fields, Caller: caller,
			Count: 1, FirstSeen: now, LastSeen: now,
		}
	}
	if len(c.window) < c.cfg.CountThreshold {
		return
	}
	select {
	case c.batches <- c.takeLocked():
	default:
	}
}

// Close stops the worker after a final synchronous flush. It is safe to call
// more than once.
func (c *LogCollector) Close() {
	c.once.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

func (c *LogCollector) run() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case batch := <-c.batches:
			c.publish(batch)
		case <-ticker.C:
			c.publish(c.take())
		case <-c.done:
			for {
				select {
				case batch := <-c.batches:
					c.publish(batch)
				default:
					c.publish(c.take())
					return
				}
			}
		}
	}
}

func (c *LogCollector) take() []AggregatedLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.takeLocked()
}

// takeLocked swaps out the window and returns it ordered by first occurrence.
func (c *LogCollector) takeLocked() []AggregatedLogEntry {
	if len(c.window) == 0 {
		return nil
	}
	out := make([]AggregatedLogEntry, 0, len(c.window))
	for _, e := range c.window {
		out = append(out, *e)
	}
	c.window = make(map[string]*AggregatedLogEntry)
	sort.Slice(out, func(i, j int) bool { return out[i].FirstSeen.Before(out[j].FirstSeen) })
	return out
}

func (c *LogCollector) publish(batch []AggregatedLogEntry) {
	if len(batch) == 0 || c.cfg.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
	defer cancel()
	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
		// the logger cannot log its own shipping failure
		fmt.Fprintf(os.Stderr, "log collector: publish %d entries to %s: %v\n", len(batch), c.cfg.Topic, err)
	}
}

// entryKey renders the tuple with fields in key order so equal logs collide.
func entryKey(level, message string, fields map[string]interface{}, caller string) string {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte('|')
	b.WriteString(caller)
	b.WriteByte('|')
	b.WriteString(message)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, fields[k])
	}
	return b.String()
}
