package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
	ch      chan struct{}
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{ch: make(chan struct{}, 8)}
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	p.mu.Unlock()
	p.ch <- struct{}{}
	return nil
}

func (p *capturePublisher) wait(t *testing.T) {
	t.Helper()
	select {
	case <-p.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher was not called")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestFieldKeyValues(t *testing.T) {
	k, v := Float("sharpe", 1.25).GetKeyValue()
	assert.Equal(t, "sharpe", k)
	assert.Equal(t, 1.25, v)

	k, v = Error(errors.New("boom")).GetKeyValue()
	assert.Equal(t, "error", k)
	assert.Equal(t, "boom", v)

	_, v = Error(nil).GetKeyValue()
	assert.Nil(t, v)

	_, v = Duration("took_ms", 1500*time.Millisecond).GetKeyValue()
	assert.Equal(t, int64(1500), v)

	_, v = Strings("symbols", []string{"AAPL", "MSFT"}).GetKeyValue()
	assert.Equal(t, []string{"AAPL", "MSFT"}, v)
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := newCapturePublisher()
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "store failed", map[string]interface{}{"symbol": "AAPL"}, "repo.go:10")
	}
	c.AddLog("error", "store failed", map[string]interface{}{"symbol": "MSFT"}, "repo.go:10")
	c.Close()

	pub.wait(t)
	require.Len(t, pub.batches, 1)
	batch := pub.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, 3, batch[0].Count)
	assert.Equal(t, "AAPL", batch[0].Fields["symbol"])
	assert.Equal(t, 1, batch[1].Count)
	assert.Equal(t, "logs", pub.topic)
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := newCapturePublisher()
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	pub.wait(t)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 2)
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := newCapturePublisher()
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 1, Topic: "logs", Publisher: pub})
	defer l.RemoveCollector()

	l.Error("optimizer failed", String("objective", "target_risk"))
	pub.wait(t)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "optimizer failed", pub.batches[0][0].Message)
	assert.Equal(t, "target_risk", pub.batches[0][0].Fields["objective"])
}

func TestPublisherFunc(t *testing.T) {
	var got string
	p := PublisherFunc(func(_ context.Context, topic string, _ interface{}) error {
		got = topic
		return nil
	})
	require.NoError(t, p.PublishMessage(context.Background(), "t1", nil))
	assert.Equal(t, "t1", got)
}

func TestEntryKeyIgnoresFieldOrder(t *testing.T) {
	a := entryKey("error", "m", map[string]interface{}{"a": 1, "b": "x"}, "f.go:1")
	b := entryKey("error", "m", map[string]interface{}{"b": "x", "a": 1}, "f.go:1")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, entryKey("warn", "m", map[string]interface{}{"a": 1, "b": "x"}, "f.go:1"))
}

func TestCollectorCloseIsIdempotent(t *testing.T) {
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour})
	c.AddLog("error", "x", nil, "f.go:1")
	c.Close()
	c.Close()
}
