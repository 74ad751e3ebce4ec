package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ares/internal/domain/models"
	"Ares/pkg/cache"
)

func TestCacheFundamentalsStore(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	snap := models.Fundamentals{
		MarketCap:    3e12,
		TotalDebt:    1e11,
		Cash:         6e10,
		FreeCashFlow: 9e10,
		Sentiment:    models.Sentiment{Label: models.SentimentBullish, Polarity: 0.4},
	}
	require.NoError(t, mc.Set(ctx, FundamentalsKey("AAPL"), snap, time.Hour))

	store := NewCacheFundamentalsStore(mc)
	got, err := store.GetFundamentals(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	_, err = store.GetFundamentals(ctx, "MSFT")
	assert.ErrorIs(t, err, models.ErrNotFound)

	batch, err := store.GetFundamentalsBatch(ctx, []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, snap, batch["AAPL"])
}

func TestCacheFundamentalsStoreReadsResearchJSON(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	raw := `{"market_cap":1,"total_debt":5,"cash":2,"free_cash_flow":-3,"sentiment":{"label":"Bearish","polarity":-0.3}}`
	require.NoError(t, mc.Set(ctx, "fundamentals:TSLA", raw, time.Hour))

	got, err := NewCacheFundamentalsStore(mc).GetFundamentals(ctx, "TSLA")
	require.NoError(t, err)
	assert.Equal(t, -3.0, got.FreeCashFlow)
	assert.Equal(t, models.SentimentBearish, got.Sentiment.Label)
}

type recordingProducer struct {
	topic   string
	key     []byte
	value   interface{}
	traceID string
	err     error
}

func (p *recordingProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func (p *recordingProducer) PublishTraced(ctx context.Context, topic string, key []byte, traceID string, value interface{}) error {
	p.traceID = traceID
	return p.Publish(ctx, topic, key, value)
}

type recordingFeed struct{ events []models.SignalEvent }

func (f *recordingFeed) Broadcast(ev models.SignalEvent) { f.events = append(f.events, ev) }

func TestKafkaSignalPublisher(t *testing.T) {
	prod := &recordingProducer{}
	feed := &recordingFeed{}
	pub := newSignalPublisher(prod, "ares.signals", feed)

	ev := models.SignalEvent{ID: "1", Symbol: "NVDA", Verdict: models.VerdictStrongBuy, Alert: true}
	require.NoError(t, pub.PublishSignal(context.Background(), ev))
	assert.Equal(t, "ares.signals", prod.topic)
	assert.Equal(t, []byte("NVDA"), prod.key)
	assert.Equal(t, ev, prod.value)
	require.Len(t, feed.events, 1)

	prod.err = errors.New("broker down")
	err := pub.PublishSignal(context.Background(), ev)
	assert.ErrorContains(t, err, "publish signal NVDA")
	// the live feed still saw it
	assert.Len(t, feed.events, 2)
}

func TestKafkaSignalPublisherWithoutProducer(t *testing.T) {
	feed := &recordingFeed{}
	pub := NewKafkaSignalPublisher(nil, "ares.signals", feed)
	require.NoError(t, pub.PublishSignal(context.Background(), models.SignalEvent{Symbol: "SPY"}))
	assert.Len(t, feed.events, 1)
}

func TestNewCHBarStoreRejectsBadTable(t *testing.T) {
	_, err := newCHBarStore(nil, "bars; DROP TABLE x")
	assert.Error(t, err)

	s, err := newCHBarStore(nil, "ares.daily_bars")
	require.NoError(t, err)
	assert.Equal(t, "ares.daily_bars", s.table)

	_, err = s.GetLatestNBars(context.Background(), "AAPL", 0, time.Time{})
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestKafkaScanRequester(t *testing.T) {
	prod := &recordingProducer{}
	r := &KafkaScanRequester{producer: prod, topic: "ares.scan.requests"}

	req := models.ScanRequest{RunID: "run-1", Symbols: []string{"AAPL", "MSFT"}}
	require.NoError(t, r.RequestScan(context.Background(), req))
	assert.Equal(t, "ares.scan.requests", prod.topic)
	assert.Equal(t, []byte("run-1"), prod.key)
	assert.Equal(t, req, prod.value)
	assert.Equal(t, "run-1", prod.traceID)

	prod.err = errors.New("broker down")
	assert.ErrorContains(t, r.RequestScan(context.Background(), req), "request scan run-1")
}
