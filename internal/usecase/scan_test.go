package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ares/internal/domain/models"
	"Ares/pkg/cache"
	pkgkafka "Ares/pkg/kafka"
)

type stubAnalyzer struct {
	reports map[string]models.Signal

	mu        sync.Mutex
	preloaded map[string]bool
}

func (a *stubAnalyzer) Analyze(_ context.Context, p AnalyzeParams) (*models.AnalysisReport, error) {
	a.mu.Lock()
	if a.preloaded == nil {
		a.preloaded = make(map[string]bool)
	}
	a.preloaded[p.Symbol] = p.Fundamentals != nil
	a.mu.Unlock()

	sig, ok := a.reports[p.Symbol]
	if !ok {
		return nil, models.ErrInsufficientData
	}
	return &models.AnalysisReport{Symbol: p.Symbol, LastPrice: 100, Signal: sig}, nil
}

func newScanFixture(t *testing.T) (*ScanHandler, *recordingPublisher, *recordingMetrics) {
	t.Helper()
	locks := cache.NewMemoryCache()
	t.Cleanup(func() { _ = locks.Close() })

	analyzer := &stubAnalyzer{reports: map[string]models.Signal{
		"NVDA": {Score: 2, Verdict: models.VerdictStrongBuy, Rationale: []string{"a", "b", "c", "d"}},
		"MSFT": {Score: 0, Verdict: models.VerdictHold, Rationale: []string{"a", "b", "c", "d"}},
	}}
	pub := &recordingPublisher{}
	m := &recordingMetrics{}
	h := NewScanHandler(analyzer, nil, pub, locks, m, nil, ScanConfig{Topic: "ares.scan.requests"})
	return h, pub, m
}

func TestScanPublishesAndSkipsFailures(t *testing.T) {
	h, pub, _ := newScanFixture(t)

	sum, err := h.Scan(context.Background(), models.ScanRequest{
		RunID:   "run-1",
		Symbols: []string{"nvda", "BAD", "MSFT", "NVDA"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Published)
	assert.Equal(t, 1, sum.Alerts)
	assert.Equal(t, []string{"BAD"}, sum.Failed)

	events := pub.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, "NVDA", events[0].Symbol)
	assert.True(t, events[0].Alert)
	assert.Equal(t, "run-1", events[0].RunID)
	assert.NotEmpty(t, events[0].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.False(t, events[1].Alert)
}

func TestScanDuplicateRunIsSkipped(t *testing.T) {
	h, pub, _ := newScanFixture(t)
	req := models.ScanRequest{RunID: "run-2", Symbols: []string{"MSFT"}}

	_, err := h.Scan(context.Background(), req)
	require.NoError(t, err)
	sum, err := h.Scan(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, sum.Duplicate)
	assert.Len(t, pub.snapshot(), 1)
}

func TestScanAllFailedReleasesLock(t *testing.T) {
	h, _, m := newScanFixture(t)
	req := models.ScanRequest{RunID: "run-3", Symbols: []string{"BAD"}}

	_, err := h.Scan(context.Background(), req)
	assert.ErrorContains(t, err, "all 1 symbols failed")

	// a redelivery gets another attempt instead of being deduplicated
	sum, err := h.Scan(context.Background(), req)
	assert.Error(t, err)
	assert.False(t, sum.Duplicate)
	assert.Equal(t, []string{"scan_failed", "scan_failed"}, m.errors)
}

func TestScanPublisherFailureCountsAsFailed(t *testing.T) {
	h, pub, _ := newScanFixture(t)
	pub.fail = map[string]bool{"NVDA": true}

	sum, err := h.Scan(context.Background(), models.ScanRequest{RunID: "run-4", Symbols: []string{"NVDA", "MSFT"}})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Published)
	assert.Equal(t, []string{"NVDA"}, sum.Failed)
}

func TestScanPrefetchesFundamentals(t *testing.T) {
	locks := cache.NewMemoryCache()
	t.Cleanup(func() { _ = locks.Close() })
	analyzer := &stubAnalyzer{reports: map[string]models.Signal{
		"NVDA": {Verdict: models.VerdictHold},
		"MSFT": {Verdict: models.VerdictHold},
	}}
	fund := &fakeFundamentals{data: map[string]models.Fundamentals{"NVDA": healthyFundamentals()}}
	h := NewScanHandler(analyzer, fund, &recordingPublisher{}, locks, &recordingMetrics{}, nil, ScanConfig{})

	_, err := h.Scan(context.Background(), models.ScanRequest{RunID: "run-5", Symbols: []string{"NVDA", "MSFT"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"NVDA": true, "MSFT": false}, analyzer.preloaded)

	// a failing batch leaves every symbol to its own lookup
	fund.err = errors.New("redis: timeout")
	analyzer.preloaded = nil
	_, err = h.Scan(context.Background(), models.ScanRequest{RunID: "run-6", Symbols: []string{"NVDA"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"NVDA": false}, analyzer.preloaded)
}

func TestScanHandleUsesTraceID(t *testing.T) {
	h, pub, m := newScanFixture(t)
	assert.Equal(t, "ares.scan.requests", h.Topic())

	ctx := pkgkafka.WithTraceID(context.Background(), "trace-9")
	require.NoError(t, h.Handle(ctx, []byte(`{"symbols":["MSFT"]}`)))
	events := pub.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "trace-9", events[0].RunID)

	assert.Error(t, h.Handle(context.Background(), []byte(`{"symbols":`)))
	assert.Contains(t, m.errors, "scan_unmarshal")
}

type recordingRequester struct {
	mu   sync.Mutex
	reqs []models.ScanRequest
	err  error
}

func (r *recordingRequester) RequestScan(_ context.Context, req models.ScanRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return r.err
}

func TestScanTriggerQueuesRequest(t *testing.T) {
	h, pub, _ := newScanFixture(t)
	rq := &recordingRequester{}
	uc := NewScanUseCase(rq, h, nil)

	runID, err := uc.Trigger(context.Background(), []string{"nvda", " msft ", ""})
	require.NoError(t, err)
	require.Len(t, rq.reqs, 1)
	assert.Equal(t, runID, rq.reqs[0].RunID)
	assert.Equal(t, []string{"NVDA", "MSFT"}, rq.reqs[0].Symbols)
	assert.Empty(t, pub.snapshot())

	rq.err = errors.New("broker down")
	_, err = uc.Trigger(context.Background(), []string{"NVDA"})
	assert.Error(t, err)

	_, err = uc.Trigger(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestScanTriggerRunsInProcess(t *testing.T) {
	h, pub, _ := newScanFixture(t)
	uc := NewScanUseCase(nil, h, nil)

	runID, err := uc.Trigger(context.Background(), []string{"NVDA", "MSFT"})
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return len(pub.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, runID, pub.snapshot()[0].RunID)
}
