package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"Ares/internal/domain/models"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func seriesFrom(symbol string, closes []float64) models.PriceSeries {
	s := models.PriceSeries{Symbol: symbol}
	for i, c := range closes {
		s.Bars = append(s.Bars, models.Bar{Time: day0.AddDate(0, 0, i), Close: c, Open: c, High: c, Low: c})
	}
	return s
}

// falling is a strictly decreasing series: RSI 0 on the last bar.
func falling(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 200 - float64(i)
	}
	return out
}

// wave compounds a deterministic oscillating return so assets are not collinear.
func wave(n int, freq, drift float64) []float64 {
	out := make([]float64, n)
	p := 100.0
	for i := range out {
		p *= 1 + 0.01*math.Sin(float64(i)*freq) + drift
		out[i] = p
	}
	return out
}

type fakeBars struct {
	series map[string]models.PriceSeries
	err    error
}

func (f *fakeBars) GetBars(_ context.Context, symbol string, from, to time.Time) (models.PriceSeries, error) {
	s, ok := f.series[symbol]
	if !ok {
		return models.PriceSeries{}, fmt.Errorf("bars %s: %w", symbol, models.ErrNotFound)
	}
	out := models.PriceSeries{Symbol: symbol}
	for _, b := range s.Bars {
		if !b.Time.Before(from) && !b.Time.After(to) {
			out.Bars = append(out.Bars, b)
		}
	}
	return out, nil
}

func (f *fakeBars) GetLatestNBars(_ context.Context, symbol string, n int, _ time.Time) (models.PriceSeries, error) {
	if f.err != nil {
		return models.PriceSeries{}, f.err
	}
	s, ok := f.series[symbol]
	if !ok {
		return models.PriceSeries{}, fmt.Errorf("bars %s: %w", symbol, models.ErrNotFound)
	}
	if len(s.Bars) > n {
		s.Bars = s.Bars[len(s.Bars)-n:]
	}
	return s, nil
}

type fakeFundamentals struct {
	data map[string]models.Fundamentals
	err  error
}

func (f *fakeFundamentals) GetFundamentals(_ context.Context, symbol string) (models.Fundamentals, error) {
	if f.err != nil {
		return models.Fundamentals{}, f.err
	}
	v, ok := f.data[symbol]
	if !ok {
		return models.Fundamentals{}, fmt.Errorf("fundamentals %s: %w", symbol, models.ErrNotFound)
	}
	return v, nil
}

func (f *fakeFundamentals) GetFundamentalsBatch(ctx context.Context, symbols []string) (map[string]models.Fundamentals, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]models.Fundamentals)
	for _, s := range symbols {
		if v, err := f.GetFundamentals(ctx, s); err == nil {
			out[s] = v
		}
	}
	return out, nil
}

type recordingMetrics struct {
	mu            sync.Mutex
	analyses      []string
	betaDefaulted int
	optimizations []string
	errors        []string
	latencies     []string
}

func (m *recordingMetrics) RecordAnalysis(verdict string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses = append(m.analyses, verdict)
}

func (m *recordingMetrics) RecordBetaDefaulted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.betaDefaulted++
}

func (m *recordingMetrics) RecordOptimization(objective, result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optimizations = append(m.optimizations, objective+"/"+result)
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, kind)
}

func (m *recordingMetrics) RecordLatency(op string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies = append(m.latencies, op)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.SignalEvent
	fail   map[string]bool
}

func (p *recordingPublisher) PublishSignal(_ context.Context, ev models.SignalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[ev.Symbol] {
		return fmt.Errorf("publish %s: broker down", ev.Symbol)
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) snapshot() []models.SignalEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.SignalEvent(nil), p.events...)
}

func healthyFundamentals() models.Fundamentals {
	return models.Fundamentals{
		MarketCap:    1e12,
		TotalDebt:    1e9,
		Cash:         5e9,
		FreeCashFlow: 2e9,
		Sentiment:    models.Sentiment{Label: models.SentimentBullish, Polarity: 0.4},
	}
}
