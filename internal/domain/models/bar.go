package models

import (
	"fmt"
	"time"
)

// Bar represents one OHLCV record.
type Bar struct {
	Time   time.Time `json:"t"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is a time-ordered OHLCV history for one symbol.
// Gaps (weekends, holidays) are allowed.
type PriceSeries struct {
	Symbol string
	Bars   []Bar
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Closes returns the close column.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Times returns the timestamp column.
func (s PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Time
	}
	return out
}

// Last returns the most recent bar. The series must not be empty.
func (s PriceSeries) Last() Bar { return s.Bars[len(s.Bars)-1] }

// Validate checks ascending unique timestamps and positive closes.
func (s PriceSeries) Validate() error {
	for i, b := range s.Bars {
		if b.Close <= 0 {
			return fmt.Errorf("%w: close %v at %s", ErrInvalidSeries, b.Close, b.Time.Format(time.RFC3339))
		}
		if i > 0 && !b.Time.After(s.Bars[i-1].Time) {
			return fmt.Errorf("%w: timestamp %s not after %s", ErrInvalidSeries,
				b.Time.Format(time.RFC3339), s.Bars[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// ReturnSeries holds returns keyed by the timestamp of the later bar.
type ReturnSeries struct {
	Times  []time.Time
	Values []float64
}

// Len returns the number of returns.
func (r ReturnSeries) Len() int { return len(r.Values) }
