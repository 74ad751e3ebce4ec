package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	"Ares/internal/domain/models"
)

// TradingDaysPerYear is the annualization factor for daily bars.
const TradingDaysPerYear = 252

// ComputeLogReturns computes r_t = ln(C_t / C_{t-1}).
// The result has len(bars)-1 entries keyed by the later bar's time, or is empty if fewer than 2 bars.
func ComputeLogReturns(series models.PriceSeries) models.ReturnSeries {
	return computeReturns(series, func(prev, cur float64) float64 { return math.Log(cur / prev) })
}

// ComputeSimpleReturns computes r_t = C_t / C_{t-1} - 1.
func ComputeSimpleReturns(series models.PriceSeries) models.ReturnSeries {
	return computeReturns(series, func(prev, cur float64) float64 { return cur/prev - 1 })
}

func computeReturns(series models.PriceSeries, f func(prev, cur float64) float64) models.ReturnSeries {
	n := series.Len()
	if n < 2 {
		return models.ReturnSeries{}
	}
	out := models.ReturnSeries{
		Times:  make([]time.Time, 0, n-1),
		Values: make([]float64, 0, n-1),
	}
	for i := 1; i < n; i++ {
		prev := series.Bars[i-1].Close
		cur := series.Bars[i].Close
		if prev <= 0 || cur <= 0 {
			// non-positive closes are rejected by Validate upstream
			continue
		}
		out.Times = append(out.Times, series.Bars[i].Time)
		out.Values = append(out.Values, f(prev, cur))
	}
	return out
}

// dayKey normalizes a bar time to its UTC calendar day so that series stamped
// at different hours still join.
func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// AlignReturns inner-joins two return series on common dates.
// It returns the paired values in ascending date order.
func AlignReturns(a, b models.ReturnSeries) (xa, xb []float64) {
	idx := make(map[string]float64, b.Len())
	for i, t := range b.Times {
		idx[dayKey(t)] = b.Values[i]
	}
	for i, t := range a.Times {
		if v, ok := idx[dayKey(t)]; ok {
			xa = append(xa, a.Values[i])
			xb = append(xb, v)
		}
	}
	return xa, xb
}

// AlignedCloses is a close-price table joined on common dates.
type AlignedCloses struct {
	Symbols []string
	Times   []time.Time
	// Closes[t][k] is the close of Symbols[k] at Times[t].
	Closes [][]float64
}

// AlignCloses inner-joins the close columns of several series on common dates,
// dropping any date where one asset is missing.
func AlignCloses(series []models.PriceSeries) (AlignedCloses, error) {
	if len(series) == 0 {
		return AlignedCloses{}, fmt.Errorf("%w: no series", models.ErrAlignment)
	}
	type cell struct {
		t time.Time
		c []float64
		n int
	}
	rows := make(map[string]*cell)
	for k, s := range series {
		for _, b := range s.Bars {
			key := dayKey(b.Time)
			r, ok := rows[key]
			if !ok {
				if k > 0 {
					continue // missing from an earlier series already
				}
				r = &cell{t: b.Time, c: make([]float64, len(series))}
				rows[key] = r
			}
			if r.n != k {
				continue // missing from an earlier series, or duplicate day
			}
			r.c[k] = b.Close
			r.n++
		}
	}
	out := AlignedCloses{Symbols: make([]string, len(series))}
	for k, s := range series {
		out.Symbols[k] = s.Symbol
	}
	keys := make([]string, 0, len(rows))
	for key, r := range rows {
		if r.n == len(series) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		out.Times = append(out.Times, rows[key].t)
		out.Closes = append(out.Closes, rows[key].c)
	}
	if len(out.Times) < 2 {
		return out, fmt.Errorf("%w: %d common dates", models.ErrAlignment, len(out.Times))
	}
	return out, nil
}

// SimpleReturnMatrix converts aligned closes into a (dates-1) x assets matrix of simple returns.
func (a AlignedCloses) SimpleReturnMatrix() [][]float64 {
	if len(a.Closes) < 2 {
		return nil
	}
	out := make([][]float64, 0, len(a.Closes)-1)
	for t := 1; t < len(a.Closes); t++ {
		row := make([]float64, len(a.Symbols))
		for k := range a.Symbols {
			row[k] = a.Closes[t][k]/a.Closes[t-1][k] - 1
		}
		out = append(out, row)
	}
	return out
}
