// Package quant computes technical indicators and risk metrics from daily bars.
// All functions are pure: they never mutate their inputs and return new series
// aligned to the input index.
package quant

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"Ares/internal/domain/models"
)

// IndicatorConfig holds window parameters.
type IndicatorConfig struct {
	RSIPeriod       int
	BollingerWindow int
	BollingerK      float64
}

// DefaultIndicatorConfig returns RSI(14) and Bollinger(20, 2).
func DefaultIndicatorConfig() IndicatorConfig {
	return IndicatorConfig{RSIPeriod: 14, BollingerWindow: 20, BollingerK: 2}
}

func (c IndicatorConfig) withDefaults() IndicatorConfig {
	d := DefaultIndicatorConfig()
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = d.RSIPeriod
	}
	if c.BollingerWindow <= 1 {
		c.BollingerWindow = d.BollingerWindow
	}
	if c.BollingerK <= 0 {
		c.BollingerK = d.BollingerK
	}
	return c
}

// MinBars is the shortest series ComputeIndicators accepts.
func (c IndicatorConfig) MinBars() int {
	c = c.withDefaults()
	n := c.BollingerWindow
	if c.RSIPeriod+1 > n {
		n = c.RSIPeriod + 1
	}
	return n
}

// ComputeIndicators computes RSI, Bollinger Bands and the linear trend for every bar.
func ComputeIndicators(series models.PriceSeries, cfg IndicatorConfig) (models.IndicatorSet, error) {
	cfg = cfg.withDefaults()
	if err := series.Validate(); err != nil {
		return models.IndicatorSet{}, err
	}
	if series.Len() < cfg.MinBars() {
		return models.IndicatorSet{}, fmt.Errorf("%w: indicators need %d bars, got %d",
			models.ErrInsufficientData, cfg.MinBars(), series.Len())
	}

	closes := series.Closes()
	upper, middle, lower := Bollinger(closes, cfg.BollingerWindow, cfg.BollingerK)
	trend, line := LinearTrend(closes)

	return models.IndicatorSet{
		Times:           series.Times(),
		RSI:             RSI(closes, cfg.RSIPeriod),
		BollingerUpper:  upper,
		BollingerMiddle: middle,
		BollingerLower:  lower,
		Regression:      line,
		Trend:           trend,
	}, nil
}

// RSI computes the relative strength index with a simple rolling mean of gains and losses
// over the trailing period close-to-close changes. Bars before index period are undefined.
//
// When there are no losses in the window RSI is 100, or 50 if there was no movement at all.
func RSI(closes []float64, period int) []models.Value {
	out := make([]models.Value, len(closes))
	if period <= 0 {
		return out
	}
	for i := period; i < len(closes); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - closes[j-1]
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
		avgGain := gain / float64(period)
		avgLoss := loss / float64(period)
		out[i] = models.Some(rsiFromAverages(avgGain, avgLoss))
	}
	return out
}

func rsiFromAverages(avgGain, avgLoss float64) float64 {
	switch {
	case avgLoss == 0 && avgGain == 0:
		return 50
	case avgLoss == 0:
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Bollinger computes sma ± k·std over a rolling window using the sample standard deviation.
func Bollinger(closes []float64, window int, k float64) (upper, middle, lower []models.Value) {
	n := len(closes)
	upper = make([]models.Value, n)
	middle = make([]models.Value, n)
	lower = make([]models.Value, n)
	if window < 2 {
		return upper, middle, lower
	}
	for i := window - 1; i < n; i++ {
		w := closes[i-window+1 : i+1]
		mean, std := stat.MeanStdDev(w, nil)
		if math.IsNaN(std) || floats.Min(w) == floats.Max(w) {
			// a flat window collapses onto the price itself
			mean, std = w[0], 0
		}
		middle[i] = models.Some(mean)
		upper[i] = models.Some(mean + k*std)
		lower[i] = models.Some(mean - k*std)
	}
	return upper, middle, lower
}

// LinearTrend fits close = intercept + slope·index by ordinary least squares.
// R² is undefined when all closes are equal.
func LinearTrend(closes []float64) (models.Trend, []models.Value) {
	n := len(closes)
	line := make([]models.Value, n)
	if n < 2 {
		return models.Trend{}, line
	}
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	intercept, slope := stat.LinearRegression(x, closes, nil, false)
	for i := range line {
		line[i] = models.Some(intercept + slope*x[i])
	}

	trend := models.Trend{Slope: slope, Intercept: intercept}
	mean := stat.Mean(closes, nil)
	ssTot := 0.0
	for _, y := range closes {
		ssTot += (y - mean) * (y - mean)
	}
	if ssTot > 0 {
		trend.RSquared = models.Some(stat.RSquared(x, closes, nil, intercept, slope))
	}
	return trend, line
}
