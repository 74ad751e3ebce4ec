package models

import "time"

// AnalysisReport bundles indicators, risk and signal for one symbol.
type AnalysisReport struct {
	Symbol       string            `json:"symbol"`
	AsOf         time.Time         `json:"as_of"`
	Bars         int               `json:"bars"`
	LastPrice    float64           `json:"last_price"`
	Indicators   IndicatorSnapshot `json:"indicators"`
	Trend        Trend             `json:"trend"`
	Risk         RiskMetrics       `json:"risk"`
	Fundamentals Fundamentals      `json:"fundamentals"`
	Signal       Signal            `json:"signal"`
	Warnings     []string          `json:"warnings,omitempty"`
}
