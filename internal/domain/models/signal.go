package models

import "time"

// Verdict is the discrete decision derived from a score.
type Verdict string

const (
	VerdictStrongBuy  Verdict = "STRONG BUY"
	VerdictBuy        Verdict = "BUY"
	VerdictHold       Verdict = "HOLD"
	VerdictSell       Verdict = "SELL"
	VerdictStrongSell Verdict = "STRONG SELL"
)

// IsStrong reports whether the verdict is StrongBuy or StrongSell.
func (v Verdict) IsStrong() bool {
	return v == VerdictStrongBuy || v == VerdictStrongSell
}

// SentimentLabel is the news sentiment class.
type SentimentLabel string

const (
	SentimentBullish SentimentLabel = "Bullish"
	SentimentBearish SentimentLabel = "Bearish"
	SentimentNeutral SentimentLabel = "Neutral"
)

// Sentiment is the news sentiment of a symbol.
type Sentiment struct {
	Label    SentimentLabel `json:"label"`
	Polarity float64        `json:"polarity"`
}

// Fundamentals is the balance-sheet snapshot written by the research collaborator.
type Fundamentals struct {
	MarketCap    float64   `json:"market_cap"`
	TotalDebt    float64   `json:"total_debt"`
	Cash         float64   `json:"cash"`
	FreeCashFlow float64   `json:"free_cash_flow"`
	Sentiment    Sentiment `json:"sentiment"`
}

// Signal is the synthesized decision.
type Signal struct {
	Score     float64  `json:"score"`
	Verdict   Verdict  `json:"verdict"`
	Rationale []string `json:"rationale"`
}

// SignalEvent is published on the signals topic and the websocket feed.
type SignalEvent struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	LastPrice float64   `json:"last_price"`
	Score     float64   `json:"score"`
	Verdict   Verdict   `json:"verdict"`
	Rationale []string  `json:"rationale"`
	Alert     bool      `json:"alert"`
}

// ScanRequest is consumed from the scan requests topic.
type ScanRequest struct {
	RunID   string   `json:"run_id"`
	Symbols []string `json:"symbols"`
}
