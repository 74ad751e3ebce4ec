package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide is the direction of a simulated trade.
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// SimulatedTrade is one fill in a backtest.
type SimulatedTrade struct {
	Time    time.Time       `json:"t"`
	Side    TradeSide       `json:"side"`
	Shares  int64           `json:"shares"`
	Price   decimal.Decimal `json:"price"`
	Verdict Verdict         `json:"verdict"`
}

// BacktestResult summarizes a signal replay against buy and hold.
type BacktestResult struct {
	Symbol          string           `json:"symbol"`
	From            time.Time        `json:"from"`
	To              time.Time        `json:"to"`
	InitialCapital  decimal.Decimal  `json:"initial_capital"`
	FinalValue      decimal.Decimal  `json:"final_value"`
	StrategyROI     decimal.Decimal  `json:"strategy_roi_pct"`
	BuyHoldROI      decimal.Decimal  `json:"buy_hold_roi_pct"`
	BeatsBuyAndHold bool             `json:"beats_buy_and_hold"`
	Trades          []SimulatedTrade `json:"trades"`
}
