// Package signal scores technical and fundamental inputs into a discrete verdict.
package signal

import (
	"fmt"

	"Ares/internal/domain/models"
)

// NeutralRSI is used when RSI is not computable.
const NeutralRSI = 50.0

// Inputs is everything the rule table reads.
type Inputs struct {
	RSI          models.Value
	Fundamentals models.Fundamentals
}

// Verdict cutoffs, inclusive.
const (
	StrongBuyAt  = 1.5
	BuyAt        = 0.5
	SellAt       = -0.5
	StrongSellAt = -1.5
)

// Synthesize applies the fixed contribution table. It always emits one rationale
// per category in the order RSI, free cash flow, cash vs debt, sentiment.
func Synthesize(in Inputs) models.Signal {
	rsi := in.RSI.Or(NeutralRSI)
	f := in.Fundamentals
	score := 0.0
	rationale := make([]string, 0, 4)

	switch {
	case rsi < 30:
		score++
		rationale = append(rationale, fmt.Sprintf("Bullish: oversold, RSI %.1f < 30", rsi))
	case rsi > 70:
		score--
		rationale = append(rationale, fmt.Sprintf("Bearish: overbought, RSI %.1f > 70", rsi))
	default:
		rationale = append(rationale, fmt.Sprintf("Neutral: RSI %.1f in normal range", rsi))
	}

	if f.FreeCashFlow > 0 {
		score++
		rationale = append(rationale, "Bullish: positive free cash flow")
	} else {
		score--
		rationale = append(rationale, "Bearish: negative free cash flow")
	}

	if f.Cash > f.TotalDebt {
		score += 0.5
		rationale = append(rationale, "Bullish: cash reserves exceed total debt")
	} else {
		score -= 0.5
		rationale = append(rationale, "Caution: total debt exceeds cash")
	}

	switch f.Sentiment.Label {
	case models.SentimentBullish:
		score += 0.5
		rationale = append(rationale, fmt.Sprintf("Sentiment: news optimistic (polarity %.2f)", f.Sentiment.Polarity))
	case models.SentimentBearish:
		score -= 0.5
		rationale = append(rationale, fmt.Sprintf("Sentiment: news pessimistic (polarity %.2f)", f.Sentiment.Polarity))
	default:
		rationale = append(rationale, fmt.Sprintf("Sentiment: news neutral (polarity %.2f)", f.Sentiment.Polarity))
	}

	return models.Signal{Score: score, Verdict: VerdictFor(score), Rationale: rationale}
}

// VerdictFor maps a score onto the verdict cutoffs.
func VerdictFor(score float64) models.Verdict {
	switch {
	case score >= StrongBuyAt:
		return models.VerdictStrongBuy
	case score >= BuyAt:
		return models.VerdictBuy
	case score <= StrongSellAt:
		return models.VerdictStrongSell
	case score <= SellAt:
		return models.VerdictSell
	default:
		return models.VerdictHold
	}
}
