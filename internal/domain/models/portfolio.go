package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Objective selects the allocation problem to solve.
type Objective string

const (
	ObjectiveMaxSharpe     Objective = "max_sharpe"
	ObjectiveMinVolatility Objective = "min_volatility"
	ObjectiveTargetRisk    Objective = "target_risk"
)

// ParseObjective converts a raw string into an Objective.
func ParseObjective(s string) (Objective, error) {
	switch o := Objective(s); o {
	case ObjectiveMaxSharpe, ObjectiveMinVolatility, ObjectiveTargetRisk:
		return o, nil
	default:
		return "", fmt.Errorf("unknown objective %q", s)
	}
}

// AssetWeight is one asset's share of the portfolio.
type AssetWeight struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

// PortfolioSolution is the result of one successful optimization run.
type PortfolioSolution struct {
	Objective  Objective     `json:"objective"`
	Label      string        `json:"label"`
	Weights    []AssetWeight `json:"weights"`
	Return     float64       `json:"expected_return"`
	Volatility float64       `json:"volatility"`
	Sharpe     Value         `json:"sharpe"`
	Iterations int           `json:"iterations"`
}

// WeightSum returns Σw.
func (s PortfolioSolution) WeightSum() float64 {
	sum := 0.0
	for _, w := range s.Weights {
		sum += w.Weight
	}
	return sum
}

// Rounded returns a copy with weights rounded half away from zero to 4 decimals.
func (s PortfolioSolution) Rounded() PortfolioSolution {
	out := s
	out.Weights = make([]AssetWeight, len(s.Weights))
	for i, w := range s.Weights {
		out.Weights[i] = AssetWeight{
			Symbol: w.Symbol,
			Weight: decimal.NewFromFloat(w.Weight).Round(4).InexactFloat64(),
		}
	}
	return out
}

// ScenarioResult pairs a named scenario with its solution or failure.
type ScenarioResult struct {
	Name     string             `json:"name"`
	Solution *PortfolioSolution `json:"solution,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// PortfolioReport is returned by the scenario endpoint.
type PortfolioReport struct {
	Assets       []string         `json:"assets"`
	Observations int              `json:"observations"`
	Correlation  [][]float64      `json:"correlation"`
	Scenarios    []ScenarioResult `json:"scenarios"`
}
