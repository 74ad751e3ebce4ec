package models

// Requests for the HTTP API. Defaults are applied by creasty/defaults before validation.

type AnalysisRequest struct {
	Symbol   string `query:"symbol" json:"symbol" validate:"required,symbol"`
	Lookback int    `query:"lookback" json:"lookback" default:"504" validate:"gte=20,lte=5000"`
	AsOf     string `query:"as_of" json:"as_of"`
}

type OptimizeRequest struct {
	Symbols          []string `json:"symbols" validate:"required,min=2,max=50,dive,required,symbol"`
	Objective        string   `json:"objective" default:"max_sharpe" validate:"oneof=max_sharpe min_volatility target_risk"`
	TargetVolatility float64  `json:"target_volatility" validate:"required_if=Objective target_risk,gte=0,lte=5"`
	Lookback         int      `json:"lookback" default:"504" validate:"gte=30,lte=5000"`
}

type ScenariosRequest struct {
	Symbols  []string `json:"symbols" validate:"required,min=2,max=50,dive,required,symbol"`
	Lookback int      `json:"lookback" default:"504" validate:"gte=30,lte=5000"`
}

type BacktestRequest struct {
	Symbol   string  `query:"symbol" json:"symbol" validate:"required,symbol"`
	Capital  float64 `query:"capital" json:"capital" default:"10000" validate:"gt=0"`
	Lookback int     `query:"lookback" json:"lookback" default:"1260" validate:"gte=20,lte=10000"`
	From     string  `query:"from" json:"from"`
	To       string  `query:"to" json:"to"`
}

type ScanTriggerRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=200,dive,required,symbol"`
}
