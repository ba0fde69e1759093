package models

import (
	"cfd-hedge-backtest/internal/config"
	"cfd-hedge-backtest/internal/data"
)

// SimulateRequest represents the request body for running a simulation.
// Config keys left out keep the server defaults; zero-valued costs, allocation,
// threshold and ratio may be set explicitly.
type SimulateRequest struct {
	Preset     string          `json:"preset,omitempty"` // config preset name, applied before Config
	Config     config.Override `json:"config"`
	MarketData []MarketRow     `json:"market_data,omitempty"` // inline data; otherwise the configured source is used
	Options    SimulateOptions `json:"options,omitempty"`
}

// MarketRow is one day of inline market data
type MarketRow struct {
	Date       string   `json:"date" binding:"required"` // YYYY-MM-DD
	Price      *float64 `json:"price"`
	Volatility *float64 `json:"volatility"`
	Rate       *float64 `json:"rate,omitempty"`
}

// SimulateOptions contains optional response parameters
type SimulateOptions struct {
	IncludeLedger bool `json:"include_ledger,omitempty"` // default: false
	IncludeSeries bool `json:"include_series,omitempty"` // default: false
}

// CompareRequest runs several hedging variations over the same market data
type CompareRequest struct {
	Preset     string          `json:"preset,omitempty"`
	BaseConfig config.Override `json:"base_config"`
	MarketData []MarketRow     `json:"market_data,omitempty"`
	Variations []Variation     `json:"variations" binding:"required,min=1,dive"`
}

// Variation defines overrides applied on top of the base config
type Variation struct {
	Name   string          `json:"name" binding:"required"`
	Config config.Override `json:"config"`
}

// Rows converts inline market data to loader rows.
func Rows(in []MarketRow) []data.Row {
	out := make([]data.Row, len(in))
	for i, r := range in {
		out[i] = data.Row{
			Date:       r.Date,
			Price:      r.Price,
			Volatility: r.Volatility,
			Rate:       r.Rate,
		}
	}
	return out
}
