package backtest

import (
	"time"

	"cfd-hedge-backtest/internal/model"
)

// LedgerRow is one row of per-day output of the hedged model.
// This is the primary artifact for "what happened" in a backtest: the three
// sub-accounts always add up to Value.
type LedgerRow struct {
	Index int
	Date  time.Time

	Price      float64
	Volatility float64

	Action model.HedgeAction

	TargetPosition float64
	Position       float64
	Margin         float64

	Financing float64 // positive = cost, negative = credit
	Borrowing float64
	Spread    float64
	TotalCost float64

	HedgePNL float64

	Equity float64
	Cash   float64
	Value  float64

	Liquidated bool
	// Recovered marks a day whose computed total was non-finite; the previous
	// day's state was carried instead.
	Recovered bool
}

// Summary aggregates a run's ledger and anomaly counters.
type Summary struct {
	FinalValue float64

	TotalFinancing float64
	TotalBorrowing float64
	TotalSpread    float64
	TotalCosts     float64
	TotalHedgePNL  float64

	Anomalies    int
	Liquidations int
	DaysHedged   int
	Recoveries   int
}

type Result struct {
	Model string
	// Series starts with the seed value dated one day before the first
	// trading day, followed by one point per trading day.
	Series  []model.DatedValue
	Ledger  []LedgerRow
	Summary Summary
}

// Values returns the series values without dates.
func (r *Result) Values() []float64 {
	out := make([]float64, len(r.Series))
	for i, p := range r.Series {
		out[i] = p.Value
	}
	return out
}
