package strategy

import "cfd-hedge-backtest/internal/model"

// ThresholdPolicy shorts Ratio of equity while volatility is above Threshold
// and holds nothing otherwise. It has no memory: Context.Hedged is ignored.
type ThresholdPolicy struct {
	Threshold float64
	Ratio     float64
	LotSize   float64
}

func (p ThresholdPolicy) Name() string { return "threshold" }

func (p ThresholdPolicy) Target(ctx Context) float64 {
	if !(ctx.Day.Volatility > p.Threshold) {
		return 0
	}
	return p.size(ctx.Equity, ctx.Price)
}

// size converts Ratio of equity into contracts at price.
func (p ThresholdPolicy) size(equity, price float64) float64 {
	if !(equity > 0) || !(price > 0) || !(p.LotSize > 0) || !(p.Ratio > 0) {
		return 0
	}
	n := equity * p.Ratio / (price * p.LotSize)
	if !model.Finite(n) || n < 0 {
		return 0
	}
	return n
}
