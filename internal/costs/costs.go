// Package costs prices a CFD index position: tiered margin, overnight
// financing, short borrowing and the bid/ask spread paid on closings.
//
// Every function is pure. Non-positive or NaN inputs are treated as an empty
// position and cost nothing.
package costs

import (
	"math"

	"cfd-hedge-backtest/internal/model"
)

// Notional is the exposure of contracts at price, in account currency.
func Notional(contracts, price float64, p model.CostParams) float64 {
	if !positive(contracts) || !positive(price) || !positive(p.LotSize) {
		return 0
	}
	return contracts * price * p.LotSize
}

// Margin applies the tier schedule contract by contract: contracts up to a
// tier's limit are charged at that tier's rate and the remainder spills into
// the next tier. Contracts beyond the last tier are not charged.
func Margin(contracts, price float64, p model.CostParams) float64 {
	notional := Notional(contracts, price, p)
	if notional == 0 {
		return 0
	}
	perContract := price * p.LotSize

	margin := 0.0
	remaining := contracts
	lastLimit := 0.0
	for _, t := range p.SortedTiers() {
		if remaining <= 0 {
			break
		}
		capacity := t.Limit - lastLimit
		if capacity > 0 {
			n := math.Min(remaining, capacity)
			margin += n * perContract * t.Rate
			remaining -= n
		}
		lastLimit = t.Limit
	}

	if !model.Finite(margin) {
		if p.MarginCeiling > 0 {
			return math.Min(notional, p.MarginCeiling)
		}
		return notional
	}
	return math.Min(margin, notional)
}

// FinancingCost is the overnight charge for holding the position one day.
// Positive is a cost, negative a credit. Shorts earn (rate - fee) on
// notional; longs pay (rate + fee).
func FinancingCost(contracts, price, rate float64, p model.CostParams, short bool) float64 {
	notional := Notional(contracts, price, p)
	if notional == 0 || math.IsNaN(rate) || !positive(p.DaysInYear) {
		return 0
	}
	if short {
		return -(notional * (rate - p.BrokerFinancingFee)) / p.DaysInYear
	}
	return notional * (rate + p.BrokerFinancingFee) / p.DaysInYear
}

// BorrowingCost is the daily stock-borrow charge. Longs pay nothing.
func BorrowingCost(contracts, price float64, p model.CostParams, short bool) float64 {
	if !short {
		return 0
	}
	notional := Notional(contracts, price, p)
	if notional == 0 || !positive(p.BorrowingRate) || !positive(p.DaysInYear) {
		return 0
	}
	return notional * p.BorrowingRate / p.DaysInYear
}

// SpreadCost is charged on contracts closed during the day.
func SpreadCost(closed float64, p model.CostParams) float64 {
	if !positive(closed) || !positive(p.LotSize) || !positive(p.AvgSpreadPoints) {
		return 0
	}
	return closed * p.LotSize * p.AvgSpreadPoints
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 1)
}
