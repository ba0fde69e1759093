package model

import (
	"errors"
	"fmt"
	"sort"
)

// MarginTier charges Rate on contracts up to Limit (cumulative contract count).
type MarginTier struct {
	Limit float64
	Rate  float64
}

// CostParams defines the CFD cost schedule.
// Units:
// - LotSize: index points per contract multiplier
// - BrokerFinancingFee, BorrowingRate: annualized fractions
// - AvgSpreadPoints: index points charged per closed contract-lot
// - DaysInYear: proration basis for overnight charges (e.g. 360)
type CostParams struct {
	LotSize            float64
	MarginTiers        []MarginTier
	MarginCeiling      float64
	BrokerFinancingFee float64
	BorrowingRate      float64
	AvgSpreadPoints    float64
	DaysInYear         float64
}

// SortedTiers returns a copy of the tier schedule ordered by ascending limit.
func (c CostParams) SortedTiers() []MarginTier {
	out := make([]MarginTier, len(c.MarginTiers))
	copy(out, c.MarginTiers)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Limit < out[j].Limit })
	return out
}

// HedgeParams configures the volatility-triggered hedging policy.
type HedgeParams struct {
	VolThreshold float64
	HedgeRatio   float64

	// Hysteresis keeps an open hedge until volatility drops below
	// ExitThreshold instead of closing as soon as it falls under VolThreshold.
	Hysteresis    bool
	ExitThreshold float64
}

type PortfolioParams struct {
	InitialCapital   float64
	EquityAllocation float64
}

// Params is the full immutable parameter set of one simulation run.
type Params struct {
	Portfolio          PortfolioParams
	Costs              CostParams
	Hedge              HedgeParams
	TradingDaysPerYear float64
}

func (p Params) Validate() error {
	if p.Portfolio.InitialCapital <= 0 {
		return errors.New("InitialCapital must be > 0")
	}
	if p.Portfolio.EquityAllocation < 0 || p.Portfolio.EquityAllocation > 1 {
		return errors.New("EquityAllocation must be in [0, 1]")
	}
	if p.Costs.LotSize <= 0 {
		return errors.New("LotSize must be > 0")
	}
	if p.Costs.DaysInYear <= 0 {
		return errors.New("DaysInYear must be > 0")
	}
	if p.Costs.AvgSpreadPoints < 0 || p.Costs.BorrowingRate < 0 {
		return errors.New("AvgSpreadPoints and BorrowingRate must be >= 0")
	}
	if len(p.Costs.MarginTiers) == 0 {
		return errors.New("at least one margin tier is required")
	}
	for i, t := range p.Costs.MarginTiers {
		if t.Limit <= 0 {
			return fmt.Errorf("margin tier %d: limit must be > 0", i)
		}
		if t.Rate < 0 || t.Rate > 1 {
			return fmt.Errorf("margin tier %d: rate must be in [0, 1]", i)
		}
	}
	if p.Hedge.HedgeRatio < 0 {
		return errors.New("HedgeRatio must be >= 0")
	}
	if p.Hedge.Hysteresis && p.Hedge.ExitThreshold > p.Hedge.VolThreshold {
		return errors.New("ExitThreshold must not exceed VolThreshold")
	}
	if p.TradingDaysPerYear <= 0 {
		return errors.New("TradingDaysPerYear must be > 0")
	}
	return nil
}
