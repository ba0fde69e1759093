package strategy

import "cfd-hedge-backtest/internal/model"

// Context is everything a policy may observe on one simulated day.
// Equity is the post-mark equity sub-account; Position is the short contract
// count carried into the day.
type Context struct {
	Index    int
	Day      model.MarketDay
	Equity   float64
	Price    float64
	Position float64
	Hedged   bool
}

// Policy maps today's observable state to a target short position (contracts).
// Implementations must be pure: the simulators may call them concurrently
// from independent runs.
type Policy interface {
	Name() string
	Target(ctx Context) float64
}

// FromParams returns the policy selected by the hedge parameters.
func FromParams(p model.HedgeParams, lotSize float64) Policy {
	base := ThresholdPolicy{
		Threshold: p.VolThreshold,
		Ratio:     p.HedgeRatio,
		LotSize:   lotSize,
	}
	if p.Hysteresis {
		return HysteresisPolicy{ThresholdPolicy: base, ExitThreshold: p.ExitThreshold}
	}
	return base
}
