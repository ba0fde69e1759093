package strategy

// HysteresisPolicy opens like ThresholdPolicy but, once hedged, keeps the
// hedge on until volatility drops to ExitThreshold or below.
type HysteresisPolicy struct {
	ThresholdPolicy
	ExitThreshold float64
}

func (p HysteresisPolicy) Name() string { return "hysteresis" }

func (p HysteresisPolicy) Target(ctx Context) float64 {
	vol := ctx.Day.Volatility
	switch {
	case vol > p.Threshold:
	case ctx.Hedged && vol > p.ExitThreshold:
	default:
		return 0
	}
	return p.size(ctx.Equity, ctx.Price)
}
