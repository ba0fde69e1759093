package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"cfd-hedge-backtest/internal/model"
)

func ctx(vol, equity, price float64, hedged bool) Context {
	return Context{
		Day:    model.MarketDay{Volatility: vol, Price: price},
		Equity: equity,
		Price:  price,
		Hedged: hedged,
	}
}

func TestThresholdPolicy_Target(t *testing.T) {
	p := ThresholdPolicy{Threshold: 25, Ratio: 0.5, LotSize: 1}

	cases := []struct {
		name string
		c    Context
		want float64
	}{
		{"below threshold", ctx(20, 800_000, 4000, false), 0},
		{"at threshold", ctx(25, 800_000, 4000, false), 0},
		{"above threshold", ctx(30, 780_000, 3900, false), 100},
		{"hedged flag ignored", ctx(20, 780_000, 3900, true), 0},
		{"zero equity", ctx(30, 0, 3900, false), 0},
		{"negative price", ctx(30, 780_000, -1, false), 0},
		{"nan equity", ctx(30, math.NaN(), 3900, false), 0},
		{"nan volatility", ctx(math.NaN(), 780_000, 3900, false), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, p.Target(tc.c), 1e-9)
		})
	}
}

func TestThresholdPolicy_ZeroLotSize(t *testing.T) {
	p := ThresholdPolicy{Threshold: 25, Ratio: 0.5, LotSize: 0}
	assert.Equal(t, 0.0, p.Target(ctx(30, 780_000, 3900, false)))
}

func TestHysteresisPolicy_KeepsHedgeUntilExit(t *testing.T) {
	p := HysteresisPolicy{
		ThresholdPolicy: ThresholdPolicy{Threshold: 25, Ratio: 0.5, LotSize: 1},
		ExitThreshold:   18,
	}

	// Not hedged: behaves like the threshold policy.
	assert.Equal(t, 0.0, p.Target(ctx(20, 780_000, 3900, false)))
	// Hedged and still above the exit level: keep it on.
	assert.InDelta(t, 100.0, p.Target(ctx(20, 780_000, 3900, true)), 1e-9)
	// Hedged but volatility has normalized.
	assert.Equal(t, 0.0, p.Target(ctx(18, 780_000, 3900, true)))
}

func TestFromParams(t *testing.T) {
	hp := model.HedgeParams{VolThreshold: 25, HedgeRatio: 0.5}
	assert.Equal(t, "threshold", FromParams(hp, 1).Name())

	hp.Hysteresis = true
	hp.ExitThreshold = 20
	assert.Equal(t, "hysteresis", FromParams(hp, 1).Name())
}
