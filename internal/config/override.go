package config

import (
	"encoding/json"
	"strings"
)

// Override is a partial Config sent by API clients. It remembers which JSON
// keys were present so that an explicit zero (e.g. "avg_spread_points": 0)
// replaces the default instead of being ignored like in Merge.
type Override struct {
	Config
	present map[string]bool
}

// OverrideOf wraps a Go-built partial config; only its non-zero fields apply.
func OverrideOf(c Config) Override {
	return Override{Config: c}
}

func (o *Override) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &o.Config); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	o.present = make(map[string]bool)
	collectKeys("", raw, o.present)
	return nil
}

// Has reports whether the dotted key path, e.g. "hedging_strategy.hedge_ratio",
// was present in the decoded JSON.
func (o Override) Has(path string) bool {
	return o.present[path]
}

func collectKeys(prefix string, raw map[string]json.RawMessage, out map[string]bool) {
	for k, v := range raw {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		out[path] = true
		if !strings.HasPrefix(strings.TrimSpace(string(v)), "{") {
			continue
		}
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(v, &inner); err == nil {
			collectKeys(path, inner, out)
		}
	}
}

// MergeOverride is Merge plus explicit zeros for the fields where zero is a
// meaningful value. Hysteresis can only be switched on, as in MergeHedging.
func MergeOverride(base Config, o Override) Config {
	out := Merge(base, o.Config)
	if o.Has("equity_allocation") {
		out.EquityAllocation = o.EquityAllocation
	}
	if o.Has("broker_annual_financing_fee") {
		out.BrokerAnnualFinancingFee = o.BrokerAnnualFinancingFee
	}
	if o.Has("borrowing_cost_annual") {
		out.BorrowingCostAnnual = o.BorrowingCostAnnual
	}
	if o.Has("avg_spread_points") {
		out.AvgSpreadPoints = o.AvgSpreadPoints
	}
	if o.Has("hedging_strategy.vix_threshold") {
		out.HedgingStrategy.VIXThreshold = o.HedgingStrategy.VIXThreshold
	}
	if o.Has("hedging_strategy.hedge_ratio") {
		out.HedgingStrategy.HedgeRatio = o.HedgingStrategy.HedgeRatio
	}
	if o.Has("hedging_strategy.hysteresis.exit_threshold") {
		out.HedgingStrategy.Hysteresis.ExitThreshold = o.HedgingStrategy.Hysteresis.ExitThreshold
	}
	return out
}
