package config

// Default returns the reference configuration: a 1,000,000 portfolio split
// 80/20 with a half-equity hedge above VIX 25, evaluated over the 2020 COVID
// crash and its recovery.
func Default() *Config {
	c := &Config{
		InitialCapital:   1_000_000,
		EquityAllocation: 0.8,
		LotSize:          1,
		MarginTiers: []MarginTierConfig{
			{Limit: 10, Rate: 0.05},
			{Limit: 50, Rate: 0.10},
			{Limit: 1_000_000, Rate: 0.20},
		},
		BrokerAnnualFinancingFee: 0.025,
		BorrowingCostAnnual:      0.003,
		AvgSpreadPoints:          0.5,
		HedgingStrategy: HedgingConfig{
			VIXThreshold: 25,
			HedgeRatio:   0.5,
		},
		CrisisPeriods: map[string]PeriodConfig{
			"COVID": {Start: "2020-02-01", End: "2020-04-30"},
		},
		Recovery: &RecoveryConfig{
			TroughStart: "2020-02-01",
			TroughEnd:   "2020-04-30",
			AssessEnd:   "2020-08-31",
		},
		Data: DataConfig{
			StartDate: "2019-01-01",
		},
	}
	c.ApplyDefaults()
	return c
}

// Merge overlays non-zero fields from override onto base.
// This is used by the API to apply request overrides to the defaults.
func Merge(base, override Config) Config {
	out := base
	if override.InitialCapital != 0 {
		out.InitialCapital = override.InitialCapital
		// a ceiling derived from the old capital would be stale
		if override.MarginCeiling == 0 && base.MarginCeiling == base.InitialCapital {
			out.MarginCeiling = override.InitialCapital
		}
	}
	if override.EquityAllocation != 0 {
		out.EquityAllocation = override.EquityAllocation
	}
	if override.LotSize != 0 {
		out.LotSize = override.LotSize
	}
	if len(override.MarginTiers) > 0 {
		out.MarginTiers = append([]MarginTierConfig(nil), override.MarginTiers...)
	}
	if override.MarginCeiling != 0 {
		out.MarginCeiling = override.MarginCeiling
	}
	if override.BrokerAnnualFinancingFee != 0 {
		out.BrokerAnnualFinancingFee = override.BrokerAnnualFinancingFee
	}
	if override.BorrowingCostAnnual != 0 {
		out.BorrowingCostAnnual = override.BorrowingCostAnnual
	}
	if override.AvgSpreadPoints != 0 {
		out.AvgSpreadPoints = override.AvgSpreadPoints
	}
	if override.DaysInYearFinancing != 0 {
		out.DaysInYearFinancing = override.DaysInYearFinancing
	}
	if override.TradingDaysPerYear != 0 {
		out.TradingDaysPerYear = override.TradingDaysPerYear
	}
	out.HedgingStrategy = MergeHedging(base.HedgingStrategy, override.HedgingStrategy)
	if len(override.CrisisPeriods) > 0 {
		out.CrisisPeriods = make(map[string]PeriodConfig, len(override.CrisisPeriods))
		for k, v := range override.CrisisPeriods {
			out.CrisisPeriods[k] = v
		}
	}
	if override.Recovery != nil {
		r := *override.Recovery
		out.Recovery = &r
	}
	out.Data = mergeData(base.Data, override.Data)
	return out
}

func MergeHedging(base, override HedgingConfig) HedgingConfig {
	out := base
	if override.VIXThreshold != 0 {
		out.VIXThreshold = override.VIXThreshold
	}
	if override.HedgeRatio != 0 {
		out.HedgeRatio = override.HedgeRatio
	}
	if override.Hysteresis.Enabled {
		out.Hysteresis.Enabled = true
	}
	if override.Hysteresis.ExitThreshold != 0 {
		out.Hysteresis.ExitThreshold = override.Hysteresis.ExitThreshold
	}
	return out
}

func mergeData(base, override DataConfig) DataConfig {
	out := base
	if override.StartDate != "" {
		out.StartDate = override.StartDate
	}
	if override.EndDate != "" {
		out.EndDate = override.EndDate
	}
	if override.DefaultRate != nil {
		r := *override.DefaultRate
		out.DefaultRate = &r
	}
	return out
}
