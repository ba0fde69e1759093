package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
initial_capital: 1000000
equity_allocation: 0.8
lot_size: 1
margin_tiers:
  - {limit: 50, rate: 0.10}
  - {limit: 10, rate: 0.05}
broker_annual_financing_fee: 0.025
borrowing_cost_annual: 0.003
avg_spread_points: 0.5
hedging_strategy:
  vix_threshold: 25
  hedge_ratio: 0.5
crisis_periods:
  later: {start: 2022-01-03, end: 2022-10-12}
  COVID: {start: 2020-02-01, end: 2020-04-30}
data:
  file: market.csv
  default_rate: 0
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, 360.0, c.DaysInYearFinancing)
	assert.Equal(t, 252.0, c.TradingDaysPerYear)
	assert.Equal(t, 1_000_000.0, c.MarginCeiling)
	assert.Equal(t, "^GSPC", c.Data.SymbolIndex)
	// an explicit zero rate is kept
	assert.Equal(t, 0.0, c.Rate())
	assert.Equal(t, "market.csv", c.Data.File)

	p := c.Params()
	assert.Equal(t, 0.5, p.Hedge.HedgeRatio)
	assert.Len(t, p.Costs.MarginTiers, 2)

	periods, err := c.Periods()
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "COVID", periods[0].Name)
	assert.Equal(t, "later", periods[1].Name)
}

func TestLoad_ResolvesDataFileNextToConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	csvPath := filepath.Join(filepath.Dir(path), "market.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("date,price,volatility\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, csvPath, c.Data.File)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, validYAML+"hedge_ratio_typo: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hedge_ratio_typo")
}

func TestLoad_RejectsMissingRequiredKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "initial_capital: 100\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lot_size")
	assert.Contains(t, err.Error(), "hedging_strategy")
}

func TestLoad_ValidatesValues(t *testing.T) {
	bad := []struct {
		name, from, to string
	}{
		{"allocation above one", "equity_allocation: 0.8", "equity_allocation: 1.5"},
		{"zero lot", "lot_size: 1", "lot_size: 0"},
		{"bad period date", "2020-04-30", "2020-13-45"},
		{"period end before start", "end: 2022-10-12", "end: 2021-10-12"},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			body := replaceOnce(validYAML, tc.from, tc.to)
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func replaceOnce(s, from, to string) string {
	return strings.Replace(s, from, to, 1)
}

func TestLoadUnchecked_SkipsValidation(t *testing.T) {
	c, err := LoadUnchecked(writeConfig(t, "initial_capital: -5\n"))
	require.NoError(t, err)
	assert.Equal(t, -5.0, c.InitialCapital)
	require.Error(t, c.Validate())
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	w, err := c.RecoveryWindow()
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestMerge(t *testing.T) {
	base := *Default()
	rate := 0.0
	out := Merge(base, Config{
		InitialCapital: 500_000,
		HedgingStrategy: HedgingConfig{
			HedgeRatio: 0.7,
			Hysteresis: HysteresisConfig{Enabled: true, ExitThreshold: 20},
		},
		Data: DataConfig{DefaultRate: &rate},
	})

	assert.Equal(t, 500_000.0, out.InitialCapital)
	assert.Equal(t, 500_000.0, out.MarginCeiling)
	assert.Equal(t, 0.8, out.EquityAllocation)
	assert.Equal(t, 25.0, out.HedgingStrategy.VIXThreshold)
	assert.Equal(t, 0.7, out.HedgingStrategy.HedgeRatio)
	assert.True(t, out.HedgingStrategy.Hysteresis.Enabled)
	assert.Equal(t, 0.0, out.Rate())
	require.NoError(t, out.Validate())

	// base is untouched
	assert.Equal(t, 0.5, base.HedgingStrategy.HedgeRatio)
	assert.Equal(t, 0.015, base.Rate())
}

func TestMergeOverride_ExplicitZeros(t *testing.T) {
	var o Override
	require.NoError(t, json.Unmarshal([]byte(`{
		"equity_allocation": 0,
		"avg_spread_points": 0,
		"hedging_strategy": {"hedge_ratio": 0, "hysteresis": {"enabled": true, "exit_threshold": 0}},
		"initial_capital": 250000
	}`), &o))
	assert.True(t, o.Has("hedging_strategy.hysteresis.exit_threshold"))
	assert.False(t, o.Has("borrowing_cost_annual"))

	out := MergeOverride(*Default(), o)
	assert.Zero(t, out.EquityAllocation)
	assert.Zero(t, out.AvgSpreadPoints)
	assert.Zero(t, out.HedgingStrategy.HedgeRatio)
	assert.True(t, out.HedgingStrategy.Hysteresis.Enabled)
	assert.Equal(t, 250_000.0, out.InitialCapital)
	assert.Equal(t, 0.003, out.BorrowingCostAnnual)
	assert.Equal(t, 25.0, out.HedgingStrategy.VIXThreshold)
	require.NoError(t, out.Validate())

	// built in Go, zeros still mean "keep the default"
	out = MergeOverride(*Default(), OverrideOf(Config{AvgSpreadPoints: 0, LotSize: 2}))
	assert.Equal(t, 0.5, out.AvgSpreadPoints)
	assert.Equal(t, 2.0, out.LotSize)
}
