package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cfd-hedge-backtest/internal/analysis"
	"cfd-hedge-backtest/internal/model"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration shape (YAML). The same shape is
// accepted as JSON by the API, where zero fields mean "use the default".
type Config struct {
	InitialCapital           float64            `yaml:"initial_capital" json:"initial_capital,omitempty"`
	EquityAllocation         float64            `yaml:"equity_allocation" json:"equity_allocation,omitempty"`
	LotSize                  float64            `yaml:"lot_size" json:"lot_size,omitempty"`
	MarginTiers              []MarginTierConfig `yaml:"margin_tiers" json:"margin_tiers,omitempty"`
	MarginCeiling            float64            `yaml:"margin_ceiling" json:"margin_ceiling,omitempty"`
	BrokerAnnualFinancingFee float64            `yaml:"broker_annual_financing_fee" json:"broker_annual_financing_fee,omitempty"`
	BorrowingCostAnnual      float64            `yaml:"borrowing_cost_annual" json:"borrowing_cost_annual,omitempty"`
	AvgSpreadPoints          float64            `yaml:"avg_spread_points" json:"avg_spread_points,omitempty"`
	DaysInYearFinancing      float64            `yaml:"days_in_year_financing" json:"days_in_year_financing,omitempty"`
	TradingDaysPerYear       float64            `yaml:"trading_days_per_year" json:"trading_days_per_year,omitempty"`

	HedgingStrategy HedgingConfig           `yaml:"hedging_strategy" json:"hedging_strategy"`
	CrisisPeriods   map[string]PeriodConfig `yaml:"crisis_periods" json:"crisis_periods,omitempty"`
	Recovery        *RecoveryConfig         `yaml:"recovery" json:"recovery,omitempty"`

	Data   DataConfig   `yaml:"data" json:"data"`
	Output OutputConfig `yaml:"output" json:"output"`
}

type MarginTierConfig struct {
	Limit float64 `yaml:"limit" json:"limit"`
	Rate  float64 `yaml:"rate" json:"rate"`
}

type HedgingConfig struct {
	VIXThreshold float64          `yaml:"vix_threshold" json:"vix_threshold,omitempty"`
	HedgeRatio   float64          `yaml:"hedge_ratio" json:"hedge_ratio,omitempty"`
	Hysteresis   HysteresisConfig `yaml:"hysteresis" json:"hysteresis"`
}

// HysteresisConfig is off by default; see strategy.HysteresisPolicy.
type HysteresisConfig struct {
	Enabled       bool    `yaml:"enabled" json:"enabled"`
	ExitThreshold float64 `yaml:"exit_threshold" json:"exit_threshold,omitempty"`
}

// PeriodConfig is an inclusive date range, "YYYY-MM-DD".
type PeriodConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

type RecoveryConfig struct {
	TroughStart string `yaml:"trough_start" json:"trough_start"`
	TroughEnd   string `yaml:"trough_end" json:"trough_end"`
	AssessEnd   string `yaml:"assess_end" json:"assess_end"`
}

type DataConfig struct {
	// Local CSV with date, price, volatility and optional rate columns.
	// Relative paths are resolved against the config file's directory first.
	File             string   `yaml:"file" json:"file,omitempty"`
	SymbolIndex      string   `yaml:"symbol_index" json:"symbol_index,omitempty"`
	SymbolVolatility string   `yaml:"symbol_volatility" json:"symbol_volatility,omitempty"`
	StartDate        string   `yaml:"start_date" json:"start_date,omitempty"`
	EndDate          string   `yaml:"end_date" json:"end_date,omitempty"`
	DefaultRate      *float64 `yaml:"default_rate" json:"default_rate,omitempty"`
	APIKeyEnvVar     string   `yaml:"api_key_env_var" json:"api_key_env_var,omitempty"`
	BaseURL          string   `yaml:"base_url" json:"base_url,omitempty"`
	CacheTTL         string   `yaml:"cache_ttl" json:"cache_ttl,omitempty"`
}

type OutputConfig struct {
	Dir       string `yaml:"dir" json:"dir,omitempty"`
	LedgerCSV string `yaml:"ledger_csv" json:"ledger_csv,omitempty"`
	SeriesCSV string `yaml:"series_csv" json:"series_csv,omitempty"`
	XLSX      string `yaml:"xlsx" json:"xlsx,omitempty"`
}

// requiredKeys must be present in every config file; everything else has a default.
var requiredKeys = []string{
	"initial_capital",
	"equity_allocation",
	"lot_size",
	"margin_tiers",
	"broker_annual_financing_fee",
	"borrowing_cost_annual",
	"avg_spread_points",
	"hedging_strategy",
}

const (
	defaultDaysInYearFinancing = 360
	defaultTradingDaysPerYear  = 252
	defaultRate                = 0.015
)

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := checkRequired(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.resolvePaths(path)
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked loads the config, but does not check required keys, apply
// defaults or validate it. Unknown keys are still rejected.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := decode(raw)
	if err != nil {
		return nil, err
	}
	c.resolvePaths(path)
	return c, nil
}

func decode(raw []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var c Config
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("config is empty")
		}
		return nil, err
	}
	return &c, nil
}

func checkRequired(raw []byte) error {
	var present map[string]any
	if err := yaml.Unmarshal(raw, &present); err != nil {
		return err
	}
	var missing []string
	for _, k := range requiredKeys {
		if _, ok := present[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

// resolvePaths prefers interpreting data.file relative to the config file
// directory, but falls back to the provided path (relative to cwd).
func (c *Config) resolvePaths(configPath string) {
	if c.Data.File == "" || filepath.IsAbs(c.Data.File) {
		return
	}
	cand := filepath.Join(filepath.Dir(configPath), c.Data.File)
	if _, err := os.Stat(cand); err == nil {
		c.Data.File = cand
	}
}

// ApplyDefaults fills optional fields left at their zero value.
func (c *Config) ApplyDefaults() {
	if c.DaysInYearFinancing == 0 {
		c.DaysInYearFinancing = defaultDaysInYearFinancing
	}
	if c.TradingDaysPerYear == 0 {
		c.TradingDaysPerYear = defaultTradingDaysPerYear
	}
	if c.MarginCeiling == 0 {
		c.MarginCeiling = c.InitialCapital
	}
	if c.Data.SymbolIndex == "" {
		c.Data.SymbolIndex = "^GSPC"
	}
	if c.Data.SymbolVolatility == "" {
		c.Data.SymbolVolatility = "^VIX"
	}
	if c.Data.DefaultRate == nil {
		r := defaultRate
		c.Data.DefaultRate = &r
	}
	if c.Data.APIKeyEnvVar == "" {
		c.Data.APIKeyEnvVar = "FMP_API_KEY"
	}
	if c.Data.BaseURL == "" {
		c.Data.BaseURL = "https://financialmodelingprep.com/api/v3"
	}
	if c.Data.CacheTTL == "" {
		c.Data.CacheTTL = "24h"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "output"
	}
	if c.Output.LedgerCSV == "" {
		c.Output.LedgerCSV = "cost_ledger.csv"
	}
	if c.Output.SeriesCSV == "" {
		c.Output.SeriesCSV = "portfolio_values.csv"
	}
	if c.Output.XLSX == "" {
		c.Output.XLSX = "report.xlsx"
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}
	if _, err := c.Periods(); err != nil {
		return err
	}
	if _, err := c.RecoveryWindow(); err != nil {
		return err
	}
	if _, _, err := c.DateRange(); err != nil {
		return err
	}
	if c.Data.CacheTTL != "" {
		if _, err := time.ParseDuration(c.Data.CacheTTL); err != nil {
			return fmt.Errorf("data.cache_ttl: %w", err)
		}
	}
	return nil
}

// Params converts the config into the immutable simulation parameters.
func (c *Config) Params() model.Params {
	tiers := make([]model.MarginTier, len(c.MarginTiers))
	for i, t := range c.MarginTiers {
		tiers[i] = model.MarginTier{Limit: t.Limit, Rate: t.Rate}
	}
	return model.Params{
		Portfolio: model.PortfolioParams{
			InitialCapital:   c.InitialCapital,
			EquityAllocation: c.EquityAllocation,
		},
		Costs: model.CostParams{
			LotSize:            c.LotSize,
			MarginTiers:        tiers,
			MarginCeiling:      c.MarginCeiling,
			BrokerFinancingFee: c.BrokerAnnualFinancingFee,
			BorrowingRate:      c.BorrowingCostAnnual,
			AvgSpreadPoints:    c.AvgSpreadPoints,
			DaysInYear:         c.DaysInYearFinancing,
		},
		Hedge: model.HedgeParams{
			VolThreshold:  c.HedgingStrategy.VIXThreshold,
			HedgeRatio:    c.HedgingStrategy.HedgeRatio,
			Hysteresis:    c.HedgingStrategy.Hysteresis.Enabled,
			ExitThreshold: c.HedgingStrategy.Hysteresis.ExitThreshold,
		},
		TradingDaysPerYear: c.TradingDaysPerYear,
	}
}

// Periods returns the crisis periods ordered by start date, then name.
func (c *Config) Periods() ([]analysis.Period, error) {
	out := make([]analysis.Period, 0, len(c.CrisisPeriods))
	for name, p := range c.CrisisPeriods {
		start, err := parseDate(p.Start)
		if err != nil {
			return nil, fmt.Errorf("crisis_periods.%s.start: %w", name, err)
		}
		end, err := parseDate(p.End)
		if err != nil {
			return nil, fmt.Errorf("crisis_periods.%s.end: %w", name, err)
		}
		if end.Before(start) {
			return nil, fmt.Errorf("crisis_periods.%s: end before start", name)
		}
		out = append(out, analysis.Period{Name: name, Start: start, End: end})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// RecoveryWindow returns nil when no recovery check is configured.
func (c *Config) RecoveryWindow() (*analysis.RecoveryWindow, error) {
	if c.Recovery == nil {
		return nil, nil
	}
	var w analysis.RecoveryWindow
	var err error
	if w.TroughStart, err = parseDate(c.Recovery.TroughStart); err != nil {
		return nil, fmt.Errorf("recovery.trough_start: %w", err)
	}
	if w.TroughEnd, err = parseDate(c.Recovery.TroughEnd); err != nil {
		return nil, fmt.Errorf("recovery.trough_end: %w", err)
	}
	if w.AssessEnd, err = parseDate(c.Recovery.AssessEnd); err != nil {
		return nil, fmt.Errorf("recovery.assess_end: %w", err)
	}
	if w.TroughEnd.Before(w.TroughStart) || w.AssessEnd.Before(w.TroughEnd) {
		return nil, errors.New("recovery: dates must satisfy trough_start <= trough_end <= assess_end")
	}
	return &w, nil
}

// DateRange parses data.start_date and data.end_date. Either may be zero.
func (c *Config) DateRange() (start, end time.Time, err error) {
	if c.Data.StartDate != "" {
		if start, err = parseDate(c.Data.StartDate); err != nil {
			return start, end, fmt.Errorf("data.start_date: %w", err)
		}
	}
	if c.Data.EndDate != "" {
		if end, err = parseDate(c.Data.EndDate); err != nil {
			return start, end, fmt.Errorf("data.end_date: %w", err)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, errors.New("data: end_date before start_date")
	}
	return start, end, nil
}

// Rate returns the configured fallback reference rate.
func (c *Config) Rate() float64 {
	if c.Data.DefaultRate == nil {
		return defaultRate
	}
	return *c.Data.DefaultRate
}

func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Data.CacheTTL)
	if err != nil {
		return 0
	}
	return d
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(model.DateLayout, strings.TrimSpace(s))
}
