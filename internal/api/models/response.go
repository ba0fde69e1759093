package models

import (
	"time"

	"cfd-hedge-backtest/internal/analysis"
	"cfd-hedge-backtest/internal/backtest"
	"cfd-hedge-backtest/internal/model"
)

// SimulateResponse represents the response from a simulation run
type SimulateResponse struct {
	ID       string             `json:"id,omitempty"`
	Status   string             `json:"status"`
	Window   TimeWindow         `json:"window"`
	Days     int                `json:"days"`
	Policy   string             `json:"policy"`
	Summary  map[string]Summary `json:"summary"` // keyed by model: "A", "B"
	Metrics  []PeriodMetrics    `json:"metrics"`
	Skipped  []string           `json:"skipped_periods,omitempty"`
	Verdicts []analysis.Verdict `json:"verdicts"`
	Recovery *Recovery          `json:"recovery,omitempty"`
	Ledger   []LedgerRow        `json:"ledger,omitempty"`
	Series   []SeriesPoint      `json:"series,omitempty"`
}

// TimeWindow represents a date range
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Summary contains aggregated results for one model
type Summary struct {
	FinalValue     float64 `json:"final_value"`
	TotalFinancing float64 `json:"total_financing"`
	TotalBorrowing float64 `json:"total_borrowing"`
	TotalSpread    float64 `json:"total_spread"`
	TotalCosts     float64 `json:"total_costs"`
	TotalHedgePNL  float64 `json:"total_hedge_pnl"`
	DaysHedged     int     `json:"days_hedged"`
	Liquidations   int     `json:"liquidations"`
	Anomalies      int     `json:"anomalies"`
	Recoveries     int     `json:"recoveries"`
}

// PeriodMetrics holds both models' metrics over one period
type PeriodMetrics struct {
	Period string           `json:"period"`
	Start  string           `json:"start"`
	End    string           `json:"end"`
	Points int              `json:"points"`
	A      analysis.Metrics `json:"model_a"`
	B      analysis.Metrics `json:"model_b"`
}

// Recovery reports the trough-to-assessment-end comparison
type Recovery struct {
	TroughDateA string          `json:"trough_date_a"`
	TroughDateB string          `json:"trough_date_b"`
	EndDate     string          `json:"end_date"`
	ReturnA     analysis.Figure `json:"return_a"`
	ReturnB     analysis.Figure `json:"return_b"`
	Verdict     string          `json:"verdict"`
}

// LedgerRow represents one day in the hedged model's ledger
type LedgerRow struct {
	Index          int     `json:"index"`
	Date           string  `json:"date"`
	Price          float64 `json:"price"`
	Volatility     float64 `json:"volatility"`
	Action         string  `json:"action"` // HOLD, OPEN, INCREASE, REDUCE, CLOSE, LIQUIDATED
	TargetPosition float64 `json:"target_position"`
	Position       float64 `json:"position"`
	Margin         float64 `json:"margin"`
	Financing      float64 `json:"financing"`
	Borrowing      float64 `json:"borrowing"`
	Spread         float64 `json:"spread"`
	TotalCost      float64 `json:"total_cost"`
	HedgePNL       float64 `json:"hedge_pnl"`
	Equity         float64 `json:"equity"`
	Cash           float64 `json:"cash"`
	Value          float64 `json:"value"`
	Liquidated     bool    `json:"liquidated,omitempty"`
	Recovered      bool    `json:"recovered,omitempty"`
}

// SeriesPoint is one date of both value series
type SeriesPoint struct {
	Date string  `json:"date"`
	A    float64 `json:"model_a"`
	B    float64 `json:"model_b"`
}

// CompareResponse represents the response from a comparison
type CompareResponse struct {
	Comparison []ComparisonResult `json:"comparison"`
}

// ComparisonResult contains results for one variation
type ComparisonResult struct {
	Name     string             `json:"name"`
	Policy   string             `json:"policy,omitempty"`
	Summary  *Summary           `json:"summary,omitempty"`
	Full     *PeriodMetrics     `json:"full,omitempty"`
	Verdicts []analysis.Verdict `json:"verdicts,omitempty"`
	Error    *ErrorDetail       `json:"error,omitempty"`
}

// StreamMessage is one websocket frame of a streamed simulation
type StreamMessage struct {
	Type   string            `json:"type"` // "day", "result" or "error"
	Day    *LedgerRow        `json:"day,omitempty"`
	Result *SimulateResponse `json:"result,omitempty"`
	Error  *ErrorDetail      `json:"error,omitempty"`
}

// PresetInfo describes a config preset on disk
type PresetInfo struct {
	ID             string  `json:"id"`
	File           string  `json:"file"`
	Policy         string  `json:"policy"`
	VIXThreshold   float64 `json:"vix_threshold"`
	HedgeRatio     float64 `json:"hedge_ratio"`
	InitialCapital float64 `json:"initial_capital,omitempty"`
	CrisisPeriods  int     `json:"crisis_periods"`
}

// PolicyInfo represents information about a hedging policy
type PolicyInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterInfo `json:"parameters"`
}

// ParameterInfo describes a policy parameter
type ParameterInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float", "bool"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// MarketDataResponse is a preview of the prepared market timeline
type MarketDataResponse struct {
	Source      string      `json:"source"` // "file" or "fmp"
	Window      TimeWindow  `json:"window"`
	Days        int         `json:"days"`
	Fingerprint string      `json:"fingerprint"`
	Rows        []MarketDay `json:"rows,omitempty"`
}

// MarketDay is one prepared trading day
type MarketDay struct {
	Date       string   `json:"date"`
	Price      float64  `json:"price"`
	Volatility float64  `json:"volatility"`
	Rate       float64  `json:"rate"`
	Return     *float64 `json:"return"` // null when missing
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func NewSummary(s backtest.Summary) Summary {
	return Summary{
		FinalValue:     s.FinalValue,
		TotalFinancing: s.TotalFinancing,
		TotalBorrowing: s.TotalBorrowing,
		TotalSpread:    s.TotalSpread,
		TotalCosts:     s.TotalCosts,
		TotalHedgePNL:  s.TotalHedgePNL,
		DaysHedged:     s.DaysHedged,
		Liquidations:   s.Liquidations,
		Anomalies:      s.Anomalies,
		Recoveries:     s.Recoveries,
	}
}

func NewPeriodMetrics(pm analysis.PeriodMetrics) PeriodMetrics {
	return PeriodMetrics{
		Period: pm.Name,
		Start:  pm.Start.Format(model.DateLayout),
		End:    pm.End.Format(model.DateLayout),
		Points: pm.Points,
		A:      pm.A,
		B:      pm.B,
	}
}

func NewLedgerRow(r backtest.LedgerRow) LedgerRow {
	return LedgerRow{
		Index:          r.Index,
		Date:           r.Date.Format(model.DateLayout),
		Price:          r.Price,
		Volatility:     r.Volatility,
		Action:         string(r.Action),
		TargetPosition: r.TargetPosition,
		Position:       r.Position,
		Margin:         r.Margin,
		Financing:      r.Financing,
		Borrowing:      r.Borrowing,
		Spread:         r.Spread,
		TotalCost:      r.TotalCost,
		HedgePNL:       r.HedgePNL,
		Equity:         r.Equity,
		Cash:           r.Cash,
		Value:          r.Value,
		Liquidated:     r.Liquidated,
		Recovered:      r.Recovered,
	}
}

func NewLedger(ledger []backtest.LedgerRow) []LedgerRow {
	out := make([]LedgerRow, len(ledger))
	for i, r := range ledger {
		out[i] = NewLedgerRow(r)
	}
	return out
}

func NewSeries(joined []analysis.JoinedPoint) []SeriesPoint {
	out := make([]SeriesPoint, len(joined))
	for i, p := range joined {
		out[i] = SeriesPoint{Date: p.Date.Format(model.DateLayout), A: p.A, B: p.B}
	}
	return out
}

func NewRecovery(r *analysis.RecoveryResult) *Recovery {
	if r == nil {
		return nil
	}
	return &Recovery{
		TroughDateA: r.TroughDateA.Format(model.DateLayout),
		TroughDateB: r.TroughDateB.Format(model.DateLayout),
		EndDate:     r.EndDate.Format(model.DateLayout),
		ReturnA:     r.ReturnA,
		ReturnB:     r.ReturnB,
		Verdict:     r.Verdict.Result,
	}
}
