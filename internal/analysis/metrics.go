package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"cfd-hedge-backtest/internal/model"
)

type MetricName string

const (
	TotalReturn          MetricName = "total_return"
	AnnualizedReturn     MetricName = "annualized_return"
	AnnualizedVolatility MetricName = "annualized_volatility"
	SharpeRatio          MetricName = "sharpe_ratio"
	MaxDrawdown          MetricName = "max_drawdown"
	VaR95                MetricName = "var_95"
	ES95                 MetricName = "es_95"
)

// MetricNames lists every metric in display order.
var MetricNames = []MetricName{
	TotalReturn, AnnualizedReturn, AnnualizedVolatility, SharpeRatio, MaxDrawdown, VaR95, ES95,
}

// Label is the human-readable name used in tables and spreadsheets.
func (n MetricName) Label() string {
	switch n {
	case TotalReturn:
		return "Total Return"
	case AnnualizedReturn:
		return "Annualized Return"
	case AnnualizedVolatility:
		return "Annualized Volatility"
	case SharpeRatio:
		return "Sharpe Ratio"
	case MaxDrawdown:
		return "Max Drawdown"
	case VaR95:
		return "VaR 95%"
	case ES95:
		return "ES 95%"
	}
	return string(n)
}

// Metrics is the risk/return summary of one value series.
type Metrics struct {
	TotalReturn          Figure `json:"total_return"`
	AnnualizedReturn     Figure `json:"annualized_return"`
	AnnualizedVolatility Figure `json:"annualized_volatility"`
	SharpeRatio          Figure `json:"sharpe_ratio"`
	MaxDrawdown          Figure `json:"max_drawdown"`
	VaR95                Figure `json:"var_95"`
	ES95                 Figure `json:"es_95"`
}

func (m Metrics) Get(name MetricName) Figure {
	switch name {
	case TotalReturn:
		return m.TotalReturn
	case AnnualizedReturn:
		return m.AnnualizedReturn
	case AnnualizedVolatility:
		return m.AnnualizedVolatility
	case SharpeRatio:
		return m.SharpeRatio
	case MaxDrawdown:
		return m.MaxDrawdown
	case VaR95:
		return m.VaR95
	case ES95:
		return m.ES95
	}
	return NA
}

// annualizeAfterYears is the minimum segment length, in years of trading
// days, for mean/std to be scaled by the full trading-day count. Shorter
// segments are scaled by their own length instead.
const annualizeAfterYears = 0.5

// Calculate computes Metrics for series. rates, if non-empty, is the
// annualized reference rate used as the Sharpe hurdle; it is aligned to the
// series dates by exact match, then forward and backward filled.
//
// Non-finite values are dropped first. With fewer than two usable points
// every figure is NA.
func Calculate(series, rates []model.DatedValue, tradingDaysPerYear float64) Metrics {
	points := make([]model.DatedValue, 0, len(series))
	for _, p := range series {
		if model.Finite(p.Value) {
			points = append(points, p)
		}
	}
	if len(points) < 2 {
		return Metrics{}
	}

	returns := pctChange(points)
	if len(returns) == 0 {
		return Metrics{}
	}

	var m Metrics
	m.TotalReturn = Of(points[len(points)-1].Value/points[0].Value - 1)

	n := float64(len(returns))
	mean, err := stats.Mean(returns)
	if err != nil {
		mean = math.NaN()
	}
	std, err := stats.StandardDeviationSample(returns)
	if err != nil || len(returns) < 2 {
		std = math.NaN()
	}

	scale := n
	if tradingDaysPerYear > 0 && n/tradingDaysPerYear >= annualizeAfterYears {
		scale = tradingDaysPerYear
	}
	annRet := mean * scale
	annVol := std * math.Sqrt(scale)
	m.AnnualizedReturn = Of(annRet)
	m.AnnualizedVolatility = Of(annVol)

	if m.AnnualizedVolatility.Valid && annVol != 0 {
		m.SharpeRatio = Of((annRet - riskFreeRate(points, rates)) / annVol)
	}

	m.MaxDrawdown = Of(maxDrawdown(points))

	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	q := percentileSorted(sorted, 0.05)
	m.VaR95 = Of(-q)
	var tail []float64
	for _, r := range sorted {
		if r > q {
			break
		}
		tail = append(tail, r)
	}
	if es, err := stats.Mean(tail); err == nil {
		m.ES95 = Of(-es)
	}
	return m
}

// pctChange returns the finite period-over-period returns of points.
func pctChange(points []model.DatedValue) []float64 {
	out := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		r := points[i].Value/points[i-1].Value - 1
		if model.Finite(r) {
			out = append(out, r)
		}
	}
	return out
}

func maxDrawdown(points []model.DatedValue) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, p := range points {
		if p.Value > peak {
			peak = p.Value
		}
		if dd := p.Value/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// riskFreeRate averages rates aligned to the points' dates. Dates with no
// exact rate observation take the previous aligned rate, or the next one at
// the start of the series. Without any match the hurdle is zero.
func riskFreeRate(points, rates []model.DatedValue) float64 {
	if len(rates) == 0 {
		return 0
	}
	byDate := make(map[time.Time]float64, len(rates))
	for _, r := range rates {
		if model.Finite(r.Value) {
			byDate[dateKey(r.Date)] = r.Value
		}
	}

	aligned := make([]float64, len(points))
	have := make([]bool, len(points))
	matched := false
	for i, p := range points {
		if v, ok := byDate[dateKey(p.Date)]; ok {
			aligned[i], have[i], matched = v, true, true
		} else if i > 0 && have[i-1] {
			aligned[i], have[i] = aligned[i-1], true
		}
	}
	if !matched {
		return 0
	}
	for i := len(points) - 2; i >= 0; i-- {
		if !have[i] {
			aligned[i], have[i] = aligned[i+1], true
		}
	}
	mean, err := stats.Mean(aligned)
	if err != nil {
		return 0
	}
	return mean
}

func dateKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// percentileSorted expects a sorted slice and q in [0,1].
func percentileSorted(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	// Linear interpolation between order stats.
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
