package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfd-hedge-backtest/internal/model"
)

func TestJoin_InnerJoinDropsMissingDates(t *testing.T) {
	a := series(100, 101, 102, 103)
	b := series(200, 201, 202, 203)[1:]
	b[1].Value = math.NaN()
	joined := Join(a, b)

	require.Len(t, joined, 2)
	assert.Equal(t, day0.AddDate(0, 0, 1), joined[0].Date)
	assert.Equal(t, JoinedPoint{Date: day0.AddDate(0, 0, 3), A: 103, B: 203}, joined[1])
}

func TestCompare_NoOverlap(t *testing.T) {
	a := series(100, 101)
	b := []model.DatedValue{{Date: day0.AddDate(1, 0, 0), Value: 1}}
	_, err := Compare(a, b, Options{TradingDaysPerYear: 252})
	require.ErrorIs(t, err, ErrNoOverlap)
}

func TestCompare_PeriodsAndDefaultHypotheses(t *testing.T) {
	a := series(100, 95, 90, 92, 97, 99)
	b := series(100, 98, 97, 97, 99, 102)
	crisis := Period{Name: "covid", Start: day0.AddDate(0, 0, 1), End: day0.AddDate(0, 0, 3)}
	missing := Period{Name: "later", Start: day0.AddDate(1, 0, 0), End: day0.AddDate(1, 1, 0)}

	rep, err := Compare(a, b, Options{
		TradingDaysPerYear: 252,
		Periods:            []Period{crisis, missing},
	})
	require.NoError(t, err)

	assert.Equal(t, FullPeriod, rep.Full.Name)
	assert.Equal(t, 6, rep.Full.Points)
	require.Len(t, rep.Periods, 1)
	assert.Equal(t, 3, rep.Periods[0].Points)
	assert.Equal(t, []string{"later"}, rep.Skipped)

	labels := make([]string, 0, len(rep.Verdicts))
	for _, v := range rep.Verdicts {
		labels = append(labels, v.Label)
	}
	assert.Equal(t, []string{
		"H1_Higher_Return_B",
		"H2_Higher_Vol_B",
		"H3_Higher_Sharpe_B",
		"H4_Lower_Risk_B",
		"H5_Stronger_React_B_covid_Return",
	}, labels)

	// B drew down less over the crisis window, so its reaction is weaker.
	h5 := rep.Verdicts[4]
	assert.Equal(t, NotSupported, h5.Result)
	assert.Equal(t, rep.Periods[0].B.MaxDrawdown, h5.Details["max_drawdown_B"])
	assert.Equal(t, rep.Periods[0].A.MaxDrawdown, h5.Details["max_drawdown_A"])

	h4 := rep.Verdicts[3]
	assert.Equal(t, Supported, h4.Result)
}

func TestMetricsForPeriod_Empty(t *testing.T) {
	joined := Join(series(1, 2), series(1, 2))
	_, err := MetricsForPeriod(joined, Period{Name: "x", Start: day0.AddDate(0, 1, 0), End: day0.AddDate(0, 2, 0)}, nil, 252)
	require.ErrorIs(t, err, ErrEmptyPeriod)
}

func TestEvaluate(t *testing.T) {
	a := Metrics{
		AnnualizedReturn:     Of(0.05),
		AnnualizedVolatility: Of(0.2),
		SharpeRatio:          Of(0.25),
		MaxDrawdown:          Of(-0.3),
	}
	b := Metrics{
		AnnualizedReturn:     Of(0.04),
		AnnualizedVolatility: Of(0.1),
		SharpeRatio:          Of(0.25),
		MaxDrawdown:          Of(-0.1),
	}
	full := PeriodMetrics{Name: FullPeriod, A: a, B: b}

	got := map[string]string{}
	for _, v := range Evaluate(DefaultHypotheses(nil), full, nil) {
		got[v.Label] = v.Result
	}
	assert.Equal(t, map[string]string{
		"H1_Higher_Return_B": NotSupported,
		"H2_Higher_Vol_B":    NotSupported,
		"H3_Higher_Sharpe_B": Supported, // ties count
		"H4_Lower_Risk_B":    Supported,
	}, got)

	// An unavailable figure never supports a hypothesis.
	full.B.SharpeRatio = NA
	vs := Evaluate([]Hypothesis{{Label: "h", Any: []Comparison{{SharpeRatio, OpGreaterEqual}}}}, full, nil)
	require.Len(t, vs, 1)
	assert.False(t, vs[0].Supported)
	assert.Equal(t, FullPeriod, vs[0].Period)
}

func TestComparison_AbsGreater(t *testing.T) {
	c := Comparison{Metric: TotalReturn, Op: OpAbsGreater}
	assert.True(t, c.Holds(Metrics{TotalReturn: Of(0.1)}, Metrics{TotalReturn: Of(-0.2)}))
	assert.False(t, c.Holds(Metrics{TotalReturn: Of(-0.3)}, Metrics{TotalReturn: Of(0.2)}))
	assert.False(t, Comparison{Metric: TotalReturn, Op: "bogus"}.Holds(Metrics{TotalReturn: Of(0)}, Metrics{TotalReturn: Of(1)}))
}

func TestRecovery(t *testing.T) {
	joined := Join(series(100, 90, 80, 85, 95, 96), series(100, 95, 92, 94, 99, 100))
	w := RecoveryWindow{
		TroughStart: day0.AddDate(0, 0, 1),
		TroughEnd:   day0.AddDate(0, 0, 3),
		AssessEnd:   day0.AddDate(0, 0, 10),
	}
	rec, err := Recovery(joined, w)
	require.NoError(t, err)

	assert.Equal(t, 80.0, rec.TroughA)
	assert.Equal(t, day0.AddDate(0, 0, 2), rec.TroughDateA)
	assert.Equal(t, 92.0, rec.TroughB)
	assert.Equal(t, day0.AddDate(0, 0, 5), rec.EndDate)
	assert.InDelta(t, 0.2, rec.ReturnA.Value, 1e-12)
	assert.InDelta(t, 100.0/92-1, rec.ReturnB.Value, 1e-12)
	assert.Equal(t, NotSupported, rec.Verdict.Result)
	assert.Equal(t, RecoveryLabel, rec.Verdict.Label)
}

func TestRecovery_NoTroughData(t *testing.T) {
	joined := Join(series(1, 2), series(1, 2))
	_, err := Recovery(joined, RecoveryWindow{
		TroughStart: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		TroughEnd:   time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC),
		AssessEnd:   time.Date(2030, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.ErrorIs(t, err, ErrEmptyPeriod)
}
