package analysis

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"cfd-hedge-backtest/internal/model"
)

var (
	ErrNoOverlap   = errors.New("no common dates between the two value series")
	ErrEmptyPeriod = errors.New("period has no data")
)

// FullPeriod names the metrics computed over the whole joined range.
const FullPeriod = "full"

// JoinedPoint is one date present in both value series.
type JoinedPoint struct {
	Date time.Time
	A    float64
	B    float64
}

type Period struct {
	Name  string
	Start time.Time
	End   time.Time
}

func (p Period) contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

type PeriodMetrics struct {
	Name   string
	Start  time.Time
	End    time.Time
	Points int
	A      Metrics
	B      Metrics
}

type Options struct {
	TradingDaysPerYear float64
	Rates              []model.DatedValue
	Periods            []Period
	// Hypotheses defaults to DefaultHypotheses(Periods) when nil.
	Hypotheses []Hypothesis
	Recovery   *RecoveryWindow
	Logger     *zap.SugaredLogger
}

type Report struct {
	Joined   []JoinedPoint
	Full     PeriodMetrics
	Periods  []PeriodMetrics
	Skipped  []string
	Verdicts []Verdict
	Recovery *RecoveryResult
}

// Join inner-joins a and b on calendar date. Dates missing from either
// series, or carrying a non-finite value, are dropped.
func Join(a, b []model.DatedValue) []JoinedPoint {
	bByDate := make(map[time.Time]float64, len(b))
	for _, p := range b {
		if model.Finite(p.Value) {
			bByDate[dateKey(p.Date)] = p.Value
		}
	}
	out := make([]JoinedPoint, 0, len(a))
	for _, p := range a {
		if !model.Finite(p.Value) {
			continue
		}
		if bv, ok := bByDate[dateKey(p.Date)]; ok {
			out = append(out, JoinedPoint{Date: p.Date, A: p.Value, B: bv})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// MetricsForPeriod computes both models' metrics over the joined points
// within period, inclusive of both ends.
func MetricsForPeriod(joined []JoinedPoint, period Period, rates []model.DatedValue, tradingDaysPerYear float64) (PeriodMetrics, error) {
	var a, b []model.DatedValue
	for _, p := range joined {
		if period.contains(p.Date) {
			a = append(a, model.DatedValue{Date: p.Date, Value: p.A})
			b = append(b, model.DatedValue{Date: p.Date, Value: p.B})
		}
	}
	if len(a) == 0 {
		return PeriodMetrics{}, fmt.Errorf("%w: %s (%s to %s)", ErrEmptyPeriod, period.Name,
			period.Start.Format(model.DateLayout), period.End.Format(model.DateLayout))
	}
	return PeriodMetrics{
		Name:   period.Name,
		Start:  period.Start,
		End:    period.End,
		Points: len(a),
		A:      Calculate(a, rates, tradingDaysPerYear),
		B:      Calculate(b, rates, tradingDaysPerYear),
	}, nil
}

// Compare joins the two series and evaluates metrics and hypotheses over the
// full range and every configured period. Periods without data are skipped
// and listed in Report.Skipped.
func Compare(a, b []model.DatedValue, opts Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	joined := Join(a, b)
	if len(joined) == 0 {
		return nil, ErrNoOverlap
	}

	full, err := MetricsForPeriod(joined, Period{
		Name:  FullPeriod,
		Start: joined[0].Date,
		End:   joined[len(joined)-1].Date,
	}, opts.Rates, opts.TradingDaysPerYear)
	if err != nil {
		return nil, err
	}

	rep := &Report{Joined: joined, Full: full}
	for _, period := range opts.Periods {
		pm, err := MetricsForPeriod(joined, period, opts.Rates, opts.TradingDaysPerYear)
		if errors.Is(err, ErrEmptyPeriod) {
			log.Warnf("[Analysis] %v, skipping", err)
			rep.Skipped = append(rep.Skipped, period.Name)
			continue
		}
		if err != nil {
			return nil, err
		}
		rep.Periods = append(rep.Periods, pm)
	}

	hyps := opts.Hypotheses
	if hyps == nil {
		hyps = DefaultHypotheses(opts.Periods)
	}
	rep.Verdicts = Evaluate(hyps, rep.Full, rep.Periods)

	if opts.Recovery != nil {
		rec, err := Recovery(joined, *opts.Recovery)
		if err != nil {
			log.Warnf("[Analysis] recovery check: %v", err)
		} else {
			rep.Recovery = rec
			rep.Verdicts = append(rep.Verdicts, rec.Verdict)
		}
	}
	return rep, nil
}
