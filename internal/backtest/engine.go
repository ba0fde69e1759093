package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"cfd-hedge-backtest/internal/costs"
	"cfd-hedge-backtest/internal/model"
	"cfd-hedge-backtest/internal/strategy"
)

const (
	ModelClassic = "A"
	ModelHedged  = "B"
)

var ErrNilPolicy = errors.New("policy is nil")

type Options struct {
	Logger *zap.SugaredLogger
	// OnDay, if set, receives every hedged ledger row as soon as it is final.
	OnDay func(LedgerRow)
}

// Engine runs the two portfolio simulations. It holds no per-run state, so a
// single Engine may run many simulations concurrently provided OnDay is safe
// for concurrent use.
type Engine struct {
	log   *zap.SugaredLogger
	onDay func(LedgerRow)
}

func New(opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{log: log, onDay: opts.OnDay}
}

// classicState is the Model A fold accumulator.
type classicState struct {
	equity float64
	cash   float64
	value  float64
}

// RunClassic simulates a static buy-and-hold split that never rebalances.
func (e *Engine) RunClassic(tl *model.Timeline, p model.Params) (*Result, error) {
	if err := checkInputs(tl, p); err != nil {
		return nil, err
	}

	capital := p.Portfolio.InitialCapital
	s := classicState{
		equity: capital * p.Portfolio.EquityAllocation,
		cash:   capital * (1 - p.Portfolio.EquityAllocation),
		value:  capital,
	}

	series := make([]model.DatedValue, 0, tl.Len()+1)
	series = append(series, model.DatedValue{Date: seedDate(tl), Value: capital})
	var sum Summary

	for i := 0; i < tl.Len(); i++ {
		day := tl.Day(i)
		next := s
		next.equity = e.markEquity(ModelClassic, day, next.equity, &sum)
		next.value = next.equity + next.cash

		if !model.Finite(next.value) {
			e.log.Errorf("[Simulator] model A %s: non-finite value, carrying %.2f", day.Date.Format(model.DateLayout), s.value)
			sum.Recoveries++
			next = s
		}
		s = next
		series = append(series, model.DatedValue{Date: day.Date, Value: s.value})
	}

	sum.FinalValue = s.value
	return &Result{Model: ModelClassic, Series: series, Summary: sum}, nil
}

// hedgedState is the Model B fold accumulator.
type hedgedState struct {
	equity   float64
	cash     float64
	position float64
	margin   float64
	value    float64
}

// RunHedged simulates equity plus a short index CFD hedge sized by policy.
//
// Each day runs, in order: mark equity, settle yesterday's hedge, ask the
// policy for today's target, trade towards it, reconcile margin, then total
// the sub-accounts. Settlement must precede sizing and closings must be
// charged before margin is recomputed against the new position.
func (e *Engine) RunHedged(tl *model.Timeline, p model.Params, policy strategy.Policy) (*Result, error) {
	if err := checkInputs(tl, p); err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, ErrNilPolicy
	}

	capital := p.Portfolio.InitialCapital
	s := hedgedState{
		equity: capital * p.Portfolio.EquityAllocation,
		cash:   capital * (1 - p.Portfolio.EquityAllocation),
		value:  capital,
	}

	series := make([]model.DatedValue, 0, tl.Len()+1)
	series = append(series, model.DatedValue{Date: seedDate(tl), Value: capital})
	ledger := make([]LedgerRow, 0, tl.Len())
	var sum Summary

	for i := 0; i < tl.Len(); i++ {
		day := tl.Day(i)
		date := day.Date.Format(model.DateLayout)
		next := s
		row := LedgerRow{Index: i, Date: day.Date, Price: day.Price, Volatility: day.Volatility}

		// 1. mark
		next.equity = e.markEquity(ModelHedged, day, next.equity, &sum)

		// 2. settle yesterday's hedge at yesterday's price
		if next.position > 0 {
			if validPrice(day.PrevPrice) && validPrice(day.Price) && model.Finite(day.Rate) {
				row.HedgePNL = next.position * p.Costs.LotSize * (day.PrevPrice - day.Price)
				row.Financing = costs.FinancingCost(next.position, day.PrevPrice, day.Rate, p.Costs, true)
				row.Borrowing = costs.BorrowingCost(next.position, day.PrevPrice, p.Costs, true)
				next.cash += row.HedgePNL - row.Financing - row.Borrowing
			} else {
				e.log.Warnf("[Simulator] model B %s: cannot settle %.4f contracts (prev=%v price=%v rate=%v), skipping",
					date, next.position, day.PrevPrice, day.Price, day.Rate)
				sum.Anomalies++
			}
		}

		// 3. decide
		positionIn := next.position
		target := next.position
		if model.Finite(day.Volatility) && model.Finite(next.equity) && validPrice(day.Price) {
			t := policy.Target(strategy.Context{
				Index:    i,
				Day:      day,
				Equity:   next.equity,
				Price:    day.Price,
				Position: next.position,
				Hedged:   next.position > 0,
			})
			if model.Finite(t) && t >= 0 {
				target = t
			}
		} else {
			e.log.Warnf("[Simulator] model B %s: invalid policy inputs, holding %.4f contracts", date, next.position)
			sum.Anomalies++
		}
		row.TargetPosition = target

		// 4. trade; only closings pay the spread
		if math.Abs(target-next.position) > model.PositionTolerance {
			if target < next.position {
				sc := costs.SpreadCost(next.position-target, p.Costs)
				row.Spread += sc
				next.cash -= sc
			}
			next.position = target
		}

		// 5. margin
		required := 0.0
		if next.position > 0 && validPrice(day.Price) {
			required = costs.Margin(next.position, day.Price, p.Costs)
		} else {
			next.position = 0
		}
		if delta := required - next.margin; math.Abs(delta) > model.PositionTolerance {
			if delta > 0 && next.cash < delta {
				e.log.Warnf("[Simulator] model B %s: margin call %.2f exceeds cash %.2f, liquidating %.4f contracts",
					date, delta, next.cash, next.position)
				sc := costs.SpreadCost(next.position, p.Costs)
				row.Spread += sc
				next.cash -= sc
				next.cash += next.margin
				next.margin = 0
				next.position = 0
				row.Liquidated = true
			} else {
				next.cash -= delta
				next.margin = required
			}
		}

		// 6. total; a non-finite value restores the previous state
		next.value = next.equity + next.cash + next.margin
		if !model.Finite(next.value) {
			e.log.Errorf("[Simulator] model B %s: non-finite value, restoring previous state (%.2f)", date, s.value)
			next = s
			row.Recovered = true
			row.HedgePNL, row.Financing, row.Borrowing, row.Spread = 0, 0, 0, 0
			row.Liquidated = false
			sum.Recoveries++
		}
		s = next

		// 7. record
		row.Position = s.position
		row.Margin = s.margin
		row.TotalCost = row.Financing + row.Borrowing + row.Spread
		row.Equity = s.equity
		row.Cash = s.cash
		row.Value = s.value
		row.Action = model.ActionFromPositions(positionIn, s.position, row.Liquidated)
		ledger = append(ledger, row)
		if e.onDay != nil {
			e.onDay(row)
		}

		if row.Liquidated {
			sum.Liquidations++
		}
		if s.position > 0 {
			sum.DaysHedged++
		}
		sum.TotalFinancing += row.Financing
		sum.TotalBorrowing += row.Borrowing
		sum.TotalSpread += row.Spread
		sum.TotalHedgePNL += row.HedgePNL

		series = append(series, model.DatedValue{Date: day.Date, Value: s.value})
	}

	sum.TotalCosts = sum.TotalFinancing + sum.TotalBorrowing + sum.TotalSpread
	sum.FinalValue = s.value
	return &Result{Model: ModelHedged, Series: series, Ledger: ledger, Summary: sum}, nil
}

// markEquity applies the day's index return; a missing return holds equity.
func (e *Engine) markEquity(modelName string, day model.MarketDay, equity float64, sum *Summary) float64 {
	if !model.Finite(day.Return) {
		e.log.Warnf("[Simulator] model %s %s: missing return, equity held at %.2f",
			modelName, day.Date.Format(model.DateLayout), equity)
		sum.Anomalies++
		return equity
	}
	return equity * (1 + day.Return)
}

func checkInputs(tl *model.Timeline, p model.Params) error {
	if tl == nil || tl.Len() == 0 {
		return model.ErrEmptyTimeline
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func seedDate(tl *model.Timeline) time.Time {
	return tl.Start().AddDate(0, 0, -1)
}

func validPrice(x float64) bool {
	return x > 0 && model.Finite(x)
}
