package data

import (
	"fmt"
	"math"
	"sort"
	"time"

	"cfd-hedge-backtest/internal/model"
)

// PrepareOptions controls how raw rows become a simulation timeline.
type PrepareOptions struct {
	DefaultRate float64
	// Start and End bound the timeline (inclusive); zero means unbounded.
	Start time.Time
	End   time.Time
}

// PrepareStats reports what Prepare discarded.
type PrepareStats struct {
	Rows        int
	Dropped     int
	RateFilled  int
	OutOfWindow int
}

// Prepare sorts rows by date, drops rows missing a usable price or
// volatility, fills missing rates and derives each day's return and prior
// close. The first usable row only seeds the prior close; it has no return
// and is not part of the timeline.
func Prepare(rows []Row, opts PrepareOptions) (*model.Timeline, PrepareStats, error) {
	stats := PrepareStats{Rows: len(rows)}

	type parsed struct {
		date time.Time
		row  Row
	}
	all := make([]parsed, 0, len(rows))
	seen := make(map[time.Time]bool, len(rows))
	for i, r := range rows {
		d, err := time.Parse(model.DateLayout, r.Date)
		if err != nil {
			return nil, stats, fmt.Errorf("row %d: bad date %q: %w", i+1, r.Date, err)
		}
		if seen[d] {
			return nil, stats, fmt.Errorf("row %d: duplicate date %s", i+1, r.Date)
		}
		seen[d] = true
		all = append(all, parsed{date: d, row: r})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].date.Before(all[j].date) })

	days := make([]model.MarketDay, 0, len(all))
	prev := math.NaN()
	for _, p := range all {
		if !opts.End.IsZero() && p.date.After(opts.End) {
			stats.OutOfWindow++
			continue
		}
		price, ok := value(p.row.Price)
		if !ok || price <= 0 {
			stats.Dropped++
			continue
		}
		vol, ok := value(p.row.Volatility)
		if !ok || vol < 0 {
			stats.Dropped++
			continue
		}
		rate, ok := value(p.row.Rate)
		if !ok {
			rate = opts.DefaultRate
			stats.RateFilled++
		}

		prior := prev
		prev = price
		if !opts.Start.IsZero() && p.date.Before(opts.Start) {
			stats.OutOfWindow++
			continue
		}
		if math.IsNaN(prior) {
			// seed row
			stats.Dropped++
			continue
		}
		days = append(days, model.MarketDay{
			Date:       p.date,
			Price:      price,
			Volatility: vol,
			Rate:       rate,
			Return:     price/prior - 1,
			PrevPrice:  prior,
		})
	}

	tl, err := model.NewTimeline(days)
	if err != nil {
		return nil, stats, err
	}
	return tl, stats, nil
}

func value(p *float64) (float64, bool) {
	if p == nil || !model.Finite(*p) {
		return 0, false
	}
	return *p, true
}
