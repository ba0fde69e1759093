package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmptyTimeline = errors.New("timeline has no trading days")
	ErrUnordered     = errors.New("timeline dates must be strictly increasing")
)

// MarketDay is one trading day of the shared market timeline.
//
// Return is the index return relative to the prior trading day and PrevPrice
// is that prior day's close. Either may be NaN when the data source could not
// provide it; the simulators treat that as a recoverable anomaly.
type MarketDay struct {
	Date       time.Time
	Price      float64 // index close
	Volatility float64 // volatility index level
	Rate       float64 // annualized reference rate, e.g. 0.045
	Return     float64
	PrevPrice  float64
}

// Timeline is an ordered, immutable sequence of trading days.
type Timeline struct {
	days []MarketDay
}

// NewTimeline validates ordering and takes a private copy of days.
func NewTimeline(days []MarketDay) (*Timeline, error) {
	if len(days) == 0 {
		return nil, ErrEmptyTimeline
	}
	cp := make([]MarketDay, len(days))
	copy(cp, days)
	for i := 1; i < len(cp); i++ {
		if !cp[i].Date.After(cp[i-1].Date) {
			return nil, fmt.Errorf("%w: %s follows %s", ErrUnordered,
				cp[i].Date.Format(DateLayout), cp[i-1].Date.Format(DateLayout))
		}
	}
	return &Timeline{days: cp}, nil
}

func (t *Timeline) Len() int { return len(t.days) }

func (t *Timeline) Day(i int) MarketDay { return t.days[i] }

// Days returns a copy of the underlying days.
func (t *Timeline) Days() []MarketDay {
	out := make([]MarketDay, len(t.days))
	copy(out, t.days)
	return out
}

func (t *Timeline) Start() time.Time { return t.days[0].Date }

func (t *Timeline) End() time.Time { return t.days[len(t.days)-1].Date }

// Rates returns the reference rate series keyed by the timeline's dates.
func (t *Timeline) Rates() []DatedValue {
	out := make([]DatedValue, len(t.days))
	for i, d := range t.days {
		out[i] = DatedValue{Date: d.Date, Value: d.Rate}
	}
	return out
}

// Between returns the days with start <= date <= end. A zero end is open-ended.
func (t *Timeline) Between(start, end time.Time) (*Timeline, error) {
	var out []MarketDay
	for _, d := range t.days {
		if d.Date.Before(start) {
			continue
		}
		if !end.IsZero() && d.Date.After(end) {
			continue
		}
		out = append(out, d)
	}
	return NewTimeline(out)
}

// Fingerprint is a stable digest of the timeline contents, used to key
// memoized simulation results.
func (t *Timeline) Fingerprint() string {
	h := sha256.New()
	buf := make([]byte, 8)
	put := func(x float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(x))
		h.Write(buf)
	}
	for _, d := range t.days {
		binary.LittleEndian.PutUint64(buf, uint64(d.Date.Unix()))
		h.Write(buf)
		put(d.Price)
		put(d.Volatility)
		put(d.Rate)
		put(d.Return)
		put(d.PrevPrice)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DatedValue is one point of a dated numeric series.
type DatedValue struct {
	Date  time.Time
	Value float64
}

// DateLayout is the calendar date format used across inputs and outputs.
const DateLayout = "2006-01-02"

// Finite reports whether x is neither NaN nor infinite.
func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
