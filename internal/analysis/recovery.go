package analysis

import (
	"fmt"
	"time"

	"cfd-hedge-backtest/internal/model"
)

// RecoveryWindow locates each model's trough within [TroughStart, TroughEnd]
// and measures the return from it to the last point on or before AssessEnd.
type RecoveryWindow struct {
	TroughStart time.Time
	TroughEnd   time.Time
	AssessEnd   time.Time
}

type RecoveryResult struct {
	TroughDateA time.Time
	TroughA     float64
	TroughDateB time.Time
	TroughB     float64
	EndDate     time.Time
	EndA        float64
	EndB        float64
	ReturnA     Figure
	ReturnB     Figure
	Verdict     Verdict
}

const RecoveryLabel = "H6_Stronger_Recovery_B"

func Recovery(joined []JoinedPoint, w RecoveryWindow) (*RecoveryResult, error) {
	var res RecoveryResult
	found := false
	for _, p := range joined {
		if p.Date.Before(w.TroughStart) || p.Date.After(w.TroughEnd) {
			continue
		}
		if !found || p.A < res.TroughA {
			res.TroughA, res.TroughDateA = p.A, p.Date
		}
		if !found || p.B < res.TroughB {
			res.TroughB, res.TroughDateB = p.B, p.Date
		}
		found = true
	}
	if !found {
		return nil, fmt.Errorf("%w: trough window %s to %s", ErrEmptyPeriod,
			w.TroughStart.Format(model.DateLayout), w.TroughEnd.Format(model.DateLayout))
	}

	ended := false
	for _, p := range joined {
		if p.Date.Before(w.TroughStart) || p.Date.After(w.AssessEnd) {
			continue
		}
		res.EndDate, res.EndA, res.EndB = p.Date, p.A, p.B
		ended = true
	}
	if !ended || res.EndDate.Before(w.TroughEnd) {
		return nil, fmt.Errorf("%w: no data at recovery end %s", ErrEmptyPeriod, w.AssessEnd.Format(model.DateLayout))
	}

	if res.TroughA > 0 {
		res.ReturnA = Of(res.EndA/res.TroughA - 1)
	}
	if res.TroughB > 0 {
		res.ReturnB = Of(res.EndB/res.TroughB - 1)
	}

	supported := res.ReturnA.Valid && res.ReturnB.Valid && res.ReturnB.Value > res.ReturnA.Value
	res.Verdict = Verdict{
		Label:     RecoveryLabel,
		Period:    "recovery",
		Supported: supported,
		Result:    verdictText(supported),
		Details: map[string]Figure{
			"recovery_return_A": res.ReturnA,
			"recovery_return_B": res.ReturnB,
		},
	}
	return &res, nil
}
