package analysis

import (
	"fmt"
	"math"
)

const (
	Supported    = "Supported"
	NotSupported = "Not Supported"
)

// Op compares model B's figure against model A's.
type Op string

const (
	OpGreater      Op = "gt"
	OpGreaterEqual Op = "gte"
	OpLess         Op = "lt"
	OpAbsGreater   Op = "abs_gt"
)

type Comparison struct {
	Metric MetricName `json:"metric" yaml:"metric"`
	Op     Op         `json:"op" yaml:"op"`
}

// Holds reports whether B's figure beats A's under c.Op. An unavailable
// figure on either side never holds.
func (c Comparison) Holds(a, b Metrics) bool {
	fa, fb := a.Get(c.Metric), b.Get(c.Metric)
	if !fa.Valid || !fb.Valid {
		return false
	}
	switch c.Op {
	case OpGreater:
		return fb.Value > fa.Value
	case OpGreaterEqual:
		return fb.Value >= fa.Value
	case OpLess:
		return fb.Value < fa.Value
	case OpAbsGreater:
		return math.Abs(fb.Value) > math.Abs(fa.Value)
	}
	return false
}

// Hypothesis is supported when any of its comparisons holds on the named
// period. Details are reported alongside the verdict for both models.
type Hypothesis struct {
	Label   string       `json:"label" yaml:"label"`
	Period  string       `json:"period" yaml:"period"`
	Any     []Comparison `json:"any" yaml:"any"`
	Details []MetricName `json:"details,omitempty" yaml:"details"`
}

type Verdict struct {
	Label     string            `json:"label"`
	Period    string            `json:"period"`
	Supported bool              `json:"supported"`
	Result    string            `json:"verdict"`
	Details   map[string]Figure `json:"details,omitempty"`
}

// DefaultHypotheses returns the standard set: four full-period checks
// plus one crisis-reaction check per period.
func DefaultHypotheses(periods []Period) []Hypothesis {
	hs := []Hypothesis{
		{Label: "H1_Higher_Return_B", Period: FullPeriod, Any: []Comparison{{AnnualizedReturn, OpGreater}}},
		{Label: "H2_Higher_Vol_B", Period: FullPeriod, Any: []Comparison{{AnnualizedVolatility, OpGreater}}},
		{Label: "H3_Higher_Sharpe_B", Period: FullPeriod, Any: []Comparison{{SharpeRatio, OpGreaterEqual}}},
		{Label: "H4_Lower_Risk_B", Period: FullPeriod, Any: []Comparison{
			{MaxDrawdown, OpGreater},
			{AnnualizedVolatility, OpLess},
		}},
	}
	for _, p := range periods {
		hs = append(hs, Hypothesis{
			Label:   fmt.Sprintf("H5_Stronger_React_B_%s_Return", p.Name),
			Period:  p.Name,
			Any:     []Comparison{{TotalReturn, OpAbsGreater}},
			Details: []MetricName{MaxDrawdown},
		})
	}
	return hs
}

// Evaluate runs hs against the computed metrics. Hypotheses on a period
// that was not computed are left out.
func Evaluate(hs []Hypothesis, full PeriodMetrics, periods []PeriodMetrics) []Verdict {
	byName := map[string]PeriodMetrics{FullPeriod: full}
	for _, p := range periods {
		byName[p.Name] = p
	}

	out := make([]Verdict, 0, len(hs))
	for _, h := range hs {
		name := h.Period
		if name == "" {
			name = FullPeriod
		}
		pm, ok := byName[name]
		if !ok {
			continue
		}
		v := Verdict{Label: h.Label, Period: name}
		for _, c := range h.Any {
			if c.Holds(pm.A, pm.B) {
				v.Supported = true
				break
			}
		}
		v.Result = verdictText(v.Supported)
		if len(h.Details) > 0 {
			v.Details = make(map[string]Figure, 2*len(h.Details))
			for _, m := range h.Details {
				v.Details[string(m)+"_A"] = pm.A.Get(m)
				v.Details[string(m)+"_B"] = pm.B.Get(m)
			}
		}
		out = append(out, v)
	}
	return out
}

func verdictText(ok bool) string {
	if ok {
		return Supported
	}
	return NotSupported
}
