package analysis

import (
	"encoding/json"
	"math"
	"strconv"
)

// Figure is a metric value that may be unavailable. Unavailable figures
// marshal to JSON null and render as "N/A"; they never carry a NaN.
type Figure struct {
	Value float64
	Valid bool
}

// NA is the unavailable figure.
var NA = Figure{}

// Of wraps x, mapping NaN and infinities to NA.
func Of(x float64) Figure {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return NA
	}
	return Figure{Value: x, Valid: true}
}

func (f Figure) String() string {
	if !f.Valid {
		return "N/A"
	}
	return strconv.FormatFloat(f.Value, 'f', 4, 64)
}

// Percent renders the figure as a percentage with two decimals.
func (f Figure) Percent() string {
	if !f.Valid {
		return "N/A"
	}
	return strconv.FormatFloat(f.Value*100, 'f', 2, 64) + "%"
}

func (f Figure) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

func (f *Figure) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = NA
		return nil
	}
	var x float64
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	*f = Of(x)
	return nil
}
