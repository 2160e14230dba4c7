// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/shopspring/decimal"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Non-finite values are returned unchanged.
func Round(val float64) float64 {
	if !IsFinite(val) {
		return val
	}
	return decimal.NewFromFloat(val).Round(2).InexactFloat64()
}

// IsFinite reports whether val is neither NaN nor infinite.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// IsPositive reports whether val exceeds the one-cent currency tolerance.
func IsPositive(val float64) bool {
	return val > constants.CurrencyTolerance
}

// Clamp bounds val to [lo, hi]. NaN clamps to lo.
func Clamp(val, lo, hi float64) float64 {
	if math.IsNaN(val) || val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

// Ratio divides num by den and reports whether the result is defined.
func Ratio(num, den float64) (float64, bool) {
	if den == 0 {
		return 0, false
	}
	r := num / den
	if !IsFinite(r) {
		return 0, false
	}
	return r, true
}

// Metric is a numeric figure that may be unknown, e.g. a ratio with a zero
// denominator. Unknown metrics render as "unknown" rather than zero.
type Metric struct {
	Value float64
	Known bool
}

// KnownMetric wraps a defined value; non-finite input yields Unknown.
func KnownMetric(val float64) Metric {
	if !IsFinite(val) {
		return Unknown()
	}
	return Metric{Value: val, Known: true}
}

// Unknown returns the sentinel for an undefined figure.
func Unknown() Metric {
	return Metric{}
}

// String renders the metric with two decimals or the unknown sentinel.
func (m Metric) String() string {
	if !m.Known {
		return constants.UnknownValue
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64)
}

// MarshalJSON encodes known metrics as numbers and unknown ones as the
// string "unknown".
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Known {
		return json.Marshal(constants.UnknownValue)
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON accepts a number or the unknown sentinel.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*m = KnownMetric(v)
		return nil
	}
	*m = Unknown()
	return nil
}
