// Package format renders monetary figures for reports.
package format

import (
	"math"
	"strings"

	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/iwvelando/cash-tuner/pkg/mathutil"
	"github.com/shopspring/decimal"
)

// Amount returns a currency string with thousands separators and no symbol
// (e.g., "-1,234.56").
func Amount(amount float64) string {
	if !mathutil.IsFinite(amount) {
		return constants.UnknownValue
	}
	sign := ""
	if mathutil.Round(amount) < 0 {
		sign = "-"
	}
	return sign + formatPositiveCurrency(math.Abs(amount))
}

// Signed is like Amount but always carries a sign (e.g., "+1,234.56").
func Signed(amount float64) string {
	formatted := Amount(amount)
	if formatted == constants.UnknownValue || strings.HasPrefix(formatted, "-") {
		return formatted
	}
	return "+" + formatted
}

// Metric renders a possibly unknown figure.
func Metric(m mathutil.Metric) string {
	if !m.Known {
		return constants.UnknownValue
	}
	return Amount(m.Value)
}

// Percent renders a ratio (0.25) as a percentage string ("25.0%").
func Percent(m mathutil.Metric) string {
	if !m.Known {
		return constants.UnknownValue
	}
	return decimal.NewFromFloat(m.Value*constants.PercentageMultiplier).StringFixed(1) + "%"
}

func formatPositiveCurrency(value float64) string {
	formatted := decimal.NewFromFloat(value).StringFixed(2)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "." + decPart
}
