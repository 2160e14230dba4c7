// Package datetime provides date and time utility functions.
package datetime

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/cash-tuner/pkg/constants"
)

const (
	// DateLayout is the canonical calendar date format.
	DateLayout = constants.DateLayout
)

// acceptedLayouts are tried in order by ParseDate.
var acceptedLayouts = []string{
	DateLayout,
	"2006/01/02",
	"2006.01.02",
	"20060102",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// excelEpoch is day zero of the 1900 spreadsheet date system.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// MustParseTime parses a date string using the given layout and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParseTime(layout, dateStr string) time.Time {
	t, err := time.Parse(layout, dateStr)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseDate parses a calendar date in any of the accepted layouts, or a
// spreadsheet serial day number. The result is truncated to midnight UTC.
func ParseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range acceptedLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return Truncate(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(trimmed, 64); err == nil && serial > 0 && serial < 200000 {
		return excelEpoch.AddDate(0, 0, int(serial)), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// NormalizeDate returns the canonical form of a date string, or false when
// the value cannot be resolved.
func NormalizeDate(value string) (string, bool) {
	t, err := ParseDate(value)
	if err != nil {
		return "", false
	}
	return t.Format(DateLayout), true
}

// Truncate drops the clock portion of t and converts it to UTC.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// OffsetDays returns the canonical date offset by the given number of days.
func OffsetDays(date string, days int) (string, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return date, err
	}
	return t.AddDate(0, 0, days).Format(DateLayout), nil
}

// Axis returns n consecutive canonical dates starting at start.
func Axis(start time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	start = Truncate(start)
	dates := make([]string, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i).Format(DateLayout)
	}
	return dates
}

// OnOrBefore compares two canonical dates lexically, which is valid for the
// zero-padded DateLayout.
func OnOrBefore(date, limit string) bool {
	return date <= limit
}
