package datetime

import (
	"testing"
	"time"
)

func TestMustParseTimePanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected MustParseTime to panic with invalid date")
		}
	}()

	MustParseTime(DateLayout, "invalid-date")
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"Canonical", "2024-01-10", "2024-01-10", false},
		{"Slashes", "2024/01/10", "2024-01-10", false},
		{"Compact", "20240110", "2024-01-10", false},
		{"RFC3339 drops clock", "2024-01-10T23:59:00Z", "2024-01-10", false},
		{"Surrounding whitespace", "  2024-01-10 ", "2024-01-10", false},
		{"Spreadsheet serial", "45301", "2024-01-10", false},
		{"Empty", "", "", true},
		{"Garbage", "next tuesday", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseDate(%q) expected error, got %v", tt.input, result)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.input, err)
			}
			if got := result.Format(DateLayout); got != tt.expected {
				t.Errorf("ParseDate(%q) = %s, expected %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestOffsetDays(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		days     int
		expected string
		wantErr  bool
	}{
		{"Forward one week", "2024-01-10", 7, "2024-01-17", false},
		{"Across month end", "2024-01-28", 7, "2024-02-04", false},
		{"Leap day", "2024-02-28", 1, "2024-02-29", false},
		{"Backwards", "2024-01-01", -1, "2023-12-31", false},
		{"Invalid", "2024-13-01", 1, "2024-13-01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := OffsetDays(tt.date, tt.days)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OffsetDays() error = %v, wantErr %v", err, tt.wantErr)
			}
			if result != tt.expected {
				t.Errorf("OffsetDays() = %s, expected %s", result, tt.expected)
			}
		})
	}
}

func TestAxis(t *testing.T) {
	start := time.Date(2024, time.January, 20, 15, 30, 0, 0, time.UTC)
	axis := Axis(start, 30)
	if len(axis) != 30 {
		t.Fatalf("Axis() length = %d, expected 30", len(axis))
	}
	if axis[0] != "2024-01-20" {
		t.Errorf("Axis()[0] = %s, expected 2024-01-20", axis[0])
	}
	if axis[29] != "2024-02-18" {
		t.Errorf("Axis()[29] = %s, expected 2024-02-18", axis[29])
	}
	if Axis(start, 0) != nil {
		t.Errorf("Axis() with zero length should be nil")
	}
}

func TestOnOrBefore(t *testing.T) {
	tests := []struct {
		date     string
		limit    string
		expected bool
	}{
		{"2024-01-01", "2024-01-02", true},
		{"2024-01-02", "2024-01-02", true},
		{"2024-01-03", "2024-01-02", false},
		{"2023-12-31", "2024-01-01", true},
	}

	for _, tt := range tests {
		if result := OnOrBefore(tt.date, tt.limit); result != tt.expected {
			t.Errorf("OnOrBefore(%s, %s) = %v, expected %v", tt.date, tt.limit, result, tt.expected)
		}
	}
}
