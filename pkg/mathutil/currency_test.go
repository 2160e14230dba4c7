package mathutil

import (
	"encoding/json"
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"Round up at midpoint", 1.235, 1.24},
		{"Round down below midpoint", 1.234, 1.23},
		{"No rounding needed", 1.23, 1.23},
		{"Large number", 12345.678, 12345.68},
		{"Negative number round down", -1.234, -1.23},
		{"Zero", 0.0, 0.0},
		{"Very small positive", 0.001, 0.00},
		{"Nearly two cents", 0.019, 0.02},
		{"Large negative", -12345.678, -12345.68},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Round(tt.input)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("Round(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}

	if !math.IsInf(Round(math.Inf(1)), 1) {
		t.Errorf("Round(+Inf) should be returned unchanged")
	}
}

func TestIsPositive(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected bool
	}{
		{"Zero", 0.0, false},
		{"Below a cent", 0.004, false},
		{"One cent", 0.01, false},
		{"Two cents", 0.02, true},
		{"Negative", -100.0, false},
		{"Large", 25000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := IsPositive(tt.input); result != tt.expected {
				t.Errorf("IsPositive(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		lo, hi   float64
		expected float64
	}{
		{"Inside", 0.5, 0, 1, 0.5},
		{"Above", 5, 0, 1, 1},
		{"Below", -2, 0, 1, 0},
		{"NaN", math.NaN(), 0, 1, 0},
		{"Positive infinity", math.Inf(1), 0, 21, 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Clamp(tt.input, tt.lo, tt.hi); result != tt.expected {
				t.Errorf("Clamp(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRatio(t *testing.T) {
	if _, ok := Ratio(1, 0); ok {
		t.Errorf("Ratio with zero denominator should be undefined")
	}
	r, ok := Ratio(3, 4)
	if !ok || r != 0.75 {
		t.Errorf("Ratio(3, 4) = %v, %v; expected 0.75, true", r, ok)
	}
}

func TestMetricJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Metric{
		"known":   KnownMetric(12.5),
		"unknown": Unknown(),
		"inf":     KnownMetric(math.Inf(1)),
	})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	expected := `{"inf":"unknown","known":12.5,"unknown":"unknown"}`
	if string(data) != expected {
		t.Errorf("json.Marshal() = %s, expected %s", data, expected)
	}

	var decoded map[string]Metric
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if !decoded["known"].Known || decoded["known"].Value != 12.5 {
		t.Errorf("decoded known metric = %+v", decoded["known"])
	}
	if decoded["unknown"].Known {
		t.Errorf("decoded unknown metric should not be known")
	}
	if Unknown().String() != "unknown" || KnownMetric(1).String() != "1.00" {
		t.Errorf("Metric.String() rendered unexpected values")
	}
}
