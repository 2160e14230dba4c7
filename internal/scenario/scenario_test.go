package scenario

import (
	"reflect"
	"testing"

	"github.com/iwvelando/cash-tuner/internal/params"
	"github.com/iwvelando/cash-tuner/internal/planrow"
	"github.com/iwvelando/cash-tuner/internal/simulation"
	"go.uber.org/zap"
)

func floatPtr(f float64) *float64 {
	return &f
}

func testInput() simulation.Input {
	return simulation.Input{
		Meta: simulation.Meta{BaseDate: "2024-01-01", OpeningBalance: floatPtr(10000)},
		AR: []planrow.ARRow{{
			Row:         planrow.Row{Counterparty: "A", Amount: 100000, Date: "2024-01-10"},
			AgingBucket: "31_60",
		}},
		AP: []planrow.APRow{{
			Row: planrow.Row{Counterparty: "V1", Amount: 50000, Date: "2024-01-05"},
		}},
		PO: []planrow.PORow{{
			Row: planrow.Row{Counterparty: "S1", Amount: 10000, Date: "2024-01-08"},
		}},
	}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		name     string
		meta     map[string]Meta
		expected []string
	}{
		{"No metadata", nil, []string{"Base", "S1"}},
		{"Duplicates of fixed keys", map[string]Meta{"Base": {}, "S1": {}}, []string{"Base", "S1"}},
		{"Extra keys sorted", map[string]Meta{"S3": {}, "S2": {}, "Custom": {}}, []string{"Base", "S1", "Custom", "S2", "S3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if keys := Keys(tt.meta); !reflect.DeepEqual(keys, tt.expected) {
				t.Errorf("Keys() = %v, expected %v", keys, tt.expected)
			}
		})
	}
}

func TestRunDefaultScenarios(t *testing.T) {
	runner := NewRunner(zap.NewNop(), nil, nil)
	results, order := runner.Run(testInput(), params.Defaults(), map[string]Meta{
		"S3": {GapAmount: floatPtr(42)},
	})

	if !reflect.DeepEqual(order, []string{"Base", "S1", "S3"}) {
		t.Fatalf("order = %v", order)
	}
	if _, ok := results["S2"]; ok {
		t.Errorf("S2 has no metadata and should be absent")
	}

	base := results["Base"]
	s1 := results["S1"]
	s3 := results["S3"]

	if base.Points[9].In != 24000 {
		t.Errorf("Base inflow on 2024-01-10 = %v, expected 24000", base.Points[9].In)
	}
	if s1.Points[9].In != 0 || s1.Points[16].In != 24000 {
		t.Errorf("S1 should shift collections by 7 days: %v / %v", s1.Points[9].In, s1.Points[16].In)
	}
	if s3.Points[7].OutEstimated != 7500 || base.Points[7].OutEstimated != 8500 {
		t.Errorf("S3 PO outflow = %v, Base = %v", s3.Points[7].OutEstimated, base.Points[7].OutEstimated)
	}
	if s3.ReportedGap == nil || *s3.ReportedGap != 42 {
		t.Errorf("ReportedGap not passed through: %v", s3.ReportedGap)
	}
	if base.ReportedGap != nil {
		t.Errorf("Base has no metadata, ReportedGap should be nil")
	}
}

func TestRunScenarioIndependence(t *testing.T) {
	input := testInput()
	p := params.Defaults()

	defaults, _ := NewRunner(nil, nil, nil).Run(input, p, nil)

	registry := DefaultRegistry()
	registry.Register(Definition{Key: "S1", Transform: func(v Variant) Variant {
		v.ExtraDelayDays = 21
		return v
	}})
	altered, _ := NewRunner(nil, nil, registry).Run(input, p, nil)

	if !reflect.DeepEqual(defaults["Base"].Points, altered["Base"].Points) {
		t.Errorf("changing S1's delay altered Base's daily points")
	}
	if reflect.DeepEqual(defaults["S1"].Points, altered["S1"].Points) {
		t.Errorf("expected S1's daily points to change")
	}
}

func TestRegistryCustomScenario(t *testing.T) {
	registry := DefaultRegistry()
	registry.Register(Definition{Key: "Tight", Transform: func(v Variant) Variant {
		v.Params.AR.Collect31To60 = 0
		return v
	}})
	registry.Register(Definition{Key: "NoTransform"})

	if keys := registry.Keys(); !reflect.DeepEqual(keys, []string{"Base", "S1", "S2", "S3", "Tight", "NoTransform"}) {
		t.Errorf("Keys() = %v", keys)
	}

	p := params.Defaults()
	results, _ := NewRunner(nil, nil, registry).Run(testInput(), p, map[string]Meta{"Tight": {}, "Unknown": {}})

	if results["Tight"].Points[9].In != 0 {
		t.Errorf("Tight scenario should collect nothing, got %v", results["Tight"].Points[9].In)
	}
	if p.AR.Collect31To60 != 0.3 {
		t.Errorf("transform mutated the caller's parameters")
	}
	if !reflect.DeepEqual(results["Unknown"].Points, results["Base"].Points) {
		t.Errorf("unregistered scenario should run unperturbed")
	}
}
