package forecast

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

const exampleInput = `{
  "meta": {"base_date": "2024-01-01", "opening_balance": 0},
  "components": {
    "ar_plan_rows": [{"customer": "A", "amount": 100000, "date": "2024-01-10", "aging_bucket": "31-60"}],
    "ap_plan_rows": [{"vendor": "V1", "amount": 50000, "date": "2024-01-05"}],
    "po_plan_rows": [{"supplier": "S1", "amount": 10000, "date": "2024-01-08"}, {"supplier": "S9", "amount": 5}]
  },
  "scenarios": {"S3": {"gap_amount": 40000}}
}`

func decodeInput(t *testing.T, raw string) Input {
	t.Helper()
	var input Input
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		t.Fatalf("failed to decode input: %v", err)
	}
	return input
}

func pointOn(t *testing.T, report Report, scenarioKey, date string) (in, outConfirmed, outEstimated float64) {
	t.Helper()
	for _, point := range report.Scenarios[scenarioKey].Points {
		if point.Date == date {
			return point.In, point.OutConfirmed, point.OutEstimated
		}
	}
	t.Fatalf("no %s point on %s", scenarioKey, date)
	return 0, 0, 0
}

func TestRunEndToEnd(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	report := NewEngine(logger, nil).Run(decodeInput(t, exampleInput), nil)

	if report.Status != StatusOK {
		t.Fatalf("Status = %s (%s)", report.Status, report.Reason)
	}
	if report.BaseDate != "2024-01-01" || report.HorizonEnd != "2024-01-30" || report.OpeningInferred {
		t.Errorf("axis %s..%s, inferred %v", report.BaseDate, report.HorizonEnd, report.OpeningInferred)
	}

	tests := []struct {
		date                 string
		in, confirmed, estim float64
	}{
		{"2024-01-05", 0, 35000, 0},
		{"2024-01-08", 0, 0, 8500},
		{"2024-01-10", 24000, 0, 0},
		{"2024-01-12", 0, 15000, 0},
		{"2024-01-17", 4500, 0, 0},
		{"2024-01-24", 1500, 0, 0},
	}
	for _, tt := range tests {
		in, confirmed, estimated := pointOn(t, report, "Base", tt.date)
		if in != tt.in || confirmed != tt.confirmed || estimated != tt.estim {
			t.Errorf("%s: in %v out_confirmed %v out_estimated %v, expected %v %v %v",
				tt.date, in, confirmed, estimated, tt.in, tt.confirmed, tt.estim)
		}
	}

	if _, _, estimated := pointOn(t, report, "S3", "2024-01-08"); estimated != 7500 {
		t.Errorf("S3 PO outflow = %v, expected 7500", estimated)
	}
	if got := report.Scenarios["S3"].ReportedGap; got == nil || *got != 40000 {
		t.Errorf("S3 reported gap = %v", got)
	}
	if len(report.Order) != 3 {
		t.Errorf("Order = %v", report.Order)
	}

	if report.Rows.PO != 2 || report.Rows.SkippedPO != 1 {
		t.Errorf("Rows = %+v", report.Rows)
	}
	found := false
	for _, warning := range report.Warnings {
		if strings.Contains(warning, "without a resolvable date") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a skipped-row warning, got %v", report.Warnings)
	}

	if report.Risk == nil || report.Plan == nil {
		t.Fatalf("risk and plan should be set")
	}
	if report.Plan.GapAmount != 43500 || report.Plan.GapDay != "2024-01-08" {
		t.Errorf("gap = %v on %s", report.Plan.GapAmount, report.Plan.GapDay)
	}
	if report.Risk.Base.MaxGap != report.Plan.GapAmount {
		t.Errorf("risk and plan disagree on the gap: %v vs %v", report.Risk.Base.MaxGap, report.Plan.GapAmount)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	raw := map[string]any{"po": map[string]any{"apply_scope": "top_suppliers"}}

	first, err := json.Marshal(NewEngine(nil, nil).Run(decodeInput(t, exampleInput), raw))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := json.Marshal(NewEngine(nil, nil).Run(decodeInput(t, exampleInput), raw))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("two runs produced different reports")
	}
}

func TestRunInsufficientData(t *testing.T) {
	report := NewEngine(nil, nil).Run(decodeInput(t, `{"meta": {"base_date": "2024-01-01"}}`), nil)

	if report.Status != StatusInsufficientData || report.Reason == "" {
		t.Errorf("Status = %s, Reason = %q", report.Status, report.Reason)
	}
	if report.Scenarios != nil || report.Risk != nil || report.Plan != nil {
		t.Errorf("insufficient data report should carry no results")
	}
	if report.Parameters.AR.Collect1To30 != 0.45 {
		t.Errorf("parameters should still be reported")
	}
}

func TestRunEmptyPlanRows(t *testing.T) {
	input := decodeInput(t, `{
	  "meta": {"base_date": "2024-01-01", "opening_balance": 1000},
	  "components": {"ar_plan_rows": [], "ap_plan_rows": [], "po_plan_rows": []}
	}`)
	report := NewEngine(nil, nil).Run(input, nil)

	for _, key := range report.Order {
		for _, point := range report.Scenarios[key].Points {
			if point.Net != 0 || point.EndingBalance != 1000 {
				t.Errorf("%s %s: net %v ending %v", key, point.Date, point.Net, point.EndingBalance)
			}
		}
	}
	if report.Plan.GapAmount != 0 || len(report.Plan.Actions) != 0 {
		t.Errorf("expected no gap and no actions, got %v and %d", report.Plan.GapAmount, len(report.Plan.Actions))
	}
	if report.Plan.CoverageRatio.Known || report.Risk.CoverageRisk.Known {
		t.Errorf("ratios with zero denominators should be unknown")
	}
}

func TestRunParameterNotesAndInference(t *testing.T) {
	input := decodeInput(t, `{
	  "components": {
	    "ar_plan_rows": [{"customer": "A", "amount": 1000, "date": "2024-03-02", "days_overdue": 10}],
	    "daily": [{"date": "2024-03-01", "in": 100, "out": 40, "ending_balance": 5060}]
	  }
	}`)
	raw := map[string]any{"ar": map[string]any{"collect_ratio_1_30": 5}}
	report := NewEngine(nil, nil).Run(input, raw)

	if report.Parameters.AR.Collect1To30 != 1 {
		t.Errorf("collect_ratio_1_30 = %v, expected clamp to 1", report.Parameters.AR.Collect1To30)
	}
	if report.BaseDate != "2024-03-01" {
		t.Errorf("BaseDate = %s, expected the first daily date", report.BaseDate)
	}
	if !report.OpeningInferred || report.OpeningBalance != 5000 {
		t.Errorf("opening = %v (inferred %v), expected 5000 inferred", report.OpeningBalance, report.OpeningInferred)
	}

	var clampNote, inferNote bool
	for _, warning := range report.Warnings {
		if strings.HasPrefix(warning, "parameter ar.collect_ratio_1_30") {
			clampNote = true
		}
		if strings.HasPrefix(warning, "opening balance not supplied") {
			inferNote = true
		}
	}
	if !clampNote || !inferNote {
		t.Errorf("Warnings = %v", report.Warnings)
	}
}

func TestWithFixedTime(t *testing.T) {
	fixed := time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)
	input := decodeInput(t, `{"components": {}}`)
	report := NewEngine(nil, nil).WithFixedTime(fixed).Run(input, nil)
	if report.BaseDate != "2025-02-03" {
		t.Errorf("BaseDate = %s, expected 2025-02-03", report.BaseDate)
	}
}
