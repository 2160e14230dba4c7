package planrow

import (
	"testing"
	"time"
)

func floatPtr(f float64) *float64 {
	return &f
}

func TestClassifyAR(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		age      *float64
		expected string
	}{
		{"Canonical label", "31_60", nil, "31_60"},
		{"Hyphenated label", "31-60", nil, "31_60"},
		{"Label with days suffix", "61-90 days", nil, "61_90"},
		{"Plus label", "90+", nil, "90_plus"},
		{"Not due label", "Not Due", nil, "not_due"},
		{"Current label", "current", nil, "not_due"},
		{"Label wins over age", "1-30", floatPtr(120), "1_30"},
		{"Age zero", "", floatPtr(0), "not_due"},
		{"Negative age", "", floatPtr(-5), "not_due"},
		{"Age 30", "", floatPtr(30), "1_30"},
		{"Age 31", "", floatPtr(31), "31_60"},
		{"Age 60", "", floatPtr(60), "31_60"},
		{"Age 90", "", floatPtr(90), "61_90"},
		{"Age 91", "", floatPtr(91), "90_plus"},
		{"Unknown label falls to age", "weird", floatPtr(45), "31_60"},
		{"Nothing resolves", "weird", nil, "1_30"},
		{"Empty", "", nil, "1_30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := ClassifyAR(tt.label, tt.age); result != tt.expected {
				t.Errorf("ClassifyAR(%q) = %s, expected %s", tt.label, result, tt.expected)
			}
		})
	}
}

func TestNormalizeAR(t *testing.T) {
	rows := NormalizeAR([]map[string]any{
		{"customer": "A", "amount": 100000, "date": "2024-01-10", "aging_bucket": "31-60"},
		{"customer_name": "B", "open_amount": "1,250.50", "expected_date": "2024/01/12", "days_overdue": 95},
		{"counterparty": "C", "amount": -300, "date": "not a date"},
		{"amount": 10, "due_date": 45301.0},
	})

	if len(rows) != 4 {
		t.Fatalf("NormalizeAR() returned %d rows, expected 4", len(rows))
	}
	if rows[0].Counterparty != "A" || rows[0].Amount != 100000 || rows[0].Date != "2024-01-10" || rows[0].AgingBucket != "31_60" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Counterparty != "B" || rows[1].Amount != 1250.5 || rows[1].Date != "2024-01-12" || rows[1].AgingBucket != "90_plus" {
		t.Errorf("row 1 = %+v", rows[1])
	}
	if rows[2].Amount != 300 || rows[2].HasDate() || rows[2].AgingBucket != "1_30" {
		t.Errorf("row 2 = %+v", rows[2])
	}
	if rows[3].Counterparty != UnnamedCounterparty || rows[3].Date != "2024-01-10" || rows[3].Index != 3 {
		t.Errorf("row 3 = %+v", rows[3])
	}
}

func TestNormalizeAPAndPO(t *testing.T) {
	ap := NormalizeAP([]map[string]any{
		{"vendor": "V1", "amount": 50000, "date": "2024-01-05", "due_date": "2024-01-20"},
		{"supplier": "V2", "amount": 100, "due_date": time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC)},
	})
	if ap[0].Counterparty != "V1" || ap[0].Date != "2024-01-05" || ap[0].DueDate != "2024-01-20" {
		t.Errorf("ap[0] = %+v", ap[0])
	}
	if ap[1].Date != "2024-01-09" || ap[1].DueDate != "2024-01-09" {
		t.Errorf("ap[1] should fall back to the due date: %+v", ap[1])
	}

	po := NormalizePO([]map[string]any{
		{"supplier": "S1", "amount": 1000, "eta": "2024-01-07", "turnover_days": "150"},
		{"vendor": "S2", "amount": 500, "date": "2024-01-08", "turnover_class": "Slow Moving"},
		{"supplier": "S3", "amount": 500, "date": "2024-01-08", "low_turnover": "true"},
		{"supplier": "S4", "amount": 500, "date": "2024-01-08", "turnover_days": 30},
	})
	if po[0].Date != "2024-01-07" || po[0].TurnoverDays == nil || *po[0].TurnoverDays != 150 {
		t.Errorf("po[0] = %+v", po[0])
	}
	expectedLow := []bool{true, true, true, false}
	for i, row := range po {
		if IsLowTurnover(row) != expectedLow[i] {
			t.Errorf("IsLowTurnover(po[%d]) = %v, expected %v", i, !expectedLow[i], expectedLow[i])
		}
	}
}

func TestClassifyTopCounterparties(t *testing.T) {
	rows := []Row{
		{Counterparty: "V1", Amount: 600},
		{Counterparty: "V2", Amount: 250},
		{Counterparty: "V2", Amount: 0},
		{Counterparty: "V3", Amount: 150},
	}
	top := ClassifyTopCounterparties(rows, 0.25)
	if !top["V1"] || !top["V2"] || top["V3"] {
		t.Errorf("ClassifyTopCounterparties() = %v, expected V1 and V2", top)
	}

	single := ClassifyTopCounterparties([]Row{{Counterparty: "V1", Amount: 50000}}, 1)
	if !single["V1"] {
		t.Errorf("a sole counterparty holds 100%% share and must be top")
	}

	if len(ClassifyTopCounterparties([]Row{{Counterparty: "V1"}}, 0.1)) != 0 {
		t.Errorf("zero total should yield no top counterparties")
	}
}

func TestRankTopCounterparties(t *testing.T) {
	rows := []Row{
		{Counterparty: "S1", Amount: 100},
		{Counterparty: "S2", Amount: 500},
		{Counterparty: "S3", Amount: 300},
		{Counterparty: "S4", Amount: 50},
		{Counterparty: "S5", Amount: 10},
		{Counterparty: "S6", Amount: 5},
	}
	top := RankTopCounterparties(rows, 0.2)
	if len(top) != 2 || !top["S2"] || !top["S3"] {
		t.Errorf("RankTopCounterparties() = %v, expected S2 and S3", top)
	}

	one := RankTopCounterparties(rows[:1], 0.2)
	if len(one) != 1 || !one["S1"] {
		t.Errorf("minimum of one top supplier expected, got %v", one)
	}

	tied := RankTopCounterparties([]Row{{Counterparty: "B", Amount: 1}, {Counterparty: "A", Amount: 1}}, 0.2)
	if !tied["A"] || tied["B"] {
		t.Errorf("ties should break by name, got %v", tied)
	}
}

func TestBucketRank(t *testing.T) {
	order := []string{"not_due", "1_30", "31_60", "61_90", "90_plus"}
	for i, bucket := range order {
		if BucketRank(bucket) != i {
			t.Errorf("BucketRank(%s) = %d, expected %d", bucket, BucketRank(bucket), i)
		}
	}
}
