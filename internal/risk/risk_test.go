package risk

import (
	"testing"

	"github.com/iwvelando/cash-tuner/internal/params"
	"github.com/iwvelando/cash-tuner/internal/scenario"
	"github.com/iwvelando/cash-tuner/internal/simulation"
)

func series(balances ...float64) []simulation.DailyPoint {
	dates := []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}
	points := make([]simulation.DailyPoint, len(balances))
	for i, balance := range balances {
		points[i] = simulation.DailyPoint{Date: dates[i], EndingBalance: balance}
	}
	return points
}

func result(points []simulation.DailyPoint) scenario.Result {
	return scenario.Result{Result: simulation.Result{Points: points}}
}

func testParams(gapWarn, balanceWarn float64) params.Parameters {
	p := params.Defaults()
	p.Threshold.GapAmountWarn = gapWarn
	p.Threshold.MinBalanceWarn = balanceWarn
	return p
}

func TestGap(t *testing.T) {
	tests := []struct {
		name     string
		points   []simulation.DailyPoint
		expected GapMetrics
	}{
		{"Empty series", nil, GapMetrics{}},
		{"No gap", series(100, 50, 75), GapMetrics{MinBalance: 50}},
		{"Gap", series(100, -20, -300, 10), GapMetrics{MinBalance: -300, MaxGap: 300, GapDay: "2024-01-03"}},
		{"Earliest minimum wins", series(-5, -300, 0, -300), GapMetrics{MinBalance: -300, MaxGap: 300, GapDay: "2024-01-02"}},
		{"Zero balance is not a gap", series(10, 0, 5), GapMetrics{MinBalance: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Gap(tt.points); got != tt.expected {
				t.Errorf("Gap() = %+v, expected %+v", got, tt.expected)
			}
		})
	}
}

func TestScore(t *testing.T) {
	base := series(-100, -400)
	base[0].OutConfirmed = 200
	base[0].OutEstimated = 60
	base[1].OutConfirmed = 100
	base[1].OutEstimated = 40

	results := map[string]scenario.Result{
		"Base": result(base),
		"S1":   result(series(-600, -500)),
	}
	a := Score(results, testParams(1000, 1000))

	if a.Base.MaxGap != 400 || a.Base.GapDay != "2024-01-02" {
		t.Errorf("Base gap = %+v", a.Base)
	}
	if a.Gaps["S1"].MaxGap != 600 {
		t.Errorf("S1 gap = %+v", a.Gaps["S1"])
	}
	if !a.CoverageRisk.Known || a.CoverageRisk.Value != 25 {
		t.Errorf("CoverageRisk = %+v, expected 25", a.CoverageRisk)
	}
	if !a.SensitivityRisk.Known || a.SensitivityRisk.Value != 50 {
		t.Errorf("SensitivityRisk = %+v, expected 50", a.SensitivityRisk)
	}
	// gap score 40, balance score capped at 100: round(28 + 60) = 88.
	if a.LiquidityGapRisk != 88 {
		t.Errorf("LiquidityGapRisk = %v, expected 88", a.LiquidityGapRisk)
	}
	if a.Overall != 88 || a.Level != LevelCritical {
		t.Errorf("Overall = %v (%s), expected 88 (critical)", a.Overall, a.Level)
	}

	if len(a.Breakdown) != 6 {
		t.Fatalf("expected 6 breakdown rows, got %d", len(a.Breakdown))
	}
	for _, row := range a.Breakdown {
		if row.Metric == "" || row.Formula == "" || row.Threshold == "" || row.Current == "" {
			t.Errorf("incomplete breakdown row: %+v", row)
		}
	}
	if a.Breakdown[0].Penalty.Value != 40 || a.Breakdown[0].Current != "400.00" {
		t.Errorf("gap score row = %+v", a.Breakdown[0])
	}
}

func TestScoreWithoutOutflowOrGap(t *testing.T) {
	results := map[string]scenario.Result{
		"Base": result(series(5000, 5000)),
		"S1":   result(series(5000, 5000)),
	}
	a := Score(results, testParams(1000, 1000))

	if a.CoverageRisk.Known {
		t.Errorf("coverage with no outflow should be unknown, got %+v", a.CoverageRisk)
	}
	if a.Breakdown[3].Note == "" {
		t.Errorf("unknown coverage should carry a note")
	}
	if !a.SensitivityRisk.Known || a.SensitivityRisk.Value != 0 {
		t.Errorf("SensitivityRisk = %+v, expected 0", a.SensitivityRisk)
	}
	if a.LiquidityGapRisk != 0 || a.Level != LevelLow {
		t.Errorf("LiquidityGapRisk = %v (%s), expected 0 (low)", a.LiquidityGapRisk, a.Level)
	}
}

func TestScoreWithoutS1(t *testing.T) {
	a := Score(map[string]scenario.Result{"Base": result(series(-10))}, params.Defaults())
	if a.SensitivityRisk.Known {
		t.Errorf("missing S1 should leave sensitivity unknown")
	}
}

func TestSensitivityRisk(t *testing.T) {
	tests := []struct {
		name     string
		base, s1 float64
		expected float64
	}{
		{"No gap in either", 0, 0, 0},
		{"Gap only under stress", 0, 10, 100},
		{"Half again", 200, 300, 50},
		{"S1 better than Base", 200, 100, 0},
		{"Capped", 100, 1000, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SensitivityRisk(tt.base, tt.s1); !got.Known || got.Value != tt.expected {
				t.Errorf("SensitivityRisk(%v, %v) = %+v, expected %v", tt.base, tt.s1, got, tt.expected)
			}
		})
	}
}

func TestScoresWithZeroThresholds(t *testing.T) {
	if GapScore(1, 0) != 100 || GapScore(0, 0) != 0 {
		t.Errorf("GapScore with zero threshold")
	}
	if BalanceScore(-1, 0) != 100 || BalanceScore(0, 0) != 0 {
		t.Errorf("BalanceScore with zero threshold")
	}
	if BalanceScore(2000, 1000) != 0 || BalanceScore(500, 1000) != 50 {
		t.Errorf("BalanceScore scaling: %v %v", BalanceScore(2000, 1000), BalanceScore(500, 1000))
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		score    float64
		expected string
	}{
		{0, LevelLow},
		{29, LevelLow},
		{30, LevelMedium},
		{59, LevelMedium},
		{60, LevelHigh},
		{80, LevelCritical},
		{100, LevelCritical},
	}
	for _, tt := range tests {
		if got := Level(tt.score); got != tt.expected {
			t.Errorf("Level(%v) = %s, expected %s", tt.score, got, tt.expected)
		}
	}
}
