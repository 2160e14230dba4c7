// Package risk extracts funding gaps from simulated daily series and turns
// them into bounded 0-100 risk scores with an audit breakdown.
package risk

import (
	"fmt"
	"math"

	"github.com/iwvelando/cash-tuner/internal/params"
	"github.com/iwvelando/cash-tuner/internal/scenario"
	"github.com/iwvelando/cash-tuner/internal/simulation"
	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/iwvelando/cash-tuner/pkg/format"
	"github.com/iwvelando/cash-tuner/pkg/mathutil"
)

// Liquidity risk blend weights. The sum exceeds one; the blend is capped.
const (
	GapWeight     = 0.7
	BalanceWeight = 0.6
)

// Risk levels
const (
	LevelLow      = "low"
	LevelMedium   = "medium"
	LevelHigh     = "high"
	LevelCritical = "critical"
)

// Breakdown metric names
const (
	MetricGapScore     = "gap_score"
	MetricBalanceScore = "balance_score"
	MetricLiquidityGap = "liquidity_gap_risk"
	MetricCoverage     = "coverage_risk"
	MetricSensitivity  = "sensitivity_risk"
	MetricOverall      = "overall_risk"
)

// GapMetrics summarizes the low point of one daily series.
type GapMetrics struct {
	MinBalance float64 `json:"min_balance"`
	MaxGap     float64 `json:"max_gap"`
	// GapDay is the date of the minimum balance, empty when there is no gap.
	GapDay string `json:"gap_day,omitempty"`
}

// Gap finds the minimum ending balance. The earliest day wins ties.
func Gap(points []simulation.DailyPoint) GapMetrics {
	if len(points) == 0 {
		return GapMetrics{}
	}
	minIndex := 0
	for i, point := range points {
		if point.EndingBalance < points[minIndex].EndingBalance {
			minIndex = i
		}
	}
	metrics := GapMetrics{
		MinBalance: points[minIndex].EndingBalance,
		MaxGap:     math.Max(0, -points[minIndex].EndingBalance),
	}
	if metrics.MaxGap > 0 {
		metrics.GapDay = points[minIndex].Date
	}
	return metrics
}

// BreakdownRow is one auditable line of the risk computation.
type BreakdownRow struct {
	Metric    string          `json:"metric"`
	Formula   string          `json:"formula"`
	Threshold string          `json:"threshold"`
	Current   string          `json:"current"`
	Penalty   mathutil.Metric `json:"penalty"`
	Note      string          `json:"note,omitempty"`
}

// Assessment is the full risk output.
type Assessment struct {
	LiquidityGapRisk float64               `json:"liquidity_gap_risk"`
	CoverageRisk     mathutil.Metric       `json:"coverage_risk"`
	SensitivityRisk  mathutil.Metric       `json:"sensitivity_risk"`
	Overall          float64               `json:"overall"`
	Level            string                `json:"level"`
	Base             GapMetrics            `json:"base"`
	Gaps             map[string]GapMetrics `json:"gaps"`
	ConfirmedOutflow float64               `json:"confirmed_outflow"`
	EstimatedOutflow float64               `json:"estimated_outflow"`
	Breakdown        []BreakdownRow        `json:"breakdown"`
}

// Gaps computes GapMetrics for every scenario result.
func Gaps(results map[string]scenario.Result) map[string]GapMetrics {
	gaps := make(map[string]GapMetrics, len(results))
	for key, result := range results {
		gaps[key] = Gap(result.Points)
	}
	return gaps
}

// Score computes the liquidity, coverage and sensitivity risks from the
// Base and S1 scenarios.
func Score(results map[string]scenario.Result, p params.Parameters) Assessment {
	a := Assessment{Gaps: Gaps(results)}
	a.Base = a.Gaps[constants.ScenarioBase]

	for _, point := range results[constants.ScenarioBase].Points {
		a.ConfirmedOutflow += point.OutConfirmed
		a.EstimatedOutflow += point.OutEstimated
	}

	gapScore := GapScore(a.Base.MaxGap, p.Threshold.GapAmountWarn)
	balanceScore := BalanceScore(a.Base.MinBalance, p.Threshold.MinBalanceWarn)
	a.LiquidityGapRisk = math.Min(constants.MaxScore, math.Round(GapWeight*gapScore+BalanceWeight*balanceScore))
	a.CoverageRisk = CoverageRisk(a.ConfirmedOutflow, a.EstimatedOutflow)

	s1, hasS1 := a.Gaps[constants.ScenarioS1]
	if hasS1 {
		a.SensitivityRisk = SensitivityRisk(a.Base.MaxGap, s1.MaxGap)
	}

	a.Overall = a.LiquidityGapRisk
	for _, m := range []mathutil.Metric{a.CoverageRisk, a.SensitivityRisk} {
		if m.Known && m.Value > a.Overall {
			a.Overall = m.Value
		}
	}
	a.Level = Level(a.Overall)

	a.Breakdown = []BreakdownRow{
		{
			Metric:    MetricGapScore,
			Formula:   "min(100, max_gap / gap_amount_warn * 100)",
			Threshold: format.Amount(p.Threshold.GapAmountWarn),
			Current:   format.Amount(a.Base.MaxGap),
			Penalty:   mathutil.KnownMetric(mathutil.Round(gapScore)),
			Note:      gapNote(a.Base),
		},
		{
			Metric:    MetricBalanceScore,
			Formula:   "min(100, max(0, (min_balance_warn - min_balance) / min_balance_warn * 100))",
			Threshold: format.Amount(p.Threshold.MinBalanceWarn),
			Current:   format.Signed(a.Base.MinBalance),
			Penalty:   mathutil.KnownMetric(mathutil.Round(balanceScore)),
		},
		{
			Metric:    MetricLiquidityGap,
			Formula:   fmt.Sprintf("min(100, round(%.1f * gap_score + %.1f * balance_score))", GapWeight, BalanceWeight),
			Threshold: "100",
			Current:   fmt.Sprintf("gap_score %.2f, balance_score %.2f", gapScore, balanceScore),
			Penalty:   mathutil.KnownMetric(a.LiquidityGapRisk),
		},
		{
			Metric:    MetricCoverage,
			Formula:   "round((1 - confirmed / (confirmed + estimated)) * 100)",
			Threshold: "confirmed + estimated > 0",
			Current:   fmt.Sprintf("confirmed %s, estimated %s", format.Amount(a.ConfirmedOutflow), format.Amount(a.EstimatedOutflow)),
			Penalty:   a.CoverageRisk,
			Note:      unknownNote(a.CoverageRisk, "no outflow in the horizon"),
		},
		{
			Metric:    MetricSensitivity,
			Formula:   "clamp((S1 max_gap - Base max_gap) / Base max_gap * 100, 0, 100)",
			Threshold: "100",
			Current:   fmt.Sprintf("Base %s, S1 %s", format.Amount(a.Base.MaxGap), format.Amount(s1.MaxGap)),
			Penalty:   a.SensitivityRisk,
			Note:      unknownNote(a.SensitivityRisk, "S1 scenario missing"),
		},
		{
			Metric:    MetricOverall,
			Formula:   "max(known sub-scores)",
			Threshold: "low < 30, medium < 60, high < 80",
			Current:   a.Level,
			Penalty:   mathutil.KnownMetric(a.Overall),
		},
	}
	return a
}

// GapScore scales the gap against its warning threshold onto [0,100].
func GapScore(maxGap, warn float64) float64 {
	if warn <= 0 {
		if maxGap > 0 {
			return constants.MaxScore
		}
		return 0
	}
	return mathutil.Clamp(maxGap*constants.PercentageMultiplier/warn, 0, constants.MaxScore)
}

// BalanceScore scales how far the minimum balance sits below its warning
// threshold onto [0,100].
func BalanceScore(minBalance, warn float64) float64 {
	if warn <= 0 {
		if minBalance < 0 {
			return constants.MaxScore
		}
		return 0
	}
	return mathutil.Clamp((warn-minBalance)*constants.PercentageMultiplier/warn, 0, constants.MaxScore)
}

// CoverageRisk is the estimated share of total outflow as a rounded
// percentage. It is unknown when nothing flows out.
func CoverageRisk(confirmed, estimated float64) mathutil.Metric {
	share, ok := mathutil.Ratio(confirmed, confirmed+estimated)
	if !ok {
		return mathutil.Unknown()
	}
	return mathutil.KnownMetric(mathutil.Clamp(math.Round((1-share)*constants.PercentageMultiplier), 0, constants.MaxScore))
}

// SensitivityRisk is the percentage growth of the S1 gap over the Base gap.
func SensitivityRisk(baseGap, s1Gap float64) mathutil.Metric {
	if baseGap <= 0 {
		if s1Gap > 0 {
			return mathutil.KnownMetric(constants.MaxScore)
		}
		return mathutil.KnownMetric(0)
	}
	growth := (s1Gap - baseGap) * constants.PercentageMultiplier / baseGap
	return mathutil.KnownMetric(mathutil.Clamp(math.Round(growth), 0, constants.MaxScore))
}

// Level labels an overall score.
func Level(score float64) string {
	switch {
	case score < 30:
		return LevelLow
	case score < 60:
		return LevelMedium
	case score < 80:
		return LevelHigh
	default:
		return LevelCritical
	}
}

func gapNote(g GapMetrics) string {
	if g.GapDay == "" {
		return "no funding gap"
	}
	return "lowest balance on " + g.GapDay
}

func unknownNote(m mathutil.Metric, reason string) string {
	if m.Known {
		return ""
	}
	return reason
}
