// Package forecast defines the forecast input and report structures and
// composes the full pipeline: parameters, plan rows, scenarios, risk and
// actions.
package forecast

import (
	"fmt"
	"time"

	"github.com/iwvelando/cash-tuner/internal/actions"
	"github.com/iwvelando/cash-tuner/internal/params"
	"github.com/iwvelando/cash-tuner/internal/planrow"
	"github.com/iwvelando/cash-tuner/internal/risk"
	"github.com/iwvelando/cash-tuner/internal/scenario"
	"github.com/iwvelando/cash-tuner/internal/simulation"
	"github.com/iwvelando/cash-tuner/pkg/constants"
	"go.uber.org/zap"
)

// Report statuses
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
)

// Input is the forecast input as supplied by the caller.
type Input struct {
	Meta       simulation.Meta          `json:"meta" yaml:"meta"`
	Components *Components              `json:"components" yaml:"components"`
	Scenarios  map[string]scenario.Meta `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
}

// Components holds the raw plan rows and the optional daily series.
type Components struct {
	ARPlanRows []map[string]any        `json:"ar_plan_rows" yaml:"ar_plan_rows"`
	APPlanRows []map[string]any        `json:"ap_plan_rows" yaml:"ap_plan_rows"`
	POPlanRows []map[string]any        `json:"po_plan_rows" yaml:"po_plan_rows"`
	Daily      []simulation.DailyInput `json:"daily,omitempty" yaml:"daily,omitempty"`
}

// RowCounts reports how many rows were read and how many took no part.
type RowCounts struct {
	AR          int `json:"ar"`
	AP          int `json:"ap"`
	PO          int `json:"po"`
	SkippedAR   int `json:"skipped_ar"`
	SkippedAP   int `json:"skipped_ap"`
	SkippedPO   int `json:"skipped_po"`
	OutOfWindow int `json:"ap_out_of_window"`
}

// Report is the complete engine output.
type Report struct {
	Status          string                     `json:"status"`
	Reason          string                     `json:"reason,omitempty"`
	Parameters      params.Parameters          `json:"parameters"`
	BaseDate        string                     `json:"base_date,omitempty"`
	HorizonEnd      string                     `json:"horizon_end,omitempty"`
	OpeningBalance  float64                    `json:"opening_balance"`
	OpeningInferred bool                       `json:"opening_balance_inferred"`
	Order           []string                   `json:"scenario_order,omitempty"`
	Scenarios       map[string]scenario.Result `json:"scenarios,omitempty"`
	Risk            *risk.Assessment           `json:"risk,omitempty"`
	Plan            *actions.Plan              `json:"plan,omitempty"`
	Rows            RowCounts                  `json:"rows"`
	Warnings        []string                   `json:"warnings,omitempty"`
}

// Engine runs the forecast pipeline.
type Engine struct {
	logger    *zap.Logger
	simulator *simulation.Simulator
	runner    *scenario.Runner
	builder   *actions.Builder
}

// NewEngine creates an engine with the default scenario registry. A nil
// builder uses the default action settings.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewEngine(logger *zap.Logger, builder *actions.Builder) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = actions.NewBuilder(logger)
	}
	simulator := simulation.NewSimulator(logger)
	return &Engine{
		logger:    logger,
		simulator: simulator,
		runner:    scenario.NewRunner(logger, simulator, scenario.DefaultRegistry()),
		builder:   builder,
	}
}

// WithFixedTime returns a copy of the engine whose fallback "today" is
// fixed, for reproducible runs on inputs that carry no date at all.
func (e *Engine) WithFixedTime(fixed time.Time) *Engine {
	simulator := e.simulator.WithFixedTime(fixed)
	return &Engine{
		logger:    e.logger,
		simulator: simulator,
		runner:    scenario.NewRunner(e.logger, simulator, scenario.DefaultRegistry()),
		builder:   e.builder,
	}
}

// Run normalizes raw parameters and runs the pipeline.
func (e *Engine) Run(input Input, raw map[string]any) Report {
	p, notes := params.NormalizeWithNotes(raw)
	report := e.RunParams(input, p)
	for _, note := range notes {
		report.Warnings = append(report.Warnings, "parameter "+note)
	}
	return report
}

// RunParams runs the pipeline with an already normalized parameter set. A
// missing components block yields an insufficient-data report.
func (e *Engine) RunParams(input Input, p params.Parameters) Report {
	p = p.Normalized()
	if input.Components == nil {
		e.logger.Info("forecast input has no components",
			zap.String("op", "forecast.RunParams"),
		)
		return Report{
			Status:     StatusInsufficientData,
			Reason:     "forecast input is missing its components block",
			Parameters: p,
		}
	}

	simInput := simulation.Input{
		Meta:  input.Meta,
		AR:    planrow.NormalizeAR(input.Components.ARPlanRows),
		AP:    planrow.NormalizeAP(input.Components.APPlanRows),
		PO:    planrow.NormalizePO(input.Components.POPlanRows),
		Daily: input.Components.Daily,
	}

	results, order := e.runner.Run(simInput, p, input.Scenarios)
	base := results[constants.ScenarioBase]
	assessment := risk.Score(results, p)
	plan := e.builder.Build(results, order, p, base.BaseDate)

	report := Report{
		Status:          StatusOK,
		Parameters:      p,
		BaseDate:        base.BaseDate,
		HorizonEnd:      base.HorizonEnd,
		OpeningBalance:  base.OpeningBalance,
		OpeningInferred: base.OpeningInferred,
		Order:           order,
		Scenarios:       results,
		Risk:            &assessment,
		Plan:            &plan,
		Rows: RowCounts{
			AR:          len(simInput.AR),
			AP:          len(simInput.AP),
			PO:          len(simInput.PO),
			SkippedAR:   base.AR.Skipped,
			SkippedAP:   base.AP.Skipped,
			SkippedPO:   base.PO.Skipped,
			OutOfWindow: base.AP.OutOfWindow,
		},
	}
	report.Warnings = append(report.Warnings, base.Warnings...)
	report.Warnings = append(report.Warnings, rowWarnings(report)...)

	e.logger.Info("forecast complete",
		zap.String("op", "forecast.RunParams"),
		zap.String("baseDate", report.BaseDate),
		zap.Strings("scenarios", order),
		zap.Float64("gapAmount", plan.GapAmount),
		zap.String("riskLevel", assessment.Level),
		zap.Int("actions", len(plan.Actions)),
	)
	return report
}

func rowWarnings(r Report) []string {
	var warnings []string
	if r.OpeningInferred {
		warnings = append(warnings, fmt.Sprintf("opening balance not supplied; inferred as %.2f", r.OpeningBalance))
	}
	skipped := r.Rows.SkippedAR + r.Rows.SkippedAP + r.Rows.SkippedPO
	if skipped > 0 {
		warnings = append(warnings, fmt.Sprintf("%d plan rows without a resolvable date were excluded (AR %d, AP %d, PO %d)",
			skipped, r.Rows.SkippedAR, r.Rows.SkippedAP, r.Rows.SkippedPO))
	}
	if r.Rows.OutOfWindow > 0 {
		warnings = append(warnings, fmt.Sprintf("%d AP rows due after %s were excluded", r.Rows.OutOfWindow, r.HorizonEnd))
	}
	if base, ok := r.Scenarios[constants.ScenarioBase]; ok && base.OutsideHorizon > 0 {
		warnings = append(warnings, fmt.Sprintf("%d allocated dates fall outside the %d-day horizon", base.OutsideHorizon, constants.HorizonDays))
	}
	return warnings
}
