// Package simulation walks a fixed 30-day date axis and computes the daily
// cash balance trajectory from the AR, AP and PO allocations.
package simulation

import (
	"fmt"
	"sort"
	"time"

	"github.com/iwvelando/cash-tuner/internal/allocation"
	"github.com/iwvelando/cash-tuner/internal/params"
	"github.com/iwvelando/cash-tuner/internal/planrow"
	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/iwvelando/cash-tuner/pkg/datetime"
	"go.uber.org/zap"
)

// Meta carries the optional forecast metadata.
type Meta struct {
	BaseDate       string   `json:"base_date,omitempty" yaml:"base_date,omitempty"`
	OpeningBalance *float64 `json:"opening_balance,omitempty" yaml:"opening_balance,omitempty"`
}

// DailyInput is a pre-existing daily series row. It is only used to resolve
// the base date and infer the opening balance.
type DailyInput struct {
	Date          string   `json:"date" yaml:"date"`
	In            *float64 `json:"in,omitempty" yaml:"in,omitempty"`
	Out           *float64 `json:"out,omitempty" yaml:"out,omitempty"`
	Net           *float64 `json:"net,omitempty" yaml:"net,omitempty"`
	EndingBalance *float64 `json:"ending_balance,omitempty" yaml:"ending_balance,omitempty"`
}

// Input is the normalized forecast input.
type Input struct {
	Meta  Meta
	AR    []planrow.ARRow
	AP    []planrow.APRow
	PO    []planrow.PORow
	Daily []DailyInput
}

// Options perturbs a single simulation run.
type Options struct {
	ScenarioKey    string
	ExtraDelayDays int
}

// DailyPoint is one day of the projected trajectory.
type DailyPoint struct {
	Date          string  `json:"date"`
	In            float64 `json:"in"`
	OutConfirmed  float64 `json:"out_confirmed"`
	OutEstimated  float64 `json:"out_estimated"`
	Out           float64 `json:"out"`
	Net           float64 `json:"net"`
	EndingBalance float64 `json:"ending_balance"`
}

// Result is the full output of one simulation run.
type Result struct {
	ScenarioKey     string                  `json:"scenario"`
	Points          []DailyPoint            `json:"daily_points"`
	BaseDate        string                  `json:"base_date"`
	HorizonEnd      string                  `json:"horizon_end"`
	OpeningBalance  float64                 `json:"opening_balance"`
	OpeningInferred bool                    `json:"opening_balance_inferred"`
	AR              allocation.Allocation   `json:"ar"`
	AP              allocation.APAllocation `json:"ap"`
	PO              allocation.POAllocation `json:"po"`
	OutsideHorizon  int                     `json:"outside_horizon"`
	Warnings        []string                `json:"warnings,omitempty"`
}

// Simulator runs daily cash simulations.
type Simulator struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewSimulator creates a simulator with the given logger.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewSimulator(logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{logger: logger, now: time.Now}
}

// WithFixedTime returns a copy of the simulator whose "today" is fixed,
// for reproducible runs when no base date can be resolved from the input.
func (s *Simulator) WithFixedTime(fixed time.Time) *Simulator {
	return &Simulator{logger: s.logger, now: func() time.Time { return fixed }}
}

// Simulate allocates the plan rows and walks the 30-day axis. Each day's
// ending balance is the previous day's ending balance plus the day's net.
func (s *Simulator) Simulate(in Input, p params.Parameters, opts Options) Result {
	result := Result{ScenarioKey: opts.ScenarioKey}

	base, warning := s.resolveBaseDate(in)
	if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}
	axis := datetime.Axis(base, constants.HorizonDays)
	result.BaseDate = axis[0]
	result.HorizonEnd = axis[len(axis)-1]
	result.OpeningBalance, result.OpeningInferred = resolveOpeningBalance(in)

	result.AR = allocation.CalcArInflow(in.AR, p, allocation.ArOptions{ExtraDelayDays: opts.ExtraDelayDays})
	result.AP = allocation.CalcApOutflow(in.AP, p, allocation.ApOptions{HorizonEnd: result.HorizonEnd})
	result.PO = allocation.CalcPoOutflow(in.PO, p, opts.ScenarioKey)

	inAxis := make(map[string]struct{}, len(axis))
	for _, date := range axis {
		inAxis[date] = struct{}{}
	}
	for _, m := range []map[string]float64{result.AR.DateMap, result.AP.DateMap, result.PO.DateMap} {
		for date := range m {
			if _, ok := inAxis[date]; !ok {
				result.OutsideHorizon++
			}
		}
	}

	result.Points = make([]DailyPoint, len(axis))
	balance := result.OpeningBalance
	for i, date := range axis {
		point := DailyPoint{
			Date:         date,
			In:           result.AR.DateMap[date],
			OutConfirmed: result.AP.DateMap[date],
			OutEstimated: result.PO.DateMap[date],
		}
		point.Out = point.OutConfirmed + point.OutEstimated
		point.Net = point.In - point.OutConfirmed - point.OutEstimated
		balance += point.Net
		point.EndingBalance = balance
		result.Points[i] = point
	}

	s.logger.Debug("simulation complete",
		zap.String("op", "simulation.Simulate"),
		zap.String("scenario", opts.ScenarioKey),
		zap.String("baseDate", result.BaseDate),
		zap.Float64("openingBalance", result.OpeningBalance),
		zap.Bool("openingInferred", result.OpeningInferred),
		zap.Int("skippedAR", result.AR.Skipped),
		zap.Int("skippedAP", result.AP.Skipped),
		zap.Int("skippedPO", result.PO.Skipped),
		zap.Int("outsideHorizon", result.OutsideHorizon),
	)

	return result
}

// resolveBaseDate picks the explicit base date, else the first date seen in
// the input, else today.
func (s *Simulator) resolveBaseDate(in Input) (time.Time, string) {
	var warning string
	if in.Meta.BaseDate != "" {
		t, err := datetime.ParseDate(in.Meta.BaseDate)
		if err == nil {
			return t, ""
		}
		warning = fmt.Sprintf("ignoring unparseable base_date %q", in.Meta.BaseDate)
		s.logger.Warn(warning, zap.String("op", "simulation.resolveBaseDate"))
	}
	if first, ok := firstDailyInput(in.Daily); ok {
		if t, err := datetime.ParseDate(first.Date); err == nil {
			return t, warning
		}
	}
	if date, ok := earliestRowDate(in); ok {
		return datetime.MustParseTime(datetime.DateLayout, date), warning
	}
	return datetime.Truncate(s.now()), warning
}

func earliestRowDate(in Input) (string, bool) {
	var dates []string
	for _, r := range in.AR {
		if r.HasDate() {
			dates = append(dates, r.Date)
		}
	}
	for _, r := range in.AP {
		if r.HasDate() {
			dates = append(dates, r.Date)
		}
	}
	for _, r := range in.PO {
		if r.HasDate() {
			dates = append(dates, r.Date)
		}
	}
	if len(dates) == 0 {
		return "", false
	}
	sort.Strings(dates)
	return dates[0], true
}

// firstDailyInput returns the earliest parseable daily row, or the first
// row when none parse.
func firstDailyInput(daily []DailyInput) (DailyInput, bool) {
	if len(daily) == 0 {
		return DailyInput{}, false
	}
	best := -1
	bestDate := ""
	for i, d := range daily {
		date, ok := datetime.NormalizeDate(d.Date)
		if !ok {
			continue
		}
		if best < 0 || date < bestDate {
			best, bestDate = i, date
		}
	}
	if best < 0 {
		return daily[0], true
	}
	return daily[best], true
}

// resolveOpeningBalance reads the explicit opening balance, else infers it
// from the first daily row as ending balance minus net, else uses zero.
// The second return value is true whenever the explicit field was absent.
func resolveOpeningBalance(in Input) (float64, bool) {
	if in.Meta.OpeningBalance != nil {
		return *in.Meta.OpeningBalance, false
	}
	first, ok := firstDailyInput(in.Daily)
	if !ok || first.EndingBalance == nil {
		return 0, true
	}
	net := 0.0
	switch {
	case first.Net != nil:
		net = *first.Net
	default:
		if first.In != nil {
			net += *first.In
		}
		if first.Out != nil {
			net -= *first.Out
		}
	}
	return *first.EndingBalance - net, true
}
