// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/cash-tuner/internal/actions"
	"github.com/iwvelando/cash-tuner/internal/forecast"
	"github.com/iwvelando/cash-tuner/internal/simulation"
)

// FindPoint finds the daily point of a scenario on date.
// Returns a pointer to the point if found, nil otherwise.
func FindPoint(report forecast.Report, scenarioKey, date string) *simulation.DailyPoint {
	result, ok := report.Scenarios[scenarioKey]
	if !ok {
		return nil
	}
	for i := range result.Points {
		if result.Points[i].Date == date {
			return &result.Points[i]
		}
	}
	return nil
}

// FindActions returns the actions generated from a source domain, in plan
// order.
func FindActions(report forecast.Report, source string) []actions.Action {
	if report.Plan == nil {
		return nil
	}
	var found []actions.Action
	for _, action := range report.Plan.Actions {
		if action.Source == source {
			found = append(found, action)
		}
	}
	return found
}
