// Package output provides utilities for formatting and displaying forecast reports.
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/cash-tuner/internal/forecast"
	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/iwvelando/cash-tuner/pkg/format"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Write renders report to w in the named format.
func Write(w io.Writer, outputFormat string, report forecast.Report) error {
	switch outputFormat {
	case constants.OutputFormatPretty:
		return PrettyFormat(w, report)
	case constants.OutputFormatCSV:
		return CsvFormat(w, report)
	case constants.OutputFormatJSON:
		return JSONFormat(w, report)
	}
	return fmt.Errorf("unsupported output format %q", outputFormat)
}

// PrettyFormat outputs a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, report forecast.Report) error {
	p := message.NewPrinter(language.English)
	var buf bytes.Buffer

	if report.Status != forecast.StatusOK {
		fmt.Fprintf(&buf, "--- Forecast %s ---\n%s\n", report.Status, report.Reason)
		writeWarnings(&buf, report.Warnings)
		_, err := w.Write(buf.Bytes())
		return err
	}

	fmt.Fprintf(&buf, "--- Forecast %s to %s ---\n", report.BaseDate, report.HorizonEnd)
	opening := format.Amount(report.OpeningBalance)
	if report.OpeningInferred {
		opening += " (inferred)"
	}
	fmt.Fprintf(&buf, "Opening balance: %s\n", opening)
	if r := report.Risk; r != nil {
		fmt.Fprintf(&buf, "Risk: %.0f (%s) | liquidity gap %.0f | coverage %s | sensitivity %s\n",
			r.Overall, r.Level, r.LiquidityGapRisk, format.Metric(r.CoverageRisk), format.Metric(r.SensitivityRisk))
		fmt.Fprintf(&buf, "Base minimum balance: %s", format.Amount(r.Base.MinBalance))
		if r.Base.GapDay != "" {
			fmt.Fprintf(&buf, " | gap %s on %s", format.Amount(r.Base.MaxGap), r.Base.GapDay)
		}
		buf.WriteString("\n")
	}

	for _, key := range report.Order {
		result, ok := report.Scenarios[key]
		if !ok {
			continue
		}
		fmt.Fprintf(&buf, "\n--- Results for scenario %s ---\n", key)
		fmt.Fprintf(&buf, "Date       | In | Out | Ending balance\n")
		fmt.Fprintf(&buf, "____       | __ | ___ | ______________\n")
		for _, point := range result.Points {
			_, _ = p.Fprintf(&buf, "%s | %.2f | %.2f | %.2f\n", point.Date, point.In, point.Out, point.EndingBalance)
		}
	}

	if plan := report.Plan; plan != nil {
		fmt.Fprintf(&buf, "\n--- Actions (coverage %s, total impact %s, gap %s) ---\n",
			format.Percent(plan.CoverageRatio), format.Amount(plan.TotalImpact), format.Amount(plan.GapAmount))
		if len(plan.Actions) == 0 {
			buf.WriteString("No actions\n")
		}
		for i, action := range plan.Actions {
			fmt.Fprintf(&buf, "%d. [%s] %s by %s | base impact %s | priority %.0f\n",
				i+1, action.Source, action.Task, action.DDL,
				format.Amount(action.ExpectedCashImpact[constants.ScenarioBase]), action.PriorityScore)
		}
	}

	writeWarnings(&buf, report.Warnings)
	_, err := w.Write(buf.Bytes())
	return err
}

func writeWarnings(buf *bytes.Buffer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	buf.WriteString("\nWarnings:\n")
	for _, warning := range warnings {
		fmt.Fprintf(buf, "- %s\n", warning)
	}
}

// CsvFormat outputs the daily ending balances of every scenario in
// comma-separated value format, one row per date.
func CsvFormat(w io.Writer, report forecast.Report) error {
	writer := csv.NewWriter(w)

	header := []string{"date"}
	for _, key := range report.Order {
		header = append(header,
			fmt.Sprintf("in (%s)", key),
			fmt.Sprintf("out (%s)", key),
			fmt.Sprintf("ending_balance (%s)", key),
		)
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	// Every scenario shares the same date axis.
	var dates []string
	if len(report.Order) > 0 {
		for _, point := range report.Scenarios[report.Order[0]].Points {
			dates = append(dates, point.Date)
		}
	}
	for i, date := range dates {
		record := []string{date}
		for _, key := range report.Order {
			points := report.Scenarios[key].Points
			if i >= len(points) {
				record = append(record, "", "", "")
				continue
			}
			record = append(record,
				fmt.Sprintf("%.2f", points[i].In),
				fmt.Sprintf("%.2f", points[i].Out),
				fmt.Sprintf("%.2f", points[i].EndingBalance),
			)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", date, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// CsvString renders CsvFormat into a string.
func CsvString(report forecast.Report) string {
	var sb strings.Builder
	if err := CsvFormat(&sb, report); err != nil {
		return ""
	}
	return sb.String()
}

// JSONFormat outputs the complete report as indented JSON.
func JSONFormat(w io.Writer, report forecast.Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
