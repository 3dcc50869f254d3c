package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/model"
	"github.com/Tiliavir/ttr/internal/timecalc"
)

var (
	reportFilter filterFlags
	reportFormat string
	reportWeekly bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show minutes and notes per day",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportFilter.register(reportCmd)
	reportCmd.Flags().StringVar(&reportFormat, "format", "md", "Output format: md, csv, json")
	reportCmd.Flags().BoolVar(&reportWeekly, "weekly", false, "Group by ISO week instead of day")
}

// reportRow is the total of one day or week.
type reportRow struct {
	Period  string   `json:"period"`
	Minutes int64    `json:"minutes"`
	Notes   []string `json:"notes"`
}

func runReport(cmd *cobra.Command, args []string) error {
	switch reportFormat {
	case "md", "csv", "json":
	default:
		return userError(fmt.Errorf("unknown format %q (want md, csv or json)", reportFormat))
	}
	filter, err := reportFilter.resolve(cmd)
	if err != nil {
		return err
	}
	co, err := openView(cmd, filter)
	if err != nil {
		return err
	}
	defer co.Close()

	period := timecalc.DayKey
	if reportWeekly {
		period = timecalc.ISOWeekLabel
	}
	rows := aggregate(co.Records(), period)
	return printReport(out(cmd), rows, reportFormat)
}

// aggregate sums finished records per period, oldest period first. Notes
// keep their first occurrence order and are not repeated.
func aggregate(records []model.TimeRecord, period func(time.Time) string) []reportRow {
	var order []string
	byPeriod := map[string]*reportRow{}
	seen := map[string]map[string]bool{}
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		key := period(local(r.StartTime))
		row, ok := byPeriod[key]
		if !ok {
			row = &reportRow{Period: key, Notes: []string{}}
			byPeriod[key] = row
			seen[key] = map[string]bool{}
			order = append(order, key)
		}
		if r.DurationMinutes != nil {
			row.Minutes += *r.DurationMinutes
		}
		if note := strings.TrimSpace(r.Note); note != "" && !seen[key][note] {
			seen[key][note] = true
			row.Notes = append(row.Notes, note)
		}
	}
	result := make([]reportRow, 0, len(order))
	for _, k := range order {
		result = append(result, *byPeriod[k])
	}
	return result
}

func printReport(w io.Writer, rows []reportRow, format string) error {
	var total int64
	for _, r := range rows {
		total += r.Minutes
	}

	switch format {
	case "csv":
		fmt.Fprintln(w, "period,minutes,hours,notes")
		for _, r := range rows {
			fmt.Fprintf(w, "%s,%d,%s,%s\n", r.Period, r.Minutes, timecalc.MinToHHMM(r.Minutes), csvEscape(strings.Join(r.Notes, " | ")))
		}
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Rows         []reportRow `json:"rows"`
			TotalMinutes int64       `json:"total_minutes"`
		}{rows, total}); err != nil {
			return backendError(fmt.Errorf("encoding JSON: %w", err))
		}
	default: // md
		if len(rows) == 0 {
			fmt.Fprintln(w, "No records found.")
			return nil
		}
		for _, r := range rows {
			fmt.Fprintf(w, "%s ; ; %s ; ; %s\n", r.Period, timecalc.MinToHHMM(r.Minutes), strings.Join(r.Notes, " | "))
		}
		fmt.Fprintln(w, "--------------------------------")
		fmt.Fprintf(w, "Total ; ; %s\n", timecalc.MinToHHMM(total))
	}
	return nil
}
