package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/model"
)

var (
	exportFilter filterFlags
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export time records to stdout",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportFilter.register(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, md")
}

func runExport(cmd *cobra.Command, args []string) error {
	switch exportFormat {
	case "csv", "json", "md":
	default:
		return userError(fmt.Errorf("unknown format %q (want csv, json or md)", exportFormat))
	}
	filter, err := exportFilter.resolve(cmd)
	if err != nil {
		return err
	}
	co, err := openView(cmd, filter)
	if err != nil {
		return err
	}
	defer co.Close()

	records := co.Records()
	w := out(cmd)
	switch exportFormat {
	case "json":
		if records == nil {
			records = []model.TimeRecord{}
		}
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return backendError(fmt.Errorf("error encoding JSON: %w", err))
		}
		fmt.Fprintln(w, string(data))
	case "md":
		printList(w, records)
	default: // csv
		printCSV(w, records)
	}
	return nil
}

func printCSV(w io.Writer, records []model.TimeRecord) {
	fmt.Fprintln(w, "id,date,start,end,duration_minutes,note")
	for _, r := range records {
		start := local(r.StartTime)
		endStr := ""
		if r.EndTime != nil {
			endStr = local(*r.EndTime).Format(time.RFC3339)
		}
		durMin := ""
		if r.DurationMinutes != nil {
			durMin = fmt.Sprint(*r.DurationMinutes)
		}
		fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s\n",
			csvEscape(r.ID),
			start.Format("2006-01-02"),
			start.Format(time.RFC3339),
			endStr,
			durMin,
			csvEscape(r.Note),
		)
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
