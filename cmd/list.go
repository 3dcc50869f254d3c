package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/model"
	"github.com/Tiliavir/ttr/internal/timecalc"
)

var (
	listFilter filterFlags
	listPage   int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List time records",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listFilter.register(listCmd)
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page to show (30 records per page)")
}

func runList(cmd *cobra.Command, args []string) error {
	filter, err := listFilter.resolve(cmd)
	if err != nil {
		return err
	}
	co, err := openView(cmd, filter)
	if err != nil {
		return err
	}
	defer co.Close()

	w := out(cmd)
	fmt.Fprintf(w, "%s – %s", timecalc.DayKey(filter.StartDate), timecalc.DayKey(filter.EndDate))
	if filter.SearchText != "" {
		fmt.Fprintf(w, "  search: %q", filter.SearchText)
	}
	fmt.Fprintln(w)

	page, pages := co.Page(listPage)
	if active := co.Active(); len(active) > 1 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d records are running.\n", len(active))
	}
	printList(w, page)
	if pages > 1 {
		fmt.Fprintf(w, "Page %d of %d\n", listPage, pages)
	}
	return nil
}

// printList groups records by day and prints them.
func printList(w io.Writer, records []model.TimeRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}

	var currentDay string
	for _, r := range records {
		start := local(r.StartTime)
		day := timecalc.DayKey(start)
		if day != currentDay {
			fmt.Fprintln(w, day)
			currentDay = day
		}

		endStr := "running"
		durStr := ""
		if r.EndTime != nil {
			endStr = local(*r.EndTime).Format("15:04")
		}
		if r.DurationMinutes != nil {
			durStr = fmt.Sprintf(" (%s)", timecalc.FormatMinutes(*r.DurationMinutes))
		}
		note := ""
		if r.Note != "" {
			note = "  " + r.Note
		}

		fmt.Fprintf(w, "  %-8s %s–%s%s%s\n", r.ID, start.Format("15:04"), endStr, durStr, note)
	}
}
