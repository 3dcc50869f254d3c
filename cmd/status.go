package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running record and today's total",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	t := now()
	co, err := openTimerView(cmd)
	if err != nil {
		return err
	}
	defer co.Close()

	w := out(cmd)
	active := co.Active()
	if len(active) > 1 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d records are running.\n", len(active))
	}
	for _, r := range active {
		elapsed := int64(t.Sub(r.StartTime).Seconds())
		fmt.Fprintln(w, "Running:")
		fmt.Fprintf(w, "  Record: %s\n", r.ID)
		if r.Note != "" {
			fmt.Fprintf(w, "  Note: %s\n", r.Note)
		}
		fmt.Fprintf(w, "  Since: %s\n", local(r.StartTime).Format("2006-01-02 15:04"))
		fmt.Fprintf(w, "  Elapsed: %s\n", timecalc.FormatDurationHHMMSS(elapsed))
	}
	if len(active) == 0 {
		fmt.Fprintln(w, "No running record.")
	}

	var minutes int64
	for _, r := range co.Records() {
		if r.DurationMinutes != nil && timecalc.SameDay(local(r.StartTime), t) {
			minutes += *r.DurationMinutes
		}
	}
	fmt.Fprintf(w, "Today: %s logged.\n", timecalc.FormatMinutes(minutes))
	return nil
}
