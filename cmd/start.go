package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/coordinator"
	"github.com/Tiliavir/ttr/internal/storage"
	"github.com/Tiliavir/ttr/internal/timecalc"
)

// activeLookback is how far back start, stop and status look for a
// running record, so timers left running over midnight are found.
const activeLookback = 7

var (
	startNote string
	startAt   string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a running record",
	Long:  "Start a running record. A record that is still running is stopped first.",
	Args:  cobra.NoArgs,
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&startNote, "note", "", "Note for the new record")
	startCmd.Flags().StringVar(&startAt, "at", "", "Start time instead of now")
}

func runStart(cmd *cobra.Command, args []string) error {
	at, err := flagTime(startAt)
	if err != nil {
		return err
	}
	co, err := openTimerView(cmd)
	if err != nil {
		return err
	}
	defer co.Close()

	w := out(cmd)
	if active := co.Active(); len(active) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: stopping running record %s\n", active[0].ID)
	}
	rec, err := co.Start(contextOf(cmd), startNote, at)
	if err != nil {
		return mutationFailed(cmd, co, err)
	}
	fmt.Fprintf(w, "Started record %s at %s\n", rec.ID, local(rec.StartTime).Format("15:04:05"))
	return nil
}

// openTimerView loads the last days up to the end of today.
func openTimerView(cmd *cobra.Command) (*coordinator.Coordinator, error) {
	t := now()
	return openView(cmd, storage.Filter{
		StartDate: timecalc.StartOfDay(t.AddDate(0, 0, -activeLookback+1)),
		EndDate:   timecalc.EndOfDay(t),
	})
}

// flagTime parses an optional --at flag; empty means now.
func flagTime(s string) (time.Time, error) {
	t := now()
	if s == "" {
		return t, nil
	}
	at, err := parseWhen(s, t)
	if err != nil {
		return time.Time{}, userError(err)
	}
	return at, nil
}
