package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/coordinator"
)

var stopAt string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running record",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopAt, "at", "", "End time instead of now")
}

func runStop(cmd *cobra.Command, args []string) error {
	at, err := flagTime(stopAt)
	if err != nil {
		return err
	}
	co, err := openTimerView(cmd)
	if err != nil {
		return err
	}
	defer co.Close()

	rec, err := co.Stop(contextOf(cmd), at)
	if errors.Is(err, coordinator.ErrNoActiveRecord) {
		return userError(errors.New("no running record to stop"))
	}
	if err != nil {
		return mutationFailed(cmd, co, err)
	}

	elapsed := int64(at.Sub(rec.StartTime).Seconds())
	fmt.Fprintf(out(cmd), "Stopped record %s. Elapsed: %s\n", rec.ID, formatElapsed(elapsed))
	return nil
}

func formatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
