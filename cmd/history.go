package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the latest mutations from the local journal",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of entries")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if app.journal == nil {
		return backendError(errors.New("mutation journal is not available"))
	}
	entries, err := app.journal.Latest(contextOf(cmd), historyLimit)
	if err != nil {
		return backendError(err)
	}

	w := out(cmd)
	if len(entries) == 0 {
		fmt.Fprintln(w, "No mutations recorded.")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-11s %-8s %-11s", local(e.At).Format("2006-01-02 15:04:05"), e.Method, e.RecordID, e.Outcome)
		if e.Error != "" {
			line += "  " + e.Error
		}
		fmt.Fprintln(w, line)
	}
	return nil
}
