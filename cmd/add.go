package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/model"
	"github.com/Tiliavir/ttr/internal/storage"
	"github.com/Tiliavir/ttr/internal/timecalc"
)

var (
	addStart string
	addEnd   string
	addNote  string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a time record",
	Long: `Add a time record. Times are HH:MM (today), "YYYY-MM-DD HH:MM" or
RFC 3339. Without --end the record is running.`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addStart, "start", "", "Start time (required)")
	addCmd.Flags().StringVar(&addEnd, "end", "", "End time")
	addCmd.Flags().StringVar(&addNote, "note", "", "Note")
}

func runAdd(cmd *cobra.Command, args []string) error {
	t := now()
	if addStart == "" {
		return userError(errors.New("--start is required"))
	}
	start, err := parseWhen(addStart, t)
	if err != nil {
		return userError(err)
	}
	row := model.TimeRecord{StartTime: start, Note: addNote}
	if addEnd != "" {
		end, err := parseWhen(addEnd, t)
		if err != nil {
			return userError(err)
		}
		row.EndTime = &end
	}

	// The new record lands in the view of its own day.
	from, to := timecalc.DayRange(local(start))
	co, err := openView(cmd, storage.Filter{StartDate: from, EndDate: to})
	if err != nil {
		return err
	}
	defer co.Close()

	co.OpenAdd()
	created, err := co.Mutate(contextOf(cmd), model.Pending{Row: row, Method: model.MethodPost})
	if err != nil {
		return mutationFailed(cmd, co, err)
	}
	fmt.Fprintf(out(cmd), "Added record %s: %s\n", created.ID, describe(created))
	return nil
}
