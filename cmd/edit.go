package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/model"
)

var (
	editFilter   filterFlags
	editStart    string
	editEnd      string
	editNote     string
	editClearEnd bool
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change start, end or note of a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

func init() {
	editFilter.register(editCmd)
	editCmd.Flags().StringVar(&editStart, "start", "", "New start time")
	editCmd.Flags().StringVar(&editEnd, "end", "", "New end time")
	editCmd.Flags().StringVar(&editNote, "note", "", "New note")
	editCmd.Flags().BoolVar(&editClearEnd, "running", false, "Remove the end time so the record runs again")
}

func runEdit(cmd *cobra.Command, args []string) error {
	filter, err := editFilter.resolve(cmd)
	if err != nil {
		return err
	}
	co, err := openView(cmd, filter)
	if err != nil {
		return err
	}
	defer co.Close()

	rec, err := findRecord(co, args[0])
	if err != nil {
		return err
	}
	co.Edit(rec.ID)

	row := rec.Clone()
	t := now()
	if editStart != "" {
		start, err := parseWhen(editStart, t)
		if err != nil {
			return userError(err)
		}
		row.StartTime = start
	}
	if editEnd != "" {
		end, err := parseWhen(editEnd, t)
		if err != nil {
			return userError(err)
		}
		row.EndTime = &end
	}
	if editClearEnd {
		row.EndTime = nil
	}
	if cmd.Flags().Changed("note") {
		row.Note = editNote
	}
	row = row.WithComputedDuration()

	updated, err := co.Mutate(contextOf(cmd), model.Pending{Row: row, Method: model.MethodPut})
	if err != nil {
		return mutationFailed(cmd, co, err)
	}
	fmt.Fprintf(out(cmd), "Updated record %s: %s\n", updated.ID, describe(updated))
	return nil
}
