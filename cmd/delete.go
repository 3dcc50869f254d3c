package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/config"
	"github.com/Tiliavir/ttr/internal/model"
)

var (
	deleteFilter     filterFlags
	deleteUndoWindow time.Duration
	deleteNoUndo     bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record, with a short window to undo",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	deleteFilter.register(deleteCmd)
	deleteCmd.Flags().DurationVar(&deleteUndoWindow, "undo-window", 0, "How long to offer undo (default from config, 15s)")
	deleteCmd.Flags().BoolVar(&deleteNoUndo, "no-undo", false, "Do not offer undo")
}

func runDelete(cmd *cobra.Command, args []string) error {
	if deleteUndoWindow > 0 {
		app.cfg.UndoWindow = config.Duration(deleteUndoWindow)
	}
	filter, err := deleteFilter.resolve(cmd)
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
	ctx := contextOf(cmd)
	if _, err := co.Mutate(ctx, model.Pending{Row: rec, Method: model.MethodDelete}); err != nil {
		return mutationFailed(cmd, co, err)
	}
	w := out(cmd)
	fmt.Fprintf(w, "Deleted record %s: %s\n", rec.ID, describe(rec))

	offer := co.State().Undo
	if deleteNoUndo || offer == nil {
		co.DismissUndo()
		return nil
	}

	window := offer.Deadline.Sub(now())
	fmt.Fprintf(w, "Type u and press Enter within %s to undo.\n", window.Round(time.Second))
	switch waitForUndo(cmd.InOrStdin(), window) {
	case undoTimedOut:
		co.ExpireUndo()
		fmt.Fprintln(w, "Undo window passed; deletion is permanent.")
		return nil
	case undoDeclined:
		co.DismissUndo()
		fmt.Fprintln(w, "Deletion is permanent.")
		return nil
	}

	undone, err := co.Undo(ctx)
	if err != nil {
		return mutationFailed(cmd, co, err)
	}
	if !undone {
		fmt.Fprintln(w, "Undo window passed; deletion is permanent.")
		return nil
	}
	fmt.Fprintf(w, "Restored record %s.\n", rec.ID)
	return nil
}

// undoAnswer is the outcome of the undo prompt.
type undoAnswer int

const (
	undoDeclined undoAnswer = iota
	undoRequested
	undoTimedOut
)

// waitForUndo waits for the user to type "u" before the window closes. Any
// other line or end of input declines.
func waitForUndo(in io.Reader, window time.Duration) undoAnswer {
	if window <= 0 {
		return undoTimedOut
	}
	lines := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			close(lines)
			return
		}
		lines <- line
	}()

	timer := time.NewTimer(window)
	defer timer.Stop()
	select {
	case line, ok := <-lines:
		if ok && strings.EqualFold(strings.TrimSpace(line), "u") {
			return undoRequested
		}
		return undoDeclined
	case <-timer.C:
		return undoTimedOut
	}
}
