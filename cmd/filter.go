package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/storage"
	"github.com/Tiliavir/ttr/internal/timecalc"
)

var (
	filterFlagsSet filterFlags
	filterReset    bool
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Show or change the saved records filter",
	Long: `Without flags, show the saved filter. With --today, --week, --month,
--from, --to or --search, change and save it. Commands without filter flags
use the saved filter.`,
	Args: cobra.NoArgs,
	RunE: runFilter,
}

func init() {
	filterFlagsSet.register(filterCmd)
	filterCmd.Flags().BoolVar(&filterReset, "reset", false, "Back to the current month without search text")
}

func runFilter(cmd *cobra.Command, args []string) error {
	var (
		f   storage.Filter
		err error
	)
	changed := false
	for _, name := range []string{"today", "week", "month", "from", "to", "search", "reset"} {
		changed = changed || cmd.Flags().Changed(name)
	}
	switch {
	case filterReset:
		f, _ = storage.PresetFilter(storage.PresetMonth, now())
	default:
		f, err = filterFlagsSet.resolve(cmd)
		if err != nil {
			return err
		}
	}

	if changed {
		if err := storage.SaveFilter(app.cfg.DataDir, f); err != nil {
			return backendError(err)
		}
	}

	w := out(cmd)
	fmt.Fprintf(w, "From:   %s\n", timecalc.DayKey(f.StartDate))
	fmt.Fprintf(w, "To:     %s\n", timecalc.DayKey(f.EndDate))
	fmt.Fprintf(w, "Search: %s\n", f.SearchText)
	return nil
}
