package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/api"
	"github.com/Tiliavir/ttr/internal/cache"
	"github.com/Tiliavir/ttr/internal/coordinator"
	"github.com/Tiliavir/ttr/internal/model"
	"github.com/Tiliavir/ttr/internal/session"
	"github.com/Tiliavir/ttr/internal/storage"
	"github.com/Tiliavir/ttr/internal/timecalc"
)

// filterFlags select the records a command works on. Without flags the
// persisted filter applies.
type filterFlags struct {
	today  bool
	week   bool
	month  bool
	from   string
	to     string
	search string
}

func (f *filterFlags) register(c *cobra.Command) {
	c.Flags().BoolVar(&f.today, "today", false, "Records of today")
	c.Flags().BoolVar(&f.week, "week", false, "Records of this week (Monday to Sunday)")
	c.Flags().BoolVar(&f.month, "month", false, "Records of this month")
	c.Flags().StringVar(&f.from, "from", "", "First day (YYYY-MM-DD)")
	c.Flags().StringVar(&f.to, "to", "", "Last day (YYYY-MM-DD)")
	c.Flags().StringVar(&f.search, "search", "", "Only records whose note contains this text")
}

// resolve merges the flags over the persisted filter.
func (f *filterFlags) resolve(cmd *cobra.Command) (storage.Filter, error) {
	t := now()
	filter, err := storage.LoadFilter(app.cfg.DataDir, t)
	if err != nil {
		app.log.Warn().Err(err).Msg("saved filter ignored")
	}

	presets := 0
	for _, on := range []bool{f.today, f.week, f.month} {
		if on {
			presets++
		}
	}
	if presets > 1 {
		return storage.Filter{}, userError(errors.New("use only one of --today, --week, --month"))
	}
	preset := ""
	switch {
	case f.today:
		preset = storage.PresetToday
	case f.week:
		preset = storage.PresetWeek
	case f.month:
		preset = storage.PresetMonth
	}
	if preset != "" {
		p, _ := storage.PresetFilter(preset, t)
		filter.StartDate, filter.EndDate = p.StartDate, p.EndDate
	}

	if f.from != "" {
		d, err := timecalc.ParseDay(f.from, t.Location())
		if err != nil {
			return storage.Filter{}, userError(err)
		}
		filter.StartDate = timecalc.StartOfDay(d)
	}
	if f.to != "" {
		d, err := timecalc.ParseDay(f.to, t.Location())
		if err != nil {
			return storage.Filter{}, userError(err)
		}
		filter.EndDate = timecalc.EndOfDay(d)
	}
	if cmd.Flags().Changed("search") {
		filter.SearchText = f.search
	}
	if filter.EndDate.Before(filter.StartDate) {
		return storage.Filter{}, userError(fmt.Errorf("--to %s is before --from %s",
			timecalc.DayKey(filter.EndDate), timecalc.DayKey(filter.StartDate)))
	}
	return filter, nil
}

// openView loads the records of filter for the logged-in user.
func openView(cmd *cobra.Command, filter storage.Filter) (*coordinator.Coordinator, error) {
	sess, err := app.requireSession()
	if err != nil {
		return nil, err
	}

	observers := []coordinator.Observer{app.metrics}
	if app.journal != nil {
		observers = append(observers, app.journal)
	}
	key := cache.Key{
		StartDate:  filter.StartDate,
		EndDate:    filter.EndDate,
		SearchText: filter.SearchText,
		AuthToken:  sess.Token,
	}
	co := coordinator.New(app.client(true), cache.New(), key,
		coordinator.WithUserID(sess.UserID),
		coordinator.WithLogger(app.log),
		coordinator.WithUndoWindow(app.cfg.UndoWindow.Std()),
		coordinator.WithStaleTime(app.cfg.StaleTime.Std()),
		coordinator.WithClock(now),
		coordinator.WithObservers(observers...),
	)
	if _, err := co.Load(contextOf(cmd), false); err != nil {
		return nil, requestError(err)
	}
	return co, nil
}

// requestError sorts a failed backend call into exit codes.
func requestError(err error) error {
	if errors.Is(err, session.ErrNotLoggedIn) || errors.Is(err, session.ErrExpired) {
		return userError(err)
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return userError(fmt.Errorf("%w (run `ttr login`)", err))
	}
	var verr *coordinator.ValidationError
	var perr *coordinator.PreconditionError
	if errors.As(err, &verr) || errors.As(err, &perr) || errors.Is(err, coordinator.ErrNoActiveRecord) {
		return userError(err)
	}
	if errors.As(err, &apiErr) && len(apiErr.Validation) > 0 {
		return userError(err)
	}
	return backendError(err)
}

// mutationFailed prints what the coordinator surfaced for a failed
// mutation and returns the error for the exit code.
func mutationFailed(cmd *cobra.Command, co *coordinator.Coordinator, err error) error {
	var verr *coordinator.ValidationError
	if errors.As(err, &verr) {
		fields := make([]string, 0, len(verr.Fields))
		for field := range verr.Fields {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", field, verr.Fields[field])
		}
		return userError(errors.New("invalid record"))
	}

	state := co.State()
	if s := state.Error; s != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), s.Message)
		for _, r := range s.Reasons {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", r.Key, r.Message)
		}
	}
	switch {
	case state.EditRow != "":
		fmt.Fprintf(cmd.ErrOrStderr(), "Record %s was not changed; fix the fields above and run `ttr edit %s` again.\n",
			state.EditRow, state.EditRow)
	case state.AddRow != nil:
		fmt.Fprintf(cmd.ErrOrStderr(), "Record was not added: %s\n", describe(*state.AddRow))
	}
	return requestError(err)
}

func findRecord(co *coordinator.Coordinator, id string) (model.TimeRecord, error) {
	for _, r := range co.Records() {
		if r.ID == id {
			return r, nil
		}
	}
	return model.TimeRecord{}, userError(fmt.Errorf("record %s is not in the selected range (see --from/--to)", id))
}

// whenLayouts are tried in order by parseWhen.
var whenLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// parseWhen parses a time flag. A bare "15:04" means that time today.
func parseWhen(s string, ref time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, s, ref.Location()); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation("15:04", s, ref.Location()); err == nil {
		return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour(), t.Minute(), 0, 0, ref.Location()), nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (use HH:MM, \"YYYY-MM-DD HH:MM\" or RFC 3339)", s)
}

// describe renders a record on one line.
func describe(r model.TimeRecord) string {
	end := "running"
	if r.EndTime != nil {
		end = local(*r.EndTime).Format("2006-01-02 15:04")
	}
	s := fmt.Sprintf("%s – %s", local(r.StartTime).Format("2006-01-02 15:04"), end)
	if r.DurationMinutes != nil {
		s += " (" + timecalc.FormatMinutes(*r.DurationMinutes) + ")"
	}
	if r.Note != "" {
		s += "  " + r.Note
	}
	return s
}

// local converts t to the zone records are displayed in.
func local(t time.Time) time.Time {
	return t.In(now().Location())
}
