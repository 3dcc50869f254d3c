package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/api"
	"github.com/Tiliavir/ttr/internal/config"
	"github.com/Tiliavir/ttr/internal/journal"
	"github.com/Tiliavir/ttr/internal/logging"
	"github.com/Tiliavir/ttr/internal/metrics"
	"github.com/Tiliavir/ttr/internal/session"
)

var (
	logLevelFlag    string
	metricsTextfile string

	// now is replaced in tests.
	now = time.Now
)

// env is the per-invocation wiring shared by all commands.
type env struct {
	cfg      config.Config
	log      zerolog.Logger
	sessions *session.Store
	metrics  *metrics.Recorder
	journal  *journal.Journal
}

var app *env

var rootCmd = &cobra.Command{
	Use:   "ttr",
	Short: "ttr – time records from the command line",
	Long: `ttr manages time records on a time tracking backend: add, edit and
delete records (with undo), run a start/stop timer, filter and report.
Session, filter, config and the local mutation journal live in ~/.ttr/.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// userError marks err as caused by input or local state (exit code 1).
func userError(err error) error {
	return &exitError{code: 1, err: err}
}

// backendError marks err as a storage or backend failure (exit code 2).
func backendError(err error) error {
	return &exitError{code: 2, err: err}
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

// Execute is the entry point called from main.
func Execute() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// execute runs the command tree, then writes the metrics textfile and
// closes the journal whether or not the command failed.
func execute() error {
	app = nil
	err := rootCmd.Execute()
	if app == nil {
		return err
	}
	if metricsTextfile != "" {
		if werr := app.metrics.WriteTextfile(metricsTextfile); werr != nil {
			if err == nil {
				err = backendError(werr)
			} else {
				app.log.Warn().Err(werr).Msg("metrics textfile not written")
			}
		}
	}
	if app.journal != nil {
		_ = app.journal.Close()
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Diagnostics level on stderr (overrides config)")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(historyCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return userError(err)
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return userError(err)
	}

	e := &env{
		cfg:      cfg,
		log:      log,
		sessions: session.NewStore(cfg.DataDir),
		metrics:  metrics.New(),
	}
	j, err := journal.Open(filepath.Join(cfg.DataDir, "journal.db"), log)
	if err != nil {
		log.Warn().Err(err).Msg("mutation journal disabled")
	} else {
		e.journal = j
	}
	app = e
	return nil
}

// client returns a REST client; authenticated clients read the stored
// session on every request.
func (e *env) client(authenticated bool) *api.Client {
	opts := []api.Option{
		api.WithTimeout(e.cfg.HTTPTimeout.Std()),
		api.WithLogger(e.log),
		api.WithDebugLogging(e.cfg.HTTPDebug),
	}
	if !authenticated {
		return api.New(e.cfg.BaseURL, nil, opts...)
	}
	return api.New(e.cfg.BaseURL, e.sessions.TokenSource(), opts...)
}

// requireSession loads the stored session or fails with a user error.
func (e *env) requireSession() (session.Session, error) {
	sess, err := e.sessions.Load()
	if errors.Is(err, session.ErrNotLoggedIn) {
		return session.Session{}, userError(err)
	}
	if err != nil {
		return session.Session{}, backendError(err)
	}
	return sess, nil
}

func out(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }
