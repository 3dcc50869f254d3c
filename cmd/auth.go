package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ttr/internal/api"
	"github.com/Tiliavir/ttr/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the session",
	Long:  "Log in with username and password. The password is read from stdin.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup <username>",
	Short: "Register a new user and log in",
	Long:  "Register a new user. The password and its repetition are read from stdin, one per line.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSignup,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Invalidate and remove the stored session",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func runLogin(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	password := prompt(cmd, in, "Password: ")

	sess, err := session.Login(contextOf(cmd), app.client(false), app.sessions, args[0], password)
	if err != nil {
		return authError(err)
	}
	fmt.Fprintf(out(cmd), "Logged in as %s.\n", sess.Username)
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(cmd.InOrStdin())
	password := prompt(cmd, in, "Password: ")
	repeat := prompt(cmd, in, "Repeat password: ")

	sess, err := session.Signup(contextOf(cmd), app.client(false), app.sessions, args[0], password, repeat)
	if err != nil {
		return authError(err)
	}
	fmt.Fprintf(out(cmd), "Signed up and logged in as %s.\n", sess.Username)
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	msg, err := session.Logout(contextOf(cmd), app.client(false), app.sessions)
	switch {
	case errors.Is(err, session.ErrNotLoggedIn):
		return userError(err)
	case err != nil:
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
	if msg == "" {
		msg = "Logged out."
	}
	fmt.Fprintln(out(cmd), msg)
	return nil
}

// authError sorts login and signup failures into exit codes and prints
// field errors the server sent.
func authError(err error) error {
	var fields session.FieldErrors
	if errors.As(err, &fields) {
		return userError(err)
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return userError(err)
	}
	return backendError(err)
}

// prompt writes label to stderr and reads one line from in.
func prompt(cmd *cobra.Command, in *bufio.Reader, label string) string {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, _ := in.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
