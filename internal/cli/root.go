// Package cli implements agencyctl, the terminal front-end of the agency site.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"agency-site/internal/apiclient"
	"agency-site/internal/session"
)

const defaultAPI = "http://localhost:8080"

// Options overrides the process defaults. Zero values use stdin, stdout and a
// default HTTP client.
type Options struct {
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	HTTPClient *http.Client
}

type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// reported marks err as already shown to the user.
func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err: err}
}

// IsReported reports whether err was already shown as a notification.
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}

type app struct {
	opts   Options
	v      *viper.Viper
	logger *logrus.Logger
	toast  toaster
	client *apiclient.Client
	sync   *session.Synchronizer
	stop   func()
	in     *bufio.Reader
}

// Execute runs agencyctl with args.
func Execute(ctx context.Context, args []string, opts Options) error {
	a := &app{opts: opts, v: viper.New()}
	defer a.close()

	root := a.rootCommand()
	root.SetArgs(args)
	if opts.In != nil {
		root.SetIn(opts.In)
	}
	if opts.Out != nil {
		root.SetOut(opts.Out)
	}
	if opts.Err != nil {
		root.SetErr(opts.Err)
	}
	return root.ExecuteContext(ctx)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "agencyctl",
		Short:         "agencyctl talks to the agency site API",
		Long:          "A command-line front-end for signing in, managing your profile, submitting project requests and running the admin back-office.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("api", defaultAPI, "API base URL")
	flags.String("session-file", defaultSessionFile(), "where the signed-in session is kept")
	flags.BoolP("verbose", "v", false, "log debug output to stderr")

	a.v.SetEnvPrefix("AGENCY")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlags(flags)

	root.AddCommand(
		a.signUpCommand(),
		a.verifyCommand(),
		a.signInCommand(),
		a.signOutCommand(),
		a.refreshCommand(),
		a.whoAmICommand(),
		a.profileCommand(),
		a.requestsCommand(),
		a.contactCommand(),
		a.adminCommand(),
	)
	return root
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".agencyctl-session.json"
	}
	return filepath.Join(dir, "agencyctl", "session.json")
}

// open builds the API client and synchronizer and loads the stored session.
func (a *app) open(cmd *cobra.Command) error {
	if a.sync != nil {
		return nil
	}

	a.logger = logrus.New()
	a.logger.SetOutput(cmd.ErrOrStderr())
	a.logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	a.logger.SetLevel(logrus.ErrorLevel)
	if a.v.GetBool("verbose") {
		a.logger.SetLevel(logrus.DebugLevel)
	}

	a.toast = toaster{w: cmd.OutOrStdout()}
	a.in = bufio.NewReader(cmd.InOrStdin())

	client, err := apiclient.New(apiclient.Config{
		BaseURL:    a.v.GetString("api"),
		HTTPClient: a.opts.HTTPClient,
		Store:      apiclient.NewFileStore(a.v.GetString("session-file")),
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}

	synchronizer, err := session.New(session.Config{
		Backend:   client,
		Notifier:  a.toast,
		Navigator: navigator{w: cmd.OutOrStdout()},
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}
	a.client = client
	a.sync = synchronizer
	a.stop = client.StartAutoRefresh(cmd.Context())

	if err := synchronizer.Start(cmd.Context()); err != nil {
		a.logger.WithError(err).Debug("continuing without a session")
	}
	return nil
}

func (a *app) close() {
	if a.sync != nil {
		a.sync.Close()
	}
	if a.stop != nil {
		a.stop()
	}
}

// prompt reads one line from stdin when a flag was left empty.
func (a *app) prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return strings.TrimSpace(line), nil
}

// requireSession fails with a notification when nobody is signed in.
func (a *app) requireSession() (session.Snapshot, error) {
	snap := a.sync.Snapshot()
	if snap.Session == nil {
		a.toast.Error("Please log in first")
		return snap, reported(session.ErrNotSignedIn)
	}
	return snap, nil
}

func (a *app) requireAdmin() error {
	if _, err := a.requireSession(); err != nil {
		return err
	}
	if err := a.sync.RequireAdmin(); err != nil {
		a.toast.Error("Administrator access required")
		return reported(err)
	}
	return nil
}
