// Package cli implements the appstore command line.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/juanfuturochile/appstore.koplugin/internal/core"
	"github.com/juanfuturochile/appstore.koplugin/internal/logging"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

const (
	dateFormat = "2006-01-02 15:04"
	noFetchMsg = "Catalog not fetched yet. Use 'appstore refresh' to fetch it."
)

// AppFactory opens the application the commands operate on. release is
// called once the command is done with it.
type AppFactory func() (app *core.App, release func(), err error)

// session opens the app for one command run.
type session struct {
	newApp  AppFactory
	app     *core.App
	release func()
}

func (s *session) open() (*core.App, error) {
	if s.app != nil {
		return s.app, nil
	}
	app, release, err := s.newApp()
	if err != nil {
		return nil, err
	}
	s.app, s.release = app, release
	return app, nil
}

func (s *session) close() {
	if s.release != nil {
		s.release()
	}
	s.app, s.release = nil, nil
}

// openApp is the default factory: configuration from the working directory.
func openApp() (*core.App, func(), error) {
	app, err := core.New()
	if err != nil {
		return nil, nil, err
	}
	logging.Setup(app.Config().LogLevel, os.Stderr)
	return app, app.Close, nil
}

// NewRootCmd builds the command tree. Every command opens the app through
// newApp on first use.
func NewRootCmd(newApp AppFactory, version string) *cobra.Command {
	s := &session{newApp: newApp}

	rootCmd := &cobra.Command{
		Use:     "appstore",
		Short:   "Browse the KOReader plugin and patch catalog and check installs for updates",
		Version: version,

		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
		SilenceUsage:      true,

		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(
		newRefreshCmd(s),
		newBrowseCmd(s),
		newInstalledCmd(s),
		newMatchCmd(s),
		newUnmatchCmd(s),
		newCheckCmd(s),
		newStatusCmd(s),
		newPruneCmd(s),
	)
	return rootCmd
}

// Execute runs the command line against the configured app.
func Execute(version string) {
	logging.Setup(os.Getenv("APPSTORE_LOG_LEVEL"), os.Stderr)

	if err := NewRootCmd(openApp, version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// kindArg validates a kind positional argument.
func kindArg(s string) (models.Kind, error) {
	kind, err := models.ParseKind(s)
	if err != nil {
		return "", fmt.Errorf("%w (expected %q or %q)", err, models.KindPlugin, models.KindPatch)
	}
	return kind, nil
}

func newTable(cmd *cobra.Command) *tablewriter.Table {
	cnf := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
	}
	return tablewriter.NewTable(cmd.OutOrStdout(), tablewriter.WithConfig(cnf))
}

func formatUnix(sec int64) string {
	if sec <= 0 {
		return "-"
	}
	return time.Unix(sec, 0).Format(dateFormat)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
