package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
	"github.com/juanfuturochile/appstore.koplugin/internal/reconcile"
)

func newInstalledCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "installed <plugin|patch>",
		Short: "List installed artifacts with their match and last check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindArg(args[0])
			if err != nil {
				return err
			}
			app, err := s.open()
			if err != nil {
				return err
			}
			defer s.close()

			installed, err := app.Engine().Installed(kind)
			if err != nil {
				return err
			}
			if len(installed) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s installed.\n", kind.Plural())
				return nil
			}

			table := newTable(cmd)
			table.Header("Name", "Repository", "Version", "Status", "Checked")
			for _, a := range installed {
				if err := table.Append(a.Key, repoCell(a), versionCell(a), statusCell(a), checkedCell(a)); err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}
			}
			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d %s\n", len(installed), kind.Plural())
			return nil
		},
	}
}

func repoCell(a reconcile.InstalledArtifact) string {
	if !a.Matched {
		return "-"
	}
	return a.FullName
}

func versionCell(a reconcile.InstalledArtifact) string {
	if a.Version == "" {
		return "-"
	}
	return a.Version
}

func statusCell(a reconcile.InstalledArtifact) string {
	switch {
	case !a.Present:
		return "missing locally"
	case !a.Matched:
		return "unmatched"
	case a.LastCheck == nil:
		return "not checked"
	}
	return stateLabel(a.LastCheck.State)
}

func checkedCell(a reconcile.InstalledArtifact) string {
	if a.LastCheck == nil || a.LastCheck.LastChecked.IsZero() {
		return "-"
	}
	return a.LastCheck.LastChecked.Format(dateFormat)
}

func stateLabel(state models.VerdictState) string {
	switch state {
	case models.StateNeedsUpdate:
		return "update available"
	case models.StateUpToDate:
		return "up to date"
	case models.StateCheckFailed:
		return "check failed"
	case models.StateUnmatched:
		return "unmatched"
	}
	return string(state)
}
