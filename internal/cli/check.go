package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

func newCheckCmd(s *session) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "check <plugin|patch> [name]",
		Short: "Check installed artifacts for upstream updates",
		Long: `Check one installed artifact, or all matched ones, against upstream.
Interrupting a batch keeps the verdicts reached so far.`,
		Args: cobra.RangeArgs(1, 2),
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if len(args) == 2 {
				v, err := app.Engine().Check(ctx, kind, args[1])
				if err != nil {
					return err
				}
				return renderVerdicts(cmd, []models.Verdict{v})
			}

			progress := func(done, total int, v models.Verdict) {
				if !quiet {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] %s: %s\n", done, total, v.Key, stateLabel(v.State))
				}
			}
			result, err := app.Engine().CheckAll(ctx, kind, progress)
			if err != nil {
				return err
			}
			if len(result.Verdicts) > 0 {
				if err := renderVerdicts(cmd, result.Verdicts); err != nil {
					return err
				}
			}

			sum := result.Summary
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nChecked %d %s: %d need updates, %d up to date, %d failed, %d unmatched\n",
				sum.Total, kind.Plural(), sum.NeedsUpdate, sum.UpToDate, sum.CheckFailed, sum.Unmatched)
			if result.Cancelled {
				fmt.Fprintln(out, "Interrupted; remaining artifacts were not checked.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func renderVerdicts(cmd *cobra.Command, verdicts []models.Verdict) error {
	table := newTable(cmd)
	table.Header("Name", "Status", "Remote", "Reason")
	for _, v := range verdicts {
		remote := v.RemoteVersion
		if remote == "" && v.RemoteSHA != "" {
			remote = truncate(v.RemoteSHA, 12)
		}
		if remote == "" {
			remote = "-"
		}
		reason := v.Reason
		if v.Error != "" {
			reason = v.Error
		}
		if v.Orphaned {
			reason = "missing locally"
		}
		if err := table.Append(v.Key, stateLabel(v.State), remote, truncate(reason, 70)); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
