package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

func newMatchCmd(s *session) *cobra.Command {
	var path, branch, sha string
	cmd := &cobra.Command{
		Use:   "match <plugin|patch> <name> <owner/repo>",
		Short: "Record which catalog repository an installed artifact came from",
		Long: `Record which catalog repository an installed artifact came from.
The repository must be in the cached catalog. For plugins --path names the
manifest inside the repository; for patches it names the file.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindArg(args[0])
			if err != nil {
				return err
			}
			key, fullName := args[1], args[2]

			app, err := s.open()
			if err != nil {
				return err
			}
			defer s.close()

			entry, err := app.Engine().FindEntry(kind, fullName)
			if err != nil {
				return err
			}
			if kind == models.KindPlugin {
				rec, err := app.Engine().MatchPlugin(key, *entry, path, branch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Matched %s to %s (%s on %s)\n", key, rec.FullName, rec.ManifestPath, branchLabel(rec.Branch))
				return nil
			}
			rec, err := app.Engine().MatchPatch(key, *entry, path, branch, sha)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Matched %s to %s (%s on %s)\n", key, rec.FullName, rec.Path, branchLabel(rec.Branch))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "manifest or patch path inside the repository")
	cmd.Flags().StringVar(&branch, "branch", "", "branch to check (default: the repository's default branch)")
	cmd.Flags().StringVar(&sha, "sha", "", "content digest of the installed patch at match time")
	return cmd
}

func branchLabel(b string) string {
	if b == "" {
		return "default branch"
	}
	return b
}

func newUnmatchCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "unmatch <plugin|patch> <name>",
		Short: "Forget which repository an installed artifact came from",
		Args:  cobra.ExactArgs(2),
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

			if err := app.Engine().Unmatch(kind, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unmatched %s\n", args[1])
			return nil
		},
	}
}

func newPruneCmd(s *session) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "prune <plugin|patch>",
		Short: "Remove install records whose artifact is gone from disk",
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

			var keys []string
			if dryRun {
				keys, err = app.Engine().Orphans(kind)
			} else {
				keys, err = app.Engine().Prune(kind)
			}
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to prune.")
				return nil
			}
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, k)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list the orphaned records")
	return cmd
}
