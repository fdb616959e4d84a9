package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

func newRefreshCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [plugin|patch]",
		Short: "Fetch the remote catalog into the local cache",
		Long:  "Fetch the remote catalog of one kind, or of both kinds when none is given, and replace the cached copy. A failed fetch leaves the cache as it was.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.open()
			if err != nil {
				return err
			}
			defer s.close()

			counts := make(map[models.Kind]int)
			if len(args) == 1 {
				kind, err := kindArg(args[0])
				if err != nil {
					return err
				}
				n, err := app.Refresher().Refresh(cmd.Context(), kind)
				if err != nil {
					return fmt.Errorf("failed to refresh %s catalog: %w", kind, err)
				}
				counts[kind] = n
			} else {
				if counts, err = app.Refresher().RefreshAll(cmd.Context()); err != nil {
					return fmt.Errorf("failed to refresh catalog: %w", err)
				}
			}

			for _, kind := range models.Kinds {
				if n, ok := counts[kind]; ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d %s\n", n, kind.Plural())
				}
			}
			return nil
		},
	}
}
