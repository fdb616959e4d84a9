package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

func newStatusCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cache freshness and install counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.open()
			if err != nil {
				return err
			}
			defer s.close()

			table := newTable(cmd)
			table.Header("Kind", "Cached", "Fetched", "Installed", "Matched", "Updates", "Orphaned")
			for _, kind := range models.Kinds {
				entries, err := app.Store().ListCatalog(kind)
				if err != nil {
					return err
				}
				fetched := "never"
				if last, ok, err := app.Store().LastFetched(kind); err != nil {
					return err
				} else if ok {
					fetched = last.Format(dateFormat)
				}

				installed, err := app.Engine().Installed(kind)
				if err != nil {
					return err
				}
				var present, matched, updates, orphaned int
				for _, a := range installed {
					if a.Present {
						present++
					} else {
						orphaned++
					}
					if a.Matched {
						matched++
					}
					if a.LastCheck != nil && a.LastCheck.State == models.StateNeedsUpdate {
						updates++
					}
				}

				if err := table.Append(kind.Plural(), fmt.Sprint(len(entries)), fetched,
					fmt.Sprint(present), fmt.Sprint(matched), fmt.Sprint(updates), fmt.Sprint(orphaned)); err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}
			}
			if err := table.Render(); err != nil {
				return fmt.Errorf("failed to render table: %w", err)
			}
			return nil
		},
	}
}
