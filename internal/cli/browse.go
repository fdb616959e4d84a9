package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/juanfuturochile/appstore.koplugin/internal/catalog"
	"github.com/juanfuturochile/appstore.koplugin/internal/models"
)

type browseOptions struct {
	kind          string
	search        string
	owner         string
	minPopularity int
	sort          string
	page          int
	pageSize      int
	remote        bool
	save          bool
}

func newBrowseCmd(s *session) *cobra.Command {
	opts := &browseOptions{}
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "List the cached catalog with filters, sorting and paging",
		Long:  "List the cached catalog. Flags that are not given come from the saved browser state; --save stores the result as the new state.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := s.open()
			if err != nil {
				return err
			}
			defer s.close()

			state, err := app.BrowserState().Load()
			if err != nil {
				return err
			}
			state, err = opts.apply(cmd, state)
			if err != nil {
				return err
			}
			if opts.save {
				if state, err = app.BrowserState().Save(state); err != nil {
					return err
				}
			}

			var (
				entries    []models.CatalogEntry
				patchFiles map[int64][]models.PatchFileEntry
			)
			if state.SearchRemote && strings.TrimSpace(state.Search) != "" {
				entries, err = app.Refresher().SearchRemote(cmd.Context(), state.Kind, state.Search)
				if err != nil {
					return fmt.Errorf("remote search failed: %w", err)
				}
				state.Search = ""
			} else {
				if entries, err = app.Store().ListCatalog(state.Kind); err != nil {
					return err
				}
				if state.Kind == models.KindPatch {
					if patchFiles, err = app.Store().ListAllPatchFiles(); err != nil {
						return err
					}
				}
				last, ok, err := app.Store().LastFetched(state.Kind)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), noFetchMsg)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Catalog fetched %s\n", last.Format(dateFormat))
			}

			size := opts.pageSize
			if size <= 0 {
				size = app.Config().PageSize
			}
			page := catalog.Browse(entries, patchFiles, state, size)
			return renderPage(cmd, page, state.Kind)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.kind, "kind", "k", "", "catalog kind: plugin or patch")
	f.StringVarP(&opts.search, "search", "s", "", "search terms; every term must match")
	f.StringVar(&opts.owner, "owner", "", "only repositories whose owner contains this")
	f.IntVar(&opts.minPopularity, "min-popularity", 0, "minimum star count")
	f.StringVar(&opts.sort, "sort", "", "popularity, pushed, name or created")
	f.IntVarP(&opts.page, "page", "p", 0, "page number, starting at 1")
	f.IntVar(&opts.pageSize, "page-size", 0, "entries per page")
	f.BoolVar(&opts.remote, "remote", false, "search the remote instead of the cache")
	f.BoolVar(&opts.save, "save", false, "save the resulting browser state")
	return cmd
}

// apply overlays the flags the user gave onto state.
func (o *browseOptions) apply(cmd *cobra.Command, state models.BrowserState) (models.BrowserState, error) {
	f := cmd.Flags()
	if f.Changed("kind") {
		kind, err := kindArg(o.kind)
		if err != nil {
			return state, err
		}
		if kind != state.Kind {
			state.Page = 1
		}
		state.Kind = kind
	}
	if f.Changed("sort") {
		mode, err := models.ParseSortMode(o.sort)
		if err != nil {
			return state, err
		}
		state.Sort = mode
	}
	if f.Changed("search") {
		state.Search = o.search
		state.Page = 1
	}
	if f.Changed("owner") {
		state.Owner = o.owner
		state.Page = 1
	}
	if f.Changed("min-popularity") {
		state.MinPopularity = o.minPopularity
		state.Page = 1
	}
	if f.Changed("remote") {
		state.SearchRemote = o.remote
	}
	if f.Changed("page") {
		state.Page = o.page
	}
	return catalog.Normalize(state), nil
}

func renderPage(cmd *cobra.Command, page catalog.Page, kind models.Kind) error {
	if page.Total == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No %s match.\n", kind.Plural())
		return nil
	}

	table := newTable(cmd)
	table.Header("Name", "Owner", "Stars", "Pushed", "Description")
	for _, e := range page.Entries {
		if err := table.Append(e.Name, e.Owner, fmt.Sprint(e.Popularity), formatUnix(e.PushedAt), truncate(e.Description, 60)); err != nil {
			return fmt.Errorf("failed to render table: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d (%d %s)\n", page.Page, max(page.Pages, 1), page.Total, kind.Plural())
	return nil
}
