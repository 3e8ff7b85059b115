package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/recent"
)

func newSearchCmd(opts *options) *cobra.Command {
	var (
		page  int
		size  int
		index string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search catalog entities",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			q := catalog.SearchQuery{
				Query: strings.Join(args, " "),
				Page:  max(page, 1),
				Size:  size,
				Index: index,
			}
			if q.Size <= 0 {
				q.Size = e.cfg.Search.PageSize
			}
			if q.Index == "" {
				q.Index = e.cfg.Search.Index
			}

			res, err := e.gw.Search(cmd.Context(), q)
			if err == nil && res == nil {
				err = catalog.ErrUnexpectedResponse
			}
			if err != nil {
				return err
			}
			e.touchRecent(recent.KindSearch, q.Query, q.Query, nil)

			out := cmd.OutOrStdout()
			hits := catalog.FormatHits(res.Hits.Hits)
			total := res.Hits.Total.Value
			if total == 0 {
				printf(out, "no results for %q\n", q.Query)
				return nil
			}
			printf(out, "%d results for %q (page %d)\n", total, q.Query, q.Page)
			printf(out, "%-30s %-10s %-20s %s\n", "NAME", "TYPE", "OWNER", "FQN")
			printf(out, "%s\n", strings.Repeat("-", 90))
			for _, h := range hits {
				name := h.DisplayName
				if name == "" {
					name = h.Name
				}
				printf(out, "%-30s %-10s %-20s %s\n", truncate(name, 30), h.EntityType, truncate(h.Owner, 20), h.FullyQualifiedName)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "result page, starting at 1")
	cmd.Flags().IntVar(&size, "size", 0, "results per page (default search.page_size)")
	cmd.Flags().StringVar(&index, "index", "", "comma separated search indexes (default search.index)")
	return cmd
}
