package main

import (
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/metacat/recent"
)

func newRecentCmd(opts *options) *cobra.Command {
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently viewed entities and recent searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			store, err := e.openRecent()
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck

			out := cmd.OutOrStdout()
			if clearAll {
				for _, k := range []recent.Kind{recent.KindEntity, recent.KindSearch} {
					if err := store.Clear(k); err != nil {
						return err
					}
				}
				printf(out, "cleared\n")
				return nil
			}

			sections := []struct {
				kind  recent.Kind
				title string
			}{
				{recent.KindEntity, "Recently viewed"},
				{recent.KindSearch, "Recent searches"},
			}
			for i, s := range sections {
				items, err := store.List(s.kind, 0)
				if err != nil {
					return err
				}
				if i > 0 {
					printf(out, "\n")
				}
				printf(out, "%s:\n", s.title)
				if len(items) == 0 {
					printf(out, "  none\n")
				}
				for _, it := range items {
					printf(out, "  %-30s %s\n", truncate(it.Text, 30), it.LastUsed.Local().Format("2006-01-02 15:04"))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearAll, "clear", false, "forget every recent item")
	return cmd
}
