package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/metacat/internal/version"
	"github.com/GoCodeAlone/metacat/update"
)

func newUpdateCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update metacat to the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			u := update.New(version.Version)
			rel, err := u.CheckForUpdate(cmd.Context())
			if errors.Is(err, update.ErrDevBuild) {
				printf(out, "metacat %s is a development build; install a release to update\n", version.Version)
				return nil
			}
			if err != nil {
				return err
			}
			if rel == nil {
				printf(out, "metacat %s is up to date\n", version.Version)
				return nil
			}
			if check {
				printf(out, "metacat %s is available (running %s)\n", rel.Version, version.Version)
				return nil
			}
			printf(out, "downloading %s...\n", rel.Version)
			if err := u.ApplyUpdate(cmd.Context(), rel, ""); err != nil {
				return err
			}
			printf(out, "updated to %s\n", rel.Version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "only report whether a newer release exists")
	return cmd
}
