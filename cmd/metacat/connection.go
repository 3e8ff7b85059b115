package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/metacat/connection"
	"github.com/GoCodeAlone/metacat/recent"
)

func newConnectionCmd(opts *options) *cobra.Command {
	var (
		setFile string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "connection <category> <fqn>",
		Short: "Show or replace a service's connection config",
		Long: `Show the connection config of a service, e.g.

  metacat connection databaseServices sample_data

With --set the config is replaced by the JSON object in the given file
("-" reads stdin).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			category, fqn := args[0], args[1]
			page := connection.New(e.gw, e.toasts, e.logger)
			if err := page.Load(cmd.Context(), category, fqn); err != nil {
				if v := page.View(); v.Missing {
					return errors.New(v.ErrorMessage)
				}
				return err
			}

			if setFile != "" {
				cfg, err := readConfig(cmd, setFile)
				if err != nil {
					return err
				}
				if err := page.UpdateConfig(cmd.Context(), cfg); err != nil {
					return err
				}
			}

			v := page.View()
			e.touchRecent(recent.KindEntity, "service:"+category+"/"+fqn, v.Service.Name, map[string]string{
				"url":  "/services/" + category + "/" + fqn + "/edit",
				"type": v.Service.ServiceType,
			})

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}
			crumbs := make([]string, 0, len(v.Breadcrumb))
			for _, b := range v.Breadcrumb {
				crumbs = append(crumbs, b.Name)
			}
			printf(out, "%s\n", strings.Join(crumbs, " > "))
			printf(out, "%s\n", v.Heading)
			if setFile != "" {
				printf(out, "updated\n")
			}
			if v.TestConnectionDisabled {
				printf(out, "test connection: not available for this service\n")
			}
			if v.Service.Connection != nil {
				b, err := json.MarshalIndent(v.Service.Connection.Config, "", "  ")
				if err != nil {
					return err
				}
				printf(out, "%s\n", b)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&setFile, "set", "", "replace the config with the JSON object in this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the page view as JSON")
	return cmd
}

func readConfig(cmd *cobra.Command, path string) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("config %s is not a JSON object", path)
	}
	return cfg, nil
}
