package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/recent"
	"github.com/GoCodeAlone/metacat/userpage"
)

func newUserCmd(opts *options) *cobra.Command {
	var (
		tab    string
		filter string
		more   int
		closed bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "user <name>",
		Short: "Show a user's profile, activity feed and entities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			defer e.close()

			page := userpage.New(userpage.Config{
				Gateway:  e.gw,
				Session:  e.session,
				Notifier: e.toasts,
				Logger:   e.logger,
				Assets:   e.cfg.AssetOptions(),
			})
			defer page.Close()

			ctx := cmd.Context()
			var query string
			if filter != "" {
				query = url.Values{"feedFilter": {strings.ToUpper(filter)}}.Encode()
			}
			// Once the user is loaded, feed and entity failures are toasted
			// and the rest of the page is still printed.
			name := args[0]
			if err := page.Dispatch(ctx, userpage.Navigate{Username: name, Tab: tab, Query: query}); err != nil {
				if v := page.View(); v.Error {
					return errors.New(v.ErrorMessage)
				}
				e.logger.Debug("navigate", slog.String("username", name), slog.Any("err", err))
			}
			if closed {
				if err := page.Dispatch(ctx, userpage.ToggleTaskStatus{Closed: true}); err != nil {
					e.logger.Debug("closed tasks", slog.Any("err", err))
				}
			}
			for range more {
				if page.View().Paging.After == "" {
					break
				}
				if err := page.Dispatch(ctx, userpage.LoadMore{}); err != nil {
					e.logger.Debug("load more", slog.Any("err", err))
					break
				}
			}

			v := page.View()
			e.touchRecent(recent.KindEntity, "user:"+v.User.Name, v.User.Title(), map[string]string{
				"url":  userpage.UsersPath + "/" + v.User.Name,
				"type": "user",
			})

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}
			printUser(out, v)
			return nil
		},
	}
	cmd.Flags().StringVar(&tab, "tab", "", "tab to open: activity, tasks, mydata or following")
	cmd.Flags().StringVar(&filter, "filter", "", "feed filter: all, owner, mentions or follows")
	cmd.Flags().IntVar(&more, "more", 0, "load up to N more feed pages")
	cmd.Flags().BoolVar(&closed, "closed", false, "list closed instead of open tasks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the page view as JSON")
	return cmd
}

func printUser(w io.Writer, v userpage.View) {
	u := v.User
	printf(w, "%s (%s)\n", u.Title(), u.Name)
	if u.Email != "" {
		printf(w, "email:   %s\n", u.Email)
	}
	if u.Description != "" {
		printf(w, "about:   %s\n", u.Description)
	}
	if len(u.Teams) > 0 {
		printf(w, "teams:   %s\n", refNames(u.Teams))
	}
	roles := refNames(u.Roles)
	if u.IsAdmin {
		roles = strings.TrimPrefix(roles+", Admin", ", ")
	}
	if roles != "" {
		printf(w, "roles:   %s\n", roles)
	}
	printf(w, "\n")

	heading := "Activity Feed"
	if v.ThreadType == catalog.ThreadTask {
		heading = fmt.Sprintf("Tasks (%s)", v.TaskStatus)
	}
	printf(w, "%s [%s]: %d of %d\n", heading, v.FeedFilter, len(v.Threads), v.Paging.Total)
	printf(w, "%s\n", strings.Repeat("-", 60))
	for _, t := range v.Threads {
		printf(w, "%-17s %-14s %s\n", formatTs(t.ThreadTs), truncate(t.CreatedBy, 14), truncate(t.Message, 60))
		for _, p := range t.Posts {
			printf(w, "%17s   %s: %s\n", "", p.From, truncate(p.Message, 50))
		}
	}
	if len(v.Threads) == 0 {
		printf(w, "no activity\n")
	}
	printf(w, "\n")

	printAssets(w, "Owned", v.Owned)
	printAssets(w, "Following", v.Followed)
}

func printAssets(w io.Writer, label string, d catalog.AssetsData) {
	printf(w, "%s: %d (page %d)\n", label, d.Total, max(d.CurrPage, 1))
	for _, s := range d.Data {
		name := s.DisplayName
		if name == "" {
			name = s.Name
		}
		printf(w, "  %-30s %-10s %s\n", truncate(name, 30), s.EntityType, s.FullyQualifiedName)
	}
}

func refNames(refs []catalog.EntityReference) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		if r.DisplayName != "" {
			names = append(names, r.DisplayName)
		} else {
			names = append(names, r.Name)
		}
	}
	return strings.Join(names, ", ")
}

func formatTs(ms int64) string {
	if ms == 0 {
		return ""
	}
	return catalog.Timestamp(ms).Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
