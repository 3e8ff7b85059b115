package web

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/connection"
	"github.com/GoCodeAlone/metacat/feed"
	"github.com/GoCodeAlone/metacat/notify"
	"github.com/GoCodeAlone/metacat/recent"
	"github.com/GoCodeAlone/metacat/userpage"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"ts": func(ms int64) string {
		if ms == 0 {
			return ""
		}
		return catalog.Timestamp(ms).Format("Jan 2, 2006 15:04")
	},
	"pages": func(total, size int) []int {
		if size <= 0 {
			return nil
		}
		n := (total + size - 1) / size
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out
	},
	"dict": func(kv ...any) (map[string]any, error) {
		if len(kv)%2 != 0 {
			return nil, fmt.Errorf("dict: odd number of arguments")
		}
		m := make(map[string]any, len(kv)/2)
		for i := 0; i < len(kv); i += 2 {
			k, ok := kv[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
			}
			m[k] = kv[i+1]
		}
		return m, nil
	},
}

var templates = func() map[string]*template.Template {
	out := make(map[string]*template.Template)
	for _, name := range []string{"user.html", "connection.html", "login.html", "index.html"} {
		out[name] = template.Must(template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name))
	}
	return out
}()

// layoutData is what every page's header and right panel need.
type layoutData struct {
	Title        string
	Breadcrumb   []catalog.Breadcrumb
	Subject      string
	AuthDisabled bool
	Toasts       []notify.Toast
	Recent       []recent.Item
}

func (s *Server) layout(r *http.Request, title string, crumbs []catalog.Breadcrumb) layoutData {
	return layoutData{
		Title:        title,
		Breadcrumb:   crumbs,
		Subject:      subjectFrom(r.Context()),
		AuthDisabled: s.cfg.Auth.Disabled,
		Toasts:       s.toasts.Active(),
		Recent:       s.recentItems(recent.KindEntity),
	}
}

type tabLink struct {
	Name   string
	Label  string
	URL    string
	Active bool
}

const (
	tabActivity  = "activity"
	tabMyData    = "mydata"
	tabFollowing = "following"
)

var userTabs = []struct{ name, label string }{
	{tabActivity, "Activity Feed"},
	{feed.TabTasks, "Tasks"},
	{tabMyData, "My Data"},
	{tabFollowing, "Following"},
}

type userPageData struct {
	layoutData
	View     userpage.View
	Tabs     []tabLink
	Tab      string
	Query    string
	PageSize int
	CanEdit  bool
	Filters  []catalog.FeedFilter
}

func (s *Server) userPageData(r *http.Request, v userpage.View) userPageData {
	title := v.Username
	if v.User != nil {
		title = v.User.Title()
	}
	tab := v.Tab
	if tab == "" {
		tab = tabActivity
	}
	d := userPageData{
		layoutData: s.layout(r, title, v.Breadcrumb),
		View:       v,
		Tab:        tab,
		Query:      r.URL.RawQuery,
		PageSize:   s.cfg.Search.PageSize,
		CanEdit:    v.IsLoggedInUser || v.IsAdminUser || v.IsAuthDisabled,
		Filters:    []catalog.FeedFilter{catalog.FilterAll, catalog.FilterOwner, catalog.FilterMentions, catalog.FilterFollows},
	}
	for _, t := range userTabs {
		d.Tabs = append(d.Tabs, tabLink{
			Name:   t.name,
			Label:  t.label,
			URL:    userURL(v.Username, t.name, ""),
			Active: t.name == tab,
		})
	}
	return d
}

type connectionPageData struct {
	layoutData
	View   connection.View
	Config string
	Action string
}

// connectionPageData renders v; draft, when set, replaces the stored config
// in the editor so a rejected submission is not lost.
func (s *Server) connectionPageData(r *http.Request, v connection.View, draft string) connectionPageData {
	d := connectionPageData{
		layoutData: s.layout(r, v.Heading, v.Breadcrumb),
		View:       v,
		Config:     draft,
		Action:     connectionURL(v.Category, v.FQN),
	}
	if d.Title == "" {
		d.Title = connection.MissingMessage(v.Category, v.FQN)
	}
	if draft == "" && v.Service != nil && v.Service.Connection != nil {
		b, err := json.MarshalIndent(v.Service.Connection.Config, "", "  ")
		if err == nil {
			d.Config = string(b)
		}
	}
	return d
}

// render executes a page template into a buffer first so a template error
// still produces a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	t, ok := templates[name]
	if !ok {
		http.Error(w, "unknown template", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("render", slog.String("template", name), slog.String("path", r.URL.Path), slog.Any("err", err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

type loginPageData struct {
	layoutData
	Next   string
	Failed bool
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.render(w, r, http.StatusOK, "login.html", loginPageData{
		layoutData: layoutData{Title: "Sign in", AuthDisabled: s.cfg.Auth.Disabled},
		Next:       safeNext(q.Get("next")),
		Failed:     q.Get("failed") != "",
	})
}

// handleIndex lists recently viewed entities and, when known, links to the
// session user's own page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	d := struct {
		layoutData
		Me *catalog.User
	}{
		layoutData: s.layout(r, "metacat", nil),
		Me:         s.session.User(),
	}
	s.render(w, r, http.StatusOK, "index.html", d)
}
