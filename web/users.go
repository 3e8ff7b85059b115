package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/GoCodeAlone/metacat/assets"
	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/feed"
	"github.com/GoCodeAlone/metacat/recent"
	"github.com/GoCodeAlone/metacat/userpage"
)

var errUnknownAction = errors.New("unknown action")

func (s *Server) userPage(subject, username string) *userpage.Page {
	return s.pages.get(pageKey{subject: subject, username: username}, func() *userpage.Page {
		return userpage.New(userpage.Config{
			Gateway:  s.gw,
			Session:  s.session,
			Notifier: s.toasts,
			Logger:   s.base,
			Assets:   s.cfg.AssetOptions(),
		})
	})
}

// navigate opens username/tab on the caller's page. Failures are already
// toasted and rendered by the view, so they are only logged here.
func (s *Server) navigate(ctx context.Context, username, tab, query string) userpage.View {
	p := s.userPage(subjectFrom(ctx), username)
	nav := userpage.Navigate{Username: username, Tab: tab, Query: query}
	if err := p.Dispatch(ctx, nav); err != nil {
		s.logger.Debug("navigate", slog.String("username", username), slog.Any("err", err))
	}
	v := p.View()
	if v.User != nil {
		s.touchRecent(recent.KindEntity, "user:"+v.User.Name, v.User.Title(), map[string]string{
			"url":  userpage.UsersPath + "/" + v.User.Name,
			"type": "user",
		})
	}
	return v
}

func (s *Server) handleUserPage(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	tab := r.PathValue("tab")
	v := s.navigate(r.Context(), username, tab, r.URL.RawQuery)

	status := http.StatusOK
	if v.Error {
		status = http.StatusNotFound
	}
	s.render(w, r, status, "user.html", s.userPageData(r, v))
}

func (s *Server) handleUserView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tab := q.Get("tab")
	q.Del("tab")
	v := s.navigate(r.Context(), r.PathValue("username"), tab, q.Encode())
	status := http.StatusOK
	if v.Error {
		status = http.StatusNotFound
	}
	writeJSON(w, status, v)
}

// actionRequest is a user page action, posted as a form by the HTML page
// or as JSON to the view API. Tab and Query name the view the action was
// taken on.
type actionRequest struct {
	Action      string  `json:"action"`
	Tab         string  `json:"tab,omitempty"`
	Query       string  `json:"query,omitempty"`
	Closed      bool    `json:"closed,omitempty"`
	Filter      string  `json:"filter,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	Page        int     `json:"page,omitempty"`
	ThreadID    string  `json:"threadId,omitempty"`
	PostID      string  `json:"postId,omitempty"`
	IsThread    bool    `json:"isThread,omitempty"`
	Message     string  `json:"message,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Description *string `json:"description,omitempty"`
}

func actionFromForm(r *http.Request) (actionRequest, error) {
	if err := r.ParseForm(); err != nil {
		return actionRequest{}, fmt.Errorf("parse form: %w", err)
	}
	f := r.PostForm
	req := actionRequest{
		Action:   f.Get("action"),
		Tab:      f.Get("tab"),
		Query:    f.Get("query"),
		Closed:   f.Get("closed") == "true",
		Filter:   f.Get("filter"),
		Kind:     f.Get("kind"),
		ThreadID: f.Get("threadId"),
		PostID:   f.Get("postId"),
		IsThread: f.Get("isThread") == "true",
		Message:  f.Get("message"),
	}
	if p := f.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return req, fmt.Errorf("page %q: %w", p, err)
		}
		req.Page = n
	}
	if f.Has("displayName") {
		v := f.Get("displayName")
		req.DisplayName = &v
	}
	if f.Has("description") {
		v := f.Get("description")
		req.Description = &v
	}
	return req, nil
}

// event translates req into a page event.
func (req actionRequest) event() (userpage.Event, error) {
	switch req.Action {
	case "toggleTaskStatus":
		return userpage.ToggleTaskStatus{Closed: req.Closed}, nil
	case "setFeedFilter":
		f, ok := catalog.ParseFeedFilter(req.Filter)
		if !ok {
			return nil, fmt.Errorf("%w: feed filter %q", errUnknownAction, req.Filter)
		}
		return userpage.SetFeedFilter{Filter: f}, nil
	case "loadMore":
		return userpage.LoadMore{}, nil
	case "paginate":
		k, ok := assets.ParseKind(req.Kind)
		if !ok || req.Page < 1 {
			return nil, fmt.Errorf("%w: paginate %q to %d", errUnknownAction, req.Kind, req.Page)
		}
		return userpage.Paginate{Kind: k, Page: req.Page}, nil
	case "postReply":
		return userpage.PostReply{ThreadID: req.ThreadID, Message: req.Message}, nil
	case "updatePost":
		return userpage.UpdatePost{ThreadID: req.ThreadID, PostID: req.PostID, IsThread: req.IsThread, Message: req.Message}, nil
	case "deletePost":
		return userpage.DeletePost{ThreadID: req.ThreadID, PostID: req.PostID, IsThread: req.IsThread}, nil
	case "updateUserDetails":
		return userpage.UpdateUserDetails{DisplayName: req.DisplayName, Description: req.Description}, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownAction, req.Action)
}

// act makes sure the caller's page shows username/tab, then applies req.
func (s *Server) act(ctx context.Context, username string, req actionRequest) (userpage.View, error) {
	ev, err := req.event()
	if err != nil {
		return userpage.View{}, err
	}
	p := s.userPage(subjectFrom(ctx), username)
	if err := p.Dispatch(ctx, userpage.Navigate{Username: username, Tab: req.Tab, Query: req.Query}); err != nil {
		return p.View(), err
	}
	err = p.Dispatch(ctx, ev)
	return p.View(), err
}

func userURL(username, tab, query string) string {
	u := userpage.UsersPath + "/" + url.PathEscape(username)
	if tab != "" {
		u += "/" + url.PathEscape(tab)
	}
	if query != "" {
		u += "?" + query
	}
	return u
}

// handleUserAction applies a form action and redirects back to the view it
// was posted from. Failures surface as toasts on the next render.
func (s *Server) handleUserAction(w http.ResponseWriter, r *http.Request) {
	username := r.PathValue("username")
	req, err := actionFromForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.act(r.Context(), username, req); err != nil {
		if errors.Is(err, errUnknownAction) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Info("user action", slog.String("action", req.Action), slog.Any("err", err))
	}
	http.Redirect(w, r, userURL(username, req.Tab, req.Query), http.StatusSeeOther)
}

// actionResponse is the body of a view API action.
type actionResponse struct {
	View  userpage.View `json:"view"`
	Error string        `json:"error,omitempty"`
}

func (s *Server) handleUserViewAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v, err := s.act(r.Context(), r.PathValue("username"), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, actionResponse{View: v})
	case errors.Is(err, errUnknownAction):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, feed.ErrNotLoggedIn):
		writeJSON(w, http.StatusForbidden, actionResponse{View: v, Error: err.Error()})
	case errors.Is(err, userpage.ErrNoUser):
		writeJSON(w, http.StatusConflict, actionResponse{View: v, Error: err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, actionResponse{View: v, Error: err.Error()})
	}
}
