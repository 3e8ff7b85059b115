// Package userpage composes the user profile page: the user record, its
// activity feed and its owned/followed entity lists. Every UI action goes
// through Page.Dispatch.
package userpage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/metacat/assets"
	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/feed"
	"github.com/GoCodeAlone/metacat/notify"
	"github.com/GoCodeAlone/metacat/session"
)

// ErrNoUser is returned for actions dispatched before a user was loaded.
var ErrNoUser = errors.New("no user loaded")

// Config carries a Page's collaborators.
type Config struct {
	Gateway  catalog.Gateway
	Session  *session.Session
	Notifier notify.Notifier
	Logger   *slog.Logger
	Assets   assets.Options
}

// Page is one user page. Dispatch calls are serialised; View may be called
// concurrently with them.
type Page struct {
	gw       catalog.Gateway
	session  *session.Session
	notifier notify.Notifier
	logger   *slog.Logger

	feed   *feed.Controller
	assets *assets.Loader
	unsub  func()

	dispatchMu sync.Mutex

	mu         sync.RWMutex
	username   string
	tab        string
	query      string
	taskStatus catalog.TaskStatus
	user       *catalog.User
	loading    bool
	failed     bool
	loggedIn   bool
}

// New creates an empty page. Call Close when done with it.
func New(cfg Config) *Page {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Session == nil {
		cfg.Session = session.New(false)
	}
	p := &Page{
		gw:         cfg.Gateway,
		session:    cfg.Session,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger.With(slog.String("component", "userpage")),
		feed:       feed.New(cfg.Gateway, cfg.Session, cfg.Notifier, cfg.Logger),
		assets:     assets.New(cfg.Gateway, cfg.Assets, cfg.Notifier, cfg.Logger),
		taskStatus: catalog.TaskOpen,
		loading:    true,
	}
	p.unsub = cfg.Session.Subscribe(p.sessionChanged)
	return p
}

// Close detaches the page from its session.
func (p *Page) Close() {
	if p.unsub != nil {
		p.unsub()
	}
}

func (p *Page) sessionChanged(u *catalog.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loggedIn = u != nil && u.Name == p.username
}

// Dispatch applies ev. Failures are reported through the notifier and also
// returned.
func (p *Page) Dispatch(ctx context.Context, ev Event) error {
	p.dispatchMu.Lock()
	defer p.dispatchMu.Unlock()

	if nav, ok := ev.(Navigate); ok {
		return p.navigate(ctx, nav)
	}

	p.mu.RLock()
	user := p.user
	p.mu.RUnlock()
	if user == nil {
		return ErrNoUser
	}

	switch ev := ev.(type) {
	case ToggleTaskStatus:
		status := catalog.TaskOpen
		if ev.Closed {
			status = catalog.TaskClosed
		}
		p.mu.Lock()
		p.taskStatus = status
		p.mu.Unlock()
		return p.feed.SetTaskStatus(ctx, status)
	case SetFeedFilter:
		return p.feed.SetFilter(ctx, ev.Filter)
	case LoadMore:
		return p.feed.LoadMore(ctx)
	case Paginate:
		return p.assets.Paginate(ctx, ev.Kind, ev.Page)
	case PostReply:
		return p.feed.Post(ctx, ev.ThreadID, ev.Message)
	case UpdatePost:
		return p.feed.UpdateMessage(ctx, ev.ThreadID, ev.PostID, ev.IsThread, ev.Message)
	case DeletePost:
		return p.feed.Delete(ctx, ev.ThreadID, ev.PostID, ev.IsThread)
	case UpdateUserDetails:
		return p.updateUserDetails(ctx, user, ev)
	}
	return fmt.Errorf("unknown event %T", ev)
}

func (p *Page) navigate(ctx context.Context, nav Navigate) error {
	p.mu.Lock()
	sameUser := nav.Username == p.username && p.user != nil
	sameView := sameUser && nav.Tab == p.tab && nav.Query == p.query
	p.username, p.tab, p.query = nav.Username, nav.Tab, nav.Query
	status := p.taskStatus
	p.mu.Unlock()

	key := feed.Key{Username: nav.Username, Tab: nav.Tab, Search: nav.Query, TaskStatus: status}
	if sameView {
		return p.retry(ctx)
	}
	if sameUser {
		return p.feed.Navigate(ctx, key)
	}

	user, err := p.loadUser(ctx, nav.Username)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.Go(func() error { return p.assets.SetUser(ctx, user.ID) })
	g.Go(func() error { return p.feed.Navigate(ctx, key) })
	return g.Wait()
}

// retry re-runs the feed and entity fetches whose latest attempt failed.
// Navigating to the view already shown keeps everything that loaded.
func (p *Page) retry(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error { return p.assets.Retry(ctx) })
	g.Go(func() error { return p.feed.Retry(ctx) })
	return g.Wait()
}

// loadUser fetches the user record. On failure the page shows the error
// placeholder and no feed or entity list is fetched.
func (p *Page) loadUser(ctx context.Context, username string) (*catalog.User, error) {
	p.mu.Lock()
	p.user = nil
	p.loading = true
	p.failed = false
	p.mu.Unlock()
	p.feed.Reset()

	user, err := p.gw.UserByName(ctx, username, catalog.UserFields)
	if err == nil && user == nil {
		err = catalog.ErrUnexpectedResponse
	}

	if err != nil {
		p.mu.Lock()
		p.loading = false
		p.failed = true
		p.mu.Unlock()
		p.logger.Warn("load user", slog.String("username", username), slog.Any("err", err))
		p.notifier.Error(err, "Error while fetching User Details!")
		return nil, fmt.Errorf("load user %s: %w", username, err)
	}

	cur := p.session.User()
	p.mu.Lock()
	p.loading = false
	p.user = user
	p.loggedIn = cur != nil && cur.Name == username
	p.mu.Unlock()
	p.feed.SetUser(user.ID)
	return user, nil
}

func (p *Page) updateUserDetails(ctx context.Context, before *catalog.User, ev UpdateUserDetails) error {
	after := *before
	if ev.DisplayName != nil {
		after.DisplayName = *ev.DisplayName
	}
	if ev.Description != nil {
		after.Description = *ev.Description
	}
	patch, err := catalog.Diff(before, &after)
	if err != nil {
		return err
	}
	if catalog.EmptyPatch(patch) {
		return nil
	}

	res, err := p.gw.PatchUser(ctx, before.ID, patch)
	if err == nil && res == nil {
		err = catalog.ErrUnexpectedResponse
	}
	if err != nil {
		fallback := ""
		if errors.Is(err, catalog.ErrUnexpectedResponse) {
			fallback = "Unexpected error occurred."
		}
		p.notifier.Error(err, fallback)
		return fmt.Errorf("update user %s: %w", before.Name, err)
	}

	merged, err := mergeUser(before, res)
	if err != nil {
		return err
	}
	p.mu.Lock()
	if p.user != nil && p.user.ID == merged.ID {
		p.user = merged
	}
	p.mu.Unlock()
	return nil
}

// mergeUser lays the fields present in res over prev.
func mergeUser(prev, res *catalog.User) (*catalog.User, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	var out catalog.User
	if err := catalog.Apply(prev, raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
