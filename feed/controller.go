package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/notify"
	"github.com/GoCodeAlone/metacat/session"
)

// Toast texts shown on failure.
const (
	msgFetchError  = "Error while fetching Activity Feeds!"
	msgPostError   = "Error while posting feed!"
	msgUpdateError = "Error while updating feed!"
	msgDeleteError = "Error while deleting feed!"
)

var (
	// ErrNoUser is returned when a load is attempted before SetUser.
	ErrNoUser = errors.New("feed owner is not known yet")

	// ErrNotLoggedIn is returned when posting without a session user.
	ErrNotLoggedIn = errors.New("no logged in user to post as")

	// ErrUnknownThread is returned when editing a thread that is not shown.
	ErrUnknownThread = errors.New("thread is not in the feed")
)

// Source is the part of the catalog gateway the feed needs.
type Source interface {
	Feed(ctx context.Context, q catalog.FeedQuery) (*catalog.FeedPage, error)
	Thread(ctx context.Context, id string) (*catalog.Thread, error)
	PostToThread(ctx context.Context, threadID string, post catalog.Post) (*catalog.Thread, error)
	PatchThread(ctx context.Context, threadID string, patch []byte) (*catalog.Thread, error)
	PatchPost(ctx context.Context, threadID, postID string, patch []byte) (*catalog.Post, error)
	DeleteThread(ctx context.Context, threadID string) error
	DeletePost(ctx context.Context, threadID, postID string) error
}

// Controller owns the feed state of one user page. Requests run without
// the lock held; each takes a generation and only the latest one is
// applied. It is safe for concurrent use.
type Controller struct {
	src      Source
	session  *session.Session
	notifier notify.Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	userID string
	gen    uint64
	state  State
}

// New creates a Controller. notifier and logger may be nil.
func New(src Source, sess *session.Session, notifier notify.Notifier, logger *slog.Logger) *Controller {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sess == nil {
		sess = session.New(false)
	}
	return &Controller{
		src:      src,
		session:  sess,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "feed")),
	}
}

// Snapshot returns the current state. The returned thread slice is owned
// by the caller.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Threads = slices.Clone(s.Threads)
	return s
}

// SetUser sets the feed owner. A different owner resets the feed and
// supersedes any request still in flight.
func (c *Controller) SetUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID == userID {
		return
	}
	c.userID = userID
	c.gen++
	c.state = Reduce(c.state, Reset{Gen: c.gen})
}

// Reset empties the feed and forgets the owner.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = ""
	c.gen++
	c.state = Reduce(c.state, Reset{Gen: c.gen})
}

// Navigate switches the feed to key: the list is emptied, the filter is
// recomputed from the tab and key.Search, and a fresh load is issued.
func (c *Controller) Navigate(ctx context.Context, key Key) error {
	tt := ThreadTypeForTab(key.Tab)
	return c.switchTo(ctx, key, tt)
}

// SetTaskStatus toggles between open and closed tasks and reloads the
// task feed.
func (c *Controller) SetTaskStatus(ctx context.Context, status catalog.TaskStatus) error {
	c.mu.Lock()
	key := c.state.Key
	c.mu.Unlock()
	key.TaskStatus = status
	return c.switchTo(ctx, key, catalog.ThreadTask)
}

func (c *Controller) switchTo(ctx context.Context, key Key, tt catalog.ThreadType) error {
	filter := DefaultFilter(tt, key.Search)
	c.mu.Lock()
	c.state = Reduce(c.state, KeyChanged{Key: key, ThreadType: tt, Filter: filter})
	c.mu.Unlock()
	return c.Load(ctx, tt, "", filter)
}

// SetFilter changes the feed filter and reloads from the first page.
func (c *Controller) SetFilter(ctx context.Context, filter catalog.FeedFilter) error {
	c.mu.Lock()
	c.state = Reduce(c.state, FilterChanged{Filter: filter})
	tt := c.state.ThreadType
	c.mu.Unlock()
	if tt == "" {
		tt = catalog.ThreadConversation
	}
	return c.Load(ctx, tt, "", filter)
}

// LoadMore fetches the page after the current cursor. It does nothing
// when there is no further page or a request is in flight.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	s := c.state
	c.mu.Unlock()
	if s.Loading || s.Paging.After == "" {
		return nil
	}
	return c.Load(ctx, s.ThreadType, s.Paging.After, s.Filter)
}

// Retry reissues a fresh load of the current feed when its latest request
// failed. It does nothing otherwise.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	s := c.state
	c.mu.Unlock()
	if !s.Failed || s.Loading {
		return nil
	}
	tt := s.ThreadType
	if tt == "" {
		tt = ThreadTypeForTab(s.Key.Tab)
	}
	return c.Load(ctx, tt, "", s.Filter)
}

// Load fetches one page of the feed. An empty after is a fresh load that
// replaces the list; otherwise the page is appended in server order. On
// failure a toast is shown and the previous state is kept.
func (c *Controller) Load(ctx context.Context, tt catalog.ThreadType, after string, filter catalog.FeedFilter) error {
	if filter == "" {
		filter = catalog.FilterAll
	}

	c.mu.Lock()
	if c.userID == "" {
		c.mu.Unlock()
		return ErrNoUser
	}
	if after == "" {
		c.state = Reduce(c.state, Cleared{})
	}
	c.gen++
	gen := c.gen
	q := catalog.FeedQuery{
		UserID: c.userID,
		Filter: filter,
		After:  after,
		Type:   tt,
	}
	if tt == catalog.ThreadTask {
		q.TaskStatus = c.state.TaskStatus()
	}
	c.state = Reduce(c.state, RequestIssued{Gen: gen})
	c.mu.Unlock()

	failed := true
	defer func() { c.apply(Settled{Gen: gen, Failed: failed}) }()

	page, err := c.src.Feed(ctx, q)
	if err == nil && page == nil {
		err = catalog.ErrUnexpectedResponse
	}
	if err != nil {
		if c.current(gen) {
			c.notifier.Error(err, msgFetchError)
		}
		c.logger.Error("load feed",
			slog.String("type", string(tt)),
			slog.String("after", after),
			slog.Uint64("gen", gen),
			slog.Any("err", err),
		)
		return fmt.Errorf("load feed: %w", err)
	}

	failed = false
	if !c.apply(PageLoaded{Gen: gen, Append: after != "", Page: *page}) {
		c.logger.Debug("discarding superseded feed page",
			slog.Uint64("gen", gen),
			slog.String("after", after),
		)
	}
	return nil
}

// apply reduces ev into the state. For PageLoaded it reports whether the
// page was accepted.
func (c *Controller) apply(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pl, ok := ev.(PageLoaded); ok && pl.Gen != c.state.Issued {
		return false
	}
	c.state = Reduce(c.state, ev)
	return true
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Issued == gen
}

func (c *Controller) thread(id string) (catalog.Thread, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.state.Threads, id); i >= 0 {
		return c.state.Threads[i], true
	}
	return catalog.Thread{}, false
}

// Post replies to a thread as the session user. The echoed thread replaces
// the local one with only its last RecentPosts posts.
func (c *Controller) Post(ctx context.Context, threadID, message string) error {
	u := c.session.User()
	if u == nil {
		c.notifier.Error(ErrNotLoggedIn, msgPostError)
		return ErrNotLoggedIn
	}
	res, err := c.src.PostToThread(ctx, threadID, catalog.Post{Message: message, From: u.Name})
	if err == nil && res == nil {
		err = catalog.ErrUnexpectedResponse
	}
	if err != nil {
		c.notifier.Error(err, msgPostError)
		c.logger.Error("post to thread", slog.String("thread", threadID), slog.Any("err", err))
		return fmt.Errorf("post to thread %s: %w", threadID, err)
	}
	c.apply(ThreadPosted{Thread: *res})
	return nil
}

// UpdateMessage edits the message of a thread (isThread) or of one of its
// posts, sending only the changed fields.
func (c *Controller) UpdateMessage(ctx context.Context, threadID, postID string, isThread bool, message string) error {
	t, ok := c.thread(threadID)
	if !ok {
		return ErrUnknownThread
	}

	if isThread {
		before := t
		before.Posts = nil
		after := before
		after.Message = message
		patch, err := catalog.Diff(before, after)
		if err != nil || catalog.EmptyPatch(patch) {
			return err
		}
		res, err := c.src.PatchThread(ctx, threadID, patch)
		if err == nil && res == nil {
			err = catalog.ErrUnexpectedResponse
		}
		if err != nil {
			c.notifier.Error(err, msgUpdateError)
			return fmt.Errorf("patch thread %s: %w", threadID, err)
		}
		c.apply(ThreadUpdated{Thread: *res})
		return nil
	}

	i := slices.IndexFunc(t.Posts, func(p catalog.Post) bool { return p.ID == postID })
	if i < 0 {
		return fmt.Errorf("post %s: %w", postID, catalog.ErrNotFound)
	}
	before := t.Posts[i]
	after := before
	after.Message = message
	patch, err := catalog.Diff(before, after)
	if err != nil || catalog.EmptyPatch(patch) {
		return err
	}
	res, err := c.src.PatchPost(ctx, threadID, postID, patch)
	if err == nil && res == nil {
		err = catalog.ErrUnexpectedResponse
	}
	if err != nil {
		c.notifier.Error(err, msgUpdateError)
		return fmt.Errorf("patch post %s: %w", postID, err)
	}
	c.apply(PostUpdated{ThreadID: threadID, Post: *res})
	return nil
}

// Delete removes a whole thread (isThread) or one post, after which the
// thread's posts are refreshed from the server.
func (c *Controller) Delete(ctx context.Context, threadID, postID string, isThread bool) error {
	if isThread {
		if err := c.src.DeleteThread(ctx, threadID); err != nil {
			c.notifier.Error(err, msgDeleteError)
			return fmt.Errorf("delete thread %s: %w", threadID, err)
		}
		c.apply(ThreadRemoved{ThreadID: threadID})
		return nil
	}

	if err := c.src.DeletePost(ctx, threadID, postID); err != nil {
		c.notifier.Error(err, msgDeleteError)
		return fmt.Errorf("delete post %s: %w", postID, err)
	}
	t, err := c.src.Thread(ctx, threadID)
	if err == nil && t == nil {
		err = catalog.ErrUnexpectedResponse
	}
	if err != nil {
		c.notifier.Error(err, msgFetchError)
		return fmt.Errorf("refresh thread %s: %w", threadID, err)
	}
	c.apply(PostsRefreshed{Thread: *t})
	return nil
}
