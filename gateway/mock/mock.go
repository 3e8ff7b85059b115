// Package mock provides an in-memory catalog gateway for tests and the
// offline demo.
package mock

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/metacat/catalog"
)

const defaultFeedPageSize = 10

// Call records a single gateway invocation.
type Call struct {
	Method string
	Arg    string
}

// Entity is a searchable catalog entity.
type Entity struct {
	Index     string
	Source    map[string]any
	OwnerID   string
	Followers []string
}

// Gateway implements catalog.Gateway on in-memory fixtures.
// It is safe for concurrent use.
type Gateway struct {
	mu       sync.Mutex
	users    map[string]*catalog.User // by name
	current  string
	threads  map[string][]*catalog.Thread // by user ID, oldest first
	entities []Entity
	services map[string]*catalog.Service // by category + "/" + fqn
	calls    []Call

	// FeedPageSize is the number of threads per feed page.
	FeedPageSize int

	// Errors forces a method (by name, e.g. "Feed") to fail.
	Errors map[string]error

	// EmptyResponses makes a method (by name) answer with no record.
	EmptyResponses map[string]bool

	// BeforeFeed, when set, runs before a feed page is returned. Tests use
	// it to hold responses back and release them out of order.
	BeforeFeed func(ctx context.Context, q catalog.FeedQuery) error

	// BeforeSearch, when set, runs before a search response is returned.
	BeforeSearch func(ctx context.Context, q catalog.SearchQuery) error
}

// New creates an empty Gateway.
func New() *Gateway {
	return &Gateway{
		users:          make(map[string]*catalog.User),
		threads:        make(map[string][]*catalog.Thread),
		services:       make(map[string]*catalog.Service),
		FeedPageSize:   defaultFeedPageSize,
		Errors:         make(map[string]error),
		EmptyResponses: make(map[string]bool),
	}
}

var _ catalog.Gateway = (*Gateway)(nil)

// AddUser stores u, assigning an ID when it has none.
func (g *Gateway) AddUser(u catalog.User) *catalog.User {
	g.mu.Lock()
	defer g.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	g.users[u.Name] = &u
	return &u
}

// SetLoggedIn names the user LoggedInUser returns.
func (g *Gateway) SetLoggedIn(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current = name
}

// AddThread appends t to the feed of the user with the given ID.
func (g *Gateway) AddThread(userID string, t catalog.Thread) *catalog.Thread {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Type == "" {
		t.Type = catalog.ThreadConversation
	}
	for i := range t.Posts {
		if t.Posts[i].ID == "" {
			t.Posts[i].ID = uuid.NewString()
		}
	}
	t.PostsCount = len(t.Posts)
	g.threads[userID] = append(g.threads[userID], &t)
	return &t
}

// AddEntity makes e searchable.
func (g *Gateway) AddEntity(e Entity) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e.Source == nil {
		e.Source = map[string]any{}
	}
	if _, ok := e.Source["id"]; !ok {
		e.Source["id"] = uuid.NewString()
	}
	g.entities = append(g.entities, e)
}

// AddService stores svc under category.
func (g *Gateway) AddService(category string, svc catalog.Service) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	if svc.FullyQualifiedName == "" {
		svc.FullyQualifiedName = svc.Name
	}
	g.services[category+"/"+svc.FullyQualifiedName] = &svc
}

// Calls returns the invocations recorded so far.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// CallsTo returns the invocations of method.
func (g *Gateway) CallsTo(method string) []Call {
	var out []Call
	for _, c := range g.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (g *Gateway) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

// record logs a call and returns the injected empty flag and error for it.
// Must be called with g.mu held.
func (g *Gateway) record(method, arg string) (empty bool, err error) {
	g.calls = append(g.calls, Call{Method: method, Arg: arg})
	return g.EmptyResponses[method], g.Errors[method]
}

// --- users ---

// UserByName returns a copy of the named user.
func (g *Gateway) UserByName(_ context.Context, name string, _ []string) (*catalog.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if empty, err := g.record("UserByName", name); err != nil {
		return nil, err
	} else if empty {
		return nil, catalog.ErrUnexpectedResponse
	}
	u, ok := g.users[name]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", name, catalog.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

// LoggedInUser returns the user set with SetLoggedIn.
func (g *Gateway) LoggedInUser(_ context.Context) (*catalog.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.record("LoggedInUser", g.current); err != nil {
		return nil, err
	}
	u, ok := g.users[g.current]
	if !ok {
		return nil, fmt.Errorf("logged in user: %w", catalog.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

// PatchUser merges patch into the stored user.
func (g *Gateway) PatchUser(_ context.Context, id string, patch []byte) (*catalog.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if empty, err := g.record("PatchUser", id); err != nil {
		return nil, err
	} else if empty {
		return nil, catalog.ErrUnexpectedResponse
	}
	for name, u := range g.users {
		if u.ID != id {
			continue
		}
		var updated catalog.User
		if err := catalog.Apply(u, patch, &updated); err != nil {
			return nil, err
		}
		updated.ID = id
		delete(g.users, name)
		g.users[updated.Name] = &updated
		cp := updated
		return &cp, nil
	}
	return nil, fmt.Errorf("user %s: %w", id, catalog.ErrNotFound)
}

// --- feed ---

// Feed pages through the threads of q.UserID, newest first. The cursor is
// the offset of the next page.
func (g *Gateway) Feed(ctx context.Context, q catalog.FeedQuery) (*catalog.FeedPage, error) {
	g.mu.Lock()
	empty, err := g.record("Feed", q.After)
	page := g.feedPage(q)
	hook := g.BeforeFeed
	g.mu.Unlock()

	if hook != nil {
		if herr := hook(ctx, q); herr != nil {
			return nil, herr
		}
	}
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, catalog.ErrUnexpectedResponse
	}
	return page, nil
}

// feedPage must be called with g.mu held.
func (g *Gateway) feedPage(q catalog.FeedQuery) *catalog.FeedPage {
	owner := g.userByID(q.UserID)
	var matched []catalog.Thread
	all := g.threads[q.UserID]
	for i := len(all) - 1; i >= 0; i-- {
		t := all[i]
		if q.Type != "" && t.Type != q.Type {
			continue
		}
		if q.Type == catalog.ThreadTask && q.TaskStatus != "" {
			if t.Task == nil || t.Task.Status != q.TaskStatus {
				continue
			}
		}
		if !matchesFilter(t, q.Filter, owner) {
			continue
		}
		matched = append(matched, cloneThread(t))
	}

	size := g.FeedPageSize
	if size <= 0 {
		size = defaultFeedPageSize
	}
	offset, _ := strconv.Atoi(q.After)
	if offset < 0 || offset > len(matched) {
		offset = len(matched)
	}
	end := min(offset+size, len(matched))

	page := &catalog.FeedPage{
		Data:   matched[offset:end],
		Paging: catalog.Paging{Total: len(matched)},
	}
	if page.Data == nil {
		page.Data = []catalog.Thread{}
	}
	if end < len(matched) {
		page.Paging.After = strconv.Itoa(end)
	}
	if offset > 0 {
		page.Paging.Before = strconv.Itoa(max(offset-size, 0))
	}
	return page
}

func matchesFilter(t *catalog.Thread, f catalog.FeedFilter, owner *catalog.User) bool {
	if owner == nil {
		return f == "" || f == catalog.FilterAll
	}
	switch f {
	case catalog.FilterOwner:
		return t.EntityOwner == owner.Name
	case catalog.FilterMentions:
		return strings.Contains(t.Message, "@"+owner.Name)
	case catalog.FilterFollows:
		for _, ref := range owner.Follows {
			if ref.FullyQualifiedName != "" && strings.Contains(t.About, ref.FullyQualifiedName) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Thread returns a thread with all of its posts.
func (g *Gateway) Thread(_ context.Context, id string) (*catalog.Thread, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if empty, err := g.record("Thread", id); err != nil {
		return nil, err
	} else if empty {
		return nil, catalog.ErrUnexpectedResponse
	}
	t := g.threadByID(id)
	if t == nil {
		return nil, fmt.Errorf("thread %s: %w", id, catalog.ErrNotFound)
	}
	cp := cloneThread(t)
	return &cp, nil
}

// PostToThread appends post and echoes the full thread.
func (g *Gateway) PostToThread(_ context.Context, threadID string, post catalog.Post) (*catalog.Thread, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if empty, err := g.record("PostToThread", threadID); err != nil {
		return nil, err
	} else if empty {
		return nil, catalog.ErrUnexpectedResponse
	}
	t := g.threadByID(threadID)
	if t == nil {
		return nil, fmt.Errorf("thread %s: %w", threadID, catalog.ErrNotFound)
	}
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.PostTs == 0 {
		post.PostTs = time.Now().UnixMilli()
	}
	t.Posts = append(t.Posts, post)
	t.PostsCount = len(t.Posts)
	cp := cloneThread(t)
	return &cp, nil
}

// PatchThread merges patch into a thread.
func (g *Gateway) PatchThread(_ context.Context, threadID string, patch []byte) (*catalog.Thread, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if empty, err := g.record("PatchThread", threadID); err != nil {
		return nil, err
	} else if empty {
		return nil, catalog.ErrUnexpectedResponse
	}
	t := g.threadByID(threadID)
	if t == nil {
		return nil, fmt.Errorf("thread %s: %w", threadID, catalog.ErrNotFound)
	}
	var updated catalog.Thread
	if err := catalog.Apply(t, patch, &updated); err != nil {
		return nil, err
	}
	updated.ID = threadID
	*t = updated
	cp := cloneThread(t)
	return &cp, nil
}

// PatchPost merges patch into a post.
func (g *Gateway) PatchPost(_ context.Context, threadID, postID string, patch []byte) (*catalog.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if empty, err := g.record("PatchPost", threadID+"/"+postID); err != nil {
		return nil, err
	} else if empty {
		return nil, catalog.ErrUnexpectedResponse
	}
	t := g.threadByID(threadID)
	if t == nil {
		return nil, fmt.Errorf("thread %s: %w", threadID, catalog.ErrNotFound)
	}
	for i := range t.Posts {
		if t.Posts[i].ID != postID {
			continue
		}
		var updated catalog.Post
		if err := catalog.Apply(t.Posts[i], patch, &updated); err != nil {
			return nil, err
		}
		updated.ID = postID
		t.Posts[i] = updated
		return &updated, nil
	}
	return nil, fmt.Errorf("post %s: %w", postID, catalog.ErrNotFound)
}

// DeleteThread removes a thread.
func (g *Gateway) DeleteThread(_ context.Context, threadID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.record("DeleteThread", threadID); err != nil {
		return err
	}
	for uid, list := range g.threads {
		for i, t := range list {
			if t.ID == threadID {
				g.threads[uid] = slices.Delete(list, i, i+1)
				return nil
			}
		}
	}
	return fmt.Errorf("thread %s: %w", threadID, catalog.ErrNotFound)
}

// DeletePost removes a post from a thread.
func (g *Gateway) DeletePost(_ context.Context, threadID, postID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.record("DeletePost", threadID+"/"+postID); err != nil {
		return err
	}
	t := g.threadByID(threadID)
	if t == nil {
		return fmt.Errorf("thread %s: %w", threadID, catalog.ErrNotFound)
	}
	for i := range t.Posts {
		if t.Posts[i].ID == postID {
			t.Posts = slices.Delete(t.Posts, i, i+1)
			t.PostsCount = len(t.Posts)
			return nil
		}
	}
	return fmt.Errorf("post %s: %w", postID, catalog.ErrNotFound)
}

// --- search ---

// Search understands "owner.id:<id>", "followers:<id>", "*" and plain
// substrings of name or fully qualified name.
func (g *Gateway) Search(ctx context.Context, q catalog.SearchQuery) (*catalog.SearchResponse, error) {
	g.mu.Lock()
	empty, err := g.record("Search", q.Query)
	res := g.search(q)
	hook := g.BeforeSearch
	g.mu.Unlock()

	if hook != nil {
		if herr := hook(ctx, q); herr != nil {
			return nil, herr
		}
	}
	if err != nil {
		return nil, err
	}
	if empty {
		return nil, catalog.ErrUnexpectedResponse
	}
	return res, nil
}

// search must be called with g.mu held.
func (g *Gateway) search(q catalog.SearchQuery) *catalog.SearchResponse {
	indexes := map[string]bool{}
	for _, idx := range strings.Split(q.Index, ",") {
		if idx = strings.TrimSpace(idx); idx != "" {
			indexes[idx] = true
		}
	}

	var hits []catalog.SearchHit
	counts := map[string]int{}
	for _, e := range g.entities {
		if len(indexes) > 0 && !indexes[e.Index] {
			continue
		}
		if !matchesQuery(e, q.Query) {
			continue
		}
		counts[e.Index]++
		hits = append(hits, catalog.SearchHit{
			Index:  e.Index,
			ID:     fmt.Sprint(e.Source["id"]),
			Source: e.Source,
		})
	}

	total := len(hits)
	from := min(q.From(), total)
	end := total
	if q.Size > 0 {
		end = min(from+q.Size, total)
	}

	res := &catalog.SearchResponse{
		Hits: catalog.SearchHits{
			Total: catalog.SearchTotal{Value: total, Relation: "eq"},
			Hits:  hits[from:end],
		},
		Aggregations: map[string]catalog.Aggregation{},
	}
	if res.Hits.Hits == nil {
		res.Hits.Hits = []catalog.SearchHit{}
	}
	var buckets []catalog.Bucket
	for idx, n := range counts {
		buckets = append(buckets, catalog.Bucket{Key: idx, DocCount: n})
	}
	slices.SortFunc(buckets, func(a, b catalog.Bucket) int { return strings.Compare(a.Key, b.Key) })
	res.Aggregations["EntityType"] = catalog.Aggregation{Buckets: buckets}
	return res
}

func matchesQuery(e Entity, q string) bool {
	q = strings.TrimSpace(q)
	switch {
	case q == "" || q == "*":
		return true
	case strings.HasPrefix(q, "owner.id:"):
		return e.OwnerID == strings.TrimPrefix(q, "owner.id:")
	case strings.HasPrefix(q, "followers:"):
		return slices.Contains(e.Followers, strings.TrimPrefix(q, "followers:"))
	}
	needle := strings.ToLower(q)
	for _, key := range []string{"name", "fullyQualifiedName", "displayName"} {
		if s, ok := e.Source[key].(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// --- services ---

// ServiceByFQN returns a stored service.
func (g *Gateway) ServiceByFQN(_ context.Context, category, fqn string, _ []string) (*catalog.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if empty, err := g.record("ServiceByFQN", category+"/"+fqn); err != nil {
		return nil, err
	} else if empty {
		return nil, catalog.ErrUnexpectedResponse
	}
	s, ok := g.services[category+"/"+fqn]
	if !ok {
		return nil, fmt.Errorf("service %s: %w", fqn, catalog.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

// UpdateService replaces a service, keyed by its name. The request
// replaces the stored owner too.
func (g *Gateway) UpdateService(_ context.Context, category string, svc *catalog.Service) (*catalog.Service, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if empty, err := g.record("UpdateService", category+"/"+svc.Name); err != nil {
		return nil, err
	} else if empty {
		return nil, catalog.ErrUnexpectedResponse
	}
	key := category + "/" + svc.Name
	updated := *svc
	if existing, ok := g.services[key]; ok {
		updated.ID = existing.ID
		updated.FullyQualifiedName = existing.FullyQualifiedName
	} else {
		updated.ID = uuid.NewString()
		updated.FullyQualifiedName = svc.Name
	}
	updated.UpdatedAt = time.Now().UnixMilli()
	g.services[key] = &updated
	cp := updated
	return &cp, nil
}

// --- helpers ---

// userByID must be called with g.mu held.
func (g *Gateway) userByID(id string) *catalog.User {
	for _, u := range g.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// threadByID must be called with g.mu held.
func (g *Gateway) threadByID(id string) *catalog.Thread {
	for _, list := range g.threads {
		for _, t := range list {
			if t.ID == id {
				return t
			}
		}
	}
	return nil
}

func cloneThread(t *catalog.Thread) catalog.Thread {
	cp := *t
	cp.Posts = slices.Clone(t.Posts)
	if t.Task != nil {
		task := *t.Task
		cp.Task = &task
	}
	return cp
}
