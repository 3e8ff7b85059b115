// Package feed implements the activity-feed pagination controller of the
// user page: cursor paging, incremental merges and the tab/thread-type
// state machine.
//
// All state changes go through Reduce, a pure function over State. The
// Controller only issues requests and feeds their outcomes back as events.
package feed

import (
	"net/url"
	"slices"
	"strings"

	"github.com/GoCodeAlone/metacat/catalog"
)

// RecentPosts is how many posts of a thread are kept locally after a
// post-create echo or a post refresh.
const RecentPosts = 3

// TabTasks is the user-page tab that lists Task threads.
const TabTasks = "tasks"

// Key identifies the feed being shown. Any change of Key resets the feed.
type Key struct {
	Username   string
	Tab        string
	Search     string // raw navigation query, e.g. "feedFilter=MENTIONS"
	TaskStatus catalog.TaskStatus
}

// State is the feed as displayed.
type State struct {
	Key        Key
	ThreadType catalog.ThreadType
	Filter     catalog.FeedFilter
	Threads    []catalog.Thread
	Paging     catalog.Paging
	Loading    bool
	// Failed is set when the latest request failed.
	Failed bool
	// Issued is the generation of the most recently issued request. Only
	// its response is applied.
	Issued uint64
}

// TaskStatus returns the task status the feed queries with.
func (s State) TaskStatus() catalog.TaskStatus {
	if s.Key.TaskStatus == "" {
		return catalog.TaskOpen
	}
	return s.Key.TaskStatus
}

// ThreadTypeForTab maps a user-page tab onto the thread type it lists.
func ThreadTypeForTab(tab string) catalog.ThreadType {
	if tab == TabTasks {
		return catalog.ThreadTask
	}
	return catalog.ThreadConversation
}

// DefaultFilter returns the filter a fresh feed starts with: an explicit
// feedFilter in the navigation query, else ALL for tasks and OWNER for
// conversations.
func DefaultFilter(tt catalog.ThreadType, search string) catalog.FeedFilter {
	if q, err := url.ParseQuery(strings.TrimPrefix(search, "?")); err == nil {
		if f, ok := catalog.ParseFeedFilter(q.Get("feedFilter")); ok {
			return f
		}
	}
	if tt == catalog.ThreadConversation {
		return catalog.FilterOwner
	}
	return catalog.FilterAll
}

// Event is an input to Reduce.
type Event interface{ event() }

// Reset empties the feed and supersedes every request up to Gen.
type Reset struct {
	Gen uint64
}

// KeyChanged switches the feed to a new identity and empties it.
type KeyChanged struct {
	Key        Key
	ThreadType catalog.ThreadType
	Filter     catalog.FeedFilter
}

// FilterChanged switches the filter and empties the feed.
type FilterChanged struct {
	Filter catalog.FeedFilter
}

// Cleared empties the thread list ahead of a fresh load.
type Cleared struct{}

// RequestIssued marks generation Gen as the latest request.
type RequestIssued struct {
	Gen uint64
}

// PageLoaded carries a response. Append is false for a fresh load.
type PageLoaded struct {
	Gen    uint64
	Append bool
	Page   catalog.FeedPage
}

// Settled marks the end of request Gen, successful or not.
type Settled struct {
	Gen    uint64
	Failed bool
}

// ThreadPosted merges the server echo of a post-create.
type ThreadPosted struct {
	Thread catalog.Thread
}

// ThreadUpdated merges a patched thread, keeping the local posts.
type ThreadUpdated struct {
	Thread catalog.Thread
}

// ThreadRemoved drops a thread.
type ThreadRemoved struct {
	ThreadID string
}

// PostsRefreshed replaces the posts of a thread after a post was deleted.
type PostsRefreshed struct {
	Thread catalog.Thread
}

// PostUpdated replaces a single post.
type PostUpdated struct {
	ThreadID string
	Post     catalog.Post
}

func (Reset) event()          {}
func (KeyChanged) event()     {}
func (FilterChanged) event()  {}
func (Cleared) event()        {}
func (RequestIssued) event()  {}
func (PageLoaded) event()     {}
func (Settled) event()        {}
func (ThreadPosted) event()   {}
func (ThreadUpdated) event()  {}
func (ThreadRemoved) event()  {}
func (PostsRefreshed) event() {}
func (PostUpdated) event()    {}

// Reduce returns the state that follows s after ev. It never mutates s:
// thread slices are copied before they change, so earlier snapshots stay
// valid.
func Reduce(s State, ev Event) State {
	switch ev := ev.(type) {
	case Reset:
		return State{Issued: max(s.Issued, ev.Gen)}

	case KeyChanged:
		s.Key = ev.Key
		s.ThreadType = ev.ThreadType
		s.Filter = ev.Filter
		s.Threads = nil
		s.Paging = catalog.Paging{}
		s.Failed = false

	case FilterChanged:
		s.Filter = ev.Filter
		s.Threads = nil
		s.Paging = catalog.Paging{}

	case Cleared:
		s.Threads = nil

	case RequestIssued:
		if ev.Gen > s.Issued {
			s.Issued = ev.Gen
		}
		s.Loading = true

	case PageLoaded:
		if ev.Gen != s.Issued {
			return s
		}
		s.Paging = ev.Page.Paging
		if ev.Append {
			s.Threads = append(slices.Clip(s.Threads), ev.Page.Data...)
		} else {
			s.Threads = slices.Clone(ev.Page.Data)
		}

	case Settled:
		if ev.Gen == s.Issued {
			s.Loading = false
			s.Failed = ev.Failed
		}

	case ThreadPosted:
		s.Threads = replaceThread(s.Threads, ev.Thread.ID, func(catalog.Thread) catalog.Thread {
			t := ev.Thread
			t.Posts = lastPosts(t.Posts)
			return t
		})

	case ThreadUpdated:
		s.Threads = replaceThread(s.Threads, ev.Thread.ID, func(old catalog.Thread) catalog.Thread {
			t := ev.Thread
			t.Posts = old.Posts
			t.PostsCount = old.PostsCount
			return t
		})

	case ThreadRemoved:
		if i := indexOf(s.Threads, ev.ThreadID); i >= 0 {
			s.Threads = slices.Delete(slices.Clone(s.Threads), i, i+1)
		}

	case PostsRefreshed:
		s.Threads = replaceThread(s.Threads, ev.Thread.ID, func(old catalog.Thread) catalog.Thread {
			old.Posts = lastPosts(ev.Thread.Posts)
			old.PostsCount = ev.Thread.PostsCount
			return old
		})

	case PostUpdated:
		s.Threads = replaceThread(s.Threads, ev.ThreadID, func(old catalog.Thread) catalog.Thread {
			posts := slices.Clone(old.Posts)
			for i := range posts {
				if posts[i].ID == ev.Post.ID {
					posts[i] = ev.Post
				}
			}
			old.Posts = posts
			return old
		})
	}
	return s
}

func indexOf(threads []catalog.Thread, id string) int {
	return slices.IndexFunc(threads, func(t catalog.Thread) bool { return t.ID == id })
}

// replaceThread returns a copy of threads with the thread id rewritten by
// fn, or threads itself when id is absent.
func replaceThread(threads []catalog.Thread, id string, fn func(catalog.Thread) catalog.Thread) []catalog.Thread {
	i := indexOf(threads, id)
	if i < 0 {
		return threads
	}
	out := slices.Clone(threads)
	out[i] = fn(out[i])
	return out
}

func lastPosts(posts []catalog.Post) []catalog.Post {
	if len(posts) > RecentPosts {
		posts = posts[len(posts)-RecentPosts:]
	}
	return slices.Clone(posts)
}
