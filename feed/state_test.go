package feed

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GoCodeAlone/metacat/catalog"
)

func threads(ids ...string) []catalog.Thread {
	out := make([]catalog.Thread, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.Thread{ID: id, Message: "msg " + id})
	}
	return out
}

func ids(ts []catalog.Thread) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestThreadTypeForTab(t *testing.T) {
	if got := ThreadTypeForTab("tasks"); got != catalog.ThreadTask {
		t.Errorf("tasks -> %s", got)
	}
	for _, tab := range []string{"", "activity", "mydata", "following"} {
		if got := ThreadTypeForTab(tab); got != catalog.ThreadConversation {
			t.Errorf("%q -> %s, want Conversation", tab, got)
		}
	}
}

func TestDefaultFilter(t *testing.T) {
	cases := []struct {
		tt     catalog.ThreadType
		search string
		want   catalog.FeedFilter
	}{
		{catalog.ThreadConversation, "", catalog.FilterOwner},
		{catalog.ThreadTask, "", catalog.FilterAll},
		{catalog.ThreadConversation, "feedFilter=MENTIONS", catalog.FilterMentions},
		{catalog.ThreadTask, "?feedFilter=FOLLOWS", catalog.FilterFollows},
		{catalog.ThreadTask, "feedFilter=", catalog.FilterAll},
		{catalog.ThreadConversation, "feedFilter=bogus", catalog.FilterOwner},
	}
	for _, c := range cases {
		if got := DefaultFilter(c.tt, c.search); got != c.want {
			t.Errorf("DefaultFilter(%s, %q) = %s, want %s", c.tt, c.search, got, c.want)
		}
	}
}

func TestReduce_AppendKeepsServerOrder(t *testing.T) {
	s := Reduce(State{}, RequestIssued{Gen: 1})
	s = Reduce(s, PageLoaded{Gen: 1, Page: catalog.FeedPage{Data: threads("a", "b"), Paging: catalog.Paging{After: "2"}}})
	s = Reduce(s, Settled{Gen: 1})
	s = Reduce(s, RequestIssued{Gen: 2})
	s = Reduce(s, PageLoaded{Gen: 2, Append: true, Page: catalog.FeedPage{Data: threads("c")}})
	s = Reduce(s, Settled{Gen: 2})

	if diff := cmp.Diff([]string{"a", "b", "c"}, ids(s.Threads)); diff != "" {
		t.Errorf("threads (-want +got):\n%s", diff)
	}
	if s.Paging.After != "" || s.Loading {
		t.Errorf("state = %+v, want no cursor and not loading", s)
	}
}

func TestReduce_FailedTracksLatestRequest(t *testing.T) {
	s := Reduce(State{}, RequestIssued{Gen: 1})
	s = Reduce(s, RequestIssued{Gen: 2})
	s = Reduce(s, Settled{Gen: 1, Failed: true})
	if s.Failed {
		t.Error("a superseded failure must not mark the feed failed")
	}
	s = Reduce(s, Settled{Gen: 2, Failed: true})
	if !s.Failed || s.Loading {
		t.Errorf("state = %+v, want failed and not loading", s)
	}
	s = Reduce(s, KeyChanged{Key: Key{Tab: TabTasks}, ThreadType: catalog.ThreadTask})
	if s.Failed {
		t.Error("a key change must clear the failure")
	}
}

func TestReduce_StalePageIgnored(t *testing.T) {
	s := Reduce(State{}, RequestIssued{Gen: 1})
	s = Reduce(s, RequestIssued{Gen: 2})
	s = Reduce(s, PageLoaded{Gen: 1, Page: catalog.FeedPage{Data: threads("old")}})
	s = Reduce(s, Settled{Gen: 1})

	if len(s.Threads) != 0 {
		t.Errorf("stale page applied: %v", ids(s.Threads))
	}
	if !s.Loading {
		t.Error("stale Settled must not clear Loading of the newer request")
	}
}

func TestReduce_ResetSupersedesInFlight(t *testing.T) {
	s := Reduce(State{}, RequestIssued{Gen: 1})
	s = Reduce(s, Reset{Gen: 2})
	s = Reduce(s, PageLoaded{Gen: 1, Page: catalog.FeedPage{Data: threads("x")}})

	if len(s.Threads) != 0 || s.Issued != 2 || s.Loading {
		t.Errorf("state after reset = %+v", s)
	}
}

func TestReduce_KeyChangeClears(t *testing.T) {
	s := State{Threads: threads("a"), Paging: catalog.Paging{After: "1"}}
	s = Reduce(s, KeyChanged{Key: Key{Tab: "tasks"}, ThreadType: catalog.ThreadTask, Filter: catalog.FilterAll})

	if len(s.Threads) != 0 || s.Paging.After != "" {
		t.Errorf("state = %+v, want empty feed", s)
	}
	if s.ThreadType != catalog.ThreadTask || s.Filter != catalog.FilterAll {
		t.Errorf("type/filter = %s/%s", s.ThreadType, s.Filter)
	}
	if s.TaskStatus() != catalog.TaskOpen {
		t.Errorf("TaskStatus = %s, want Open", s.TaskStatus())
	}
}

func TestReduce_ThreadPostedKeepsRecentPosts(t *testing.T) {
	s := State{Threads: threads("a", "b")}
	echo := catalog.Thread{ID: "b", Message: "msg b", PostsCount: 5}
	for _, m := range []string{"1", "2", "3", "4", "5"} {
		echo.Posts = append(echo.Posts, catalog.Post{ID: m, Message: m})
	}

	next := Reduce(s, ThreadPosted{Thread: echo})

	got := next.Threads[1]
	var msgs []string
	for _, p := range got.Posts {
		msgs = append(msgs, p.Message)
	}
	if diff := cmp.Diff([]string{"3", "4", "5"}, msgs); diff != "" {
		t.Errorf("posts (-want +got):\n%s", diff)
	}
	if got.PostsCount != 5 {
		t.Errorf("PostsCount = %d, want 5", got.PostsCount)
	}
	if len(s.Threads[1].Posts) != 0 {
		t.Error("Reduce mutated its input")
	}
}

func TestReduce_ThreadUpdatedKeepsPosts(t *testing.T) {
	s := State{Threads: []catalog.Thread{{
		ID: "a", Message: "old", PostsCount: 1,
		Posts: []catalog.Post{{ID: "p1", Message: "reply"}},
	}}}

	s = Reduce(s, ThreadUpdated{Thread: catalog.Thread{ID: "a", Message: "new"}})

	want := []catalog.Thread{{
		ID: "a", Message: "new", PostsCount: 1,
		Posts: []catalog.Post{{ID: "p1", Message: "reply"}},
	}}
	if diff := cmp.Diff(want, s.Threads); diff != "" {
		t.Errorf("threads (-want +got):\n%s", diff)
	}
}

func TestReduce_RemoveAndPostEdits(t *testing.T) {
	s := State{Threads: []catalog.Thread{
		{ID: "a"},
		{ID: "b", Posts: []catalog.Post{{ID: "p1", Message: "x"}, {ID: "p2", Message: "y"}}, PostsCount: 2},
	}}

	s = Reduce(s, PostUpdated{ThreadID: "b", Post: catalog.Post{ID: "p2", Message: "edited"}})
	if s.Threads[1].Posts[1].Message != "edited" {
		t.Errorf("post not updated: %+v", s.Threads[1].Posts)
	}

	s = Reduce(s, PostsRefreshed{Thread: catalog.Thread{ID: "b", Posts: []catalog.Post{{ID: "p2", Message: "edited"}}, PostsCount: 1}})
	if len(s.Threads[1].Posts) != 1 || s.Threads[1].PostsCount != 1 {
		t.Errorf("posts not refreshed: %+v", s.Threads[1])
	}

	s = Reduce(s, ThreadRemoved{ThreadID: "a"})
	if diff := cmp.Diff([]string{"b"}, ids(s.Threads)); diff != "" {
		t.Errorf("threads (-want +got):\n%s", diff)
	}

	// Unknown ids leave the state alone.
	s = Reduce(s, ThreadRemoved{ThreadID: "zzz"})
	if len(s.Threads) != 1 {
		t.Errorf("threads = %v", ids(s.Threads))
	}
}
