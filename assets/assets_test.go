package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/gateway/mock"
	"github.com/GoCodeAlone/metacat/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seedTables(gw *mock.Gateway, n int, ownerID string, followers ...string) {
	for i := range n {
		gw.AddEntity(mock.Entity{
			Index: "table_search_index",
			Source: map[string]any{
				"id":                 fmt.Sprintf("tbl-%s-%d", ownerID, i),
				"name":               fmt.Sprintf("table_%d", i),
				"fullyQualifiedName": fmt.Sprintf("sample.db.table_%d", i),
				"entityType":         "table",
			},
			OwnerID:   ownerID,
			Followers: followers,
		})
	}
}

func names(d catalog.AssetsData) []string {
	out := []string{}
	for _, e := range d.Data {
		out = append(out, e.Name)
	}
	return out
}

func TestKindParsing(t *testing.T) {
	for in, want := range map[string]Kind{"owned": Owned, "followed": Followed, "following": Followed} {
		got, ok := ParseKind(in)
		if !ok || got != want {
			t.Errorf("ParseKind(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseKind("mine"); ok {
		t.Error("ParseKind(mine) should fail")
	}
	if Followed.String() != "followed" {
		t.Errorf("String = %q", Followed.String())
	}
}

func TestLoader_EmptyResultIsExplicit(t *testing.T) {
	gw := mock.New()
	l := New(gw, Options{}, nil, nil)

	if err := l.SetUser(context.Background(), "u-1"); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	for _, k := range Kinds {
		got := l.Snapshot(k)
		want := catalog.AssetsData{Data: []catalog.EntitySummary{}, Total: 0, CurrPage: 1}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s (-want +got):\n%s", k, diff)
		}
		if got.Data == nil {
			t.Errorf("%s: Data is nil", k)
		}
	}
}

func TestLoader_AdminOwnsNothingFollowsOne(t *testing.T) {
	gw := mock.New()
	admin := gw.AddUser(catalog.User{Name: "admin", IsAdmin: true})
	seedTables(gw, 1, "someone-else", admin.ID)

	l := New(gw, Options{}, nil, nil)
	if err := l.SetUser(context.Background(), admin.ID); err != nil {
		t.Fatalf("SetUser: %v", err)
	}

	owned := l.Snapshot(Owned)
	if owned.Total != 0 || len(owned.Data) != 0 {
		t.Errorf("owned = %+v, want empty", owned)
	}
	followed := l.Snapshot(Followed)
	if followed.Total != 1 || len(followed.Data) != 1 {
		t.Fatalf("followed = %+v, want one entity", followed)
	}
	if followed.Data[0].FullyQualifiedName != "sample.db.table_0" {
		t.Errorf("FQN = %q", followed.Data[0].FullyQualifiedName)
	}
}

func TestLoader_QueryShape(t *testing.T) {
	gw := mock.New()
	var mu sync.Mutex
	var got []catalog.SearchQuery
	gw.BeforeSearch = func(_ context.Context, q catalog.SearchQuery) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, q)
		return nil
	}

	l := New(gw, Options{PageSize: 5, Index: "table_search_index"}, nil, nil)
	if err := l.SetUser(context.Background(), "u-1"); err != nil {
		t.Fatal(err)
	}

	byQuery := map[string]catalog.SearchQuery{}
	for _, q := range got {
		byQuery[q.Query] = q
	}
	want := map[string]catalog.SearchQuery{
		"owner.id:u-1":  {Query: "owner.id:u-1", Page: 1, Size: 5, Index: "table_search_index"},
		"followers:u-1": {Query: "followers:u-1", Page: 1, Size: 5, Index: "table_search_index"},
	}
	if diff := cmp.Diff(want, byQuery); diff != "" {
		t.Errorf("queries (-want +got):\n%s", diff)
	}
}

func TestLoader_PaginateFetchesOneKindOnly(t *testing.T) {
	gw := mock.New()
	seedTables(gw, 12, "u-1", "u-1")

	l := New(gw, Options{}, nil, nil)
	ctx := context.Background()
	if err := l.SetUser(ctx, "u-1"); err != nil {
		t.Fatal(err)
	}
	gw.ResetCalls()

	if err := l.Paginate(ctx, Owned, 3); err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	calls := gw.CallsTo("Search")
	if len(calls) != 1 || calls[0].Arg != "owner.id:u-1" {
		t.Fatalf("search calls = %+v, want one owned query", calls)
	}

	owned := l.Snapshot(Owned)
	if owned.CurrPage != 3 || owned.Total != 12 {
		t.Errorf("owned = page %d total %d", owned.CurrPage, owned.Total)
	}
	if diff := cmp.Diff([]string{"table_10", "table_11"}, names(owned)); diff != "" {
		t.Errorf("page 3 (-want +got):\n%s", diff)
	}
	if f := l.Snapshot(Followed); f.CurrPage != 1 || len(f.Data) != 5 {
		t.Errorf("followed changed: page %d, %d rows", f.CurrPage, len(f.Data))
	}

	// Same page again is not a change.
	gw.ResetCalls()
	if err := l.Paginate(ctx, Owned, 3); err != nil {
		t.Fatal(err)
	}
	if n := len(gw.CallsTo("Search")); n != 0 {
		t.Errorf("search calls = %d, want 0", n)
	}

	if err := l.Paginate(ctx, Followed, 2); err != nil {
		t.Fatal(err)
	}
	calls = gw.CallsTo("Search")
	if len(calls) != 1 || calls[0].Arg != "followers:u-1" {
		t.Errorf("search calls = %+v, want one followed query", calls)
	}
}

func TestLoader_FailureKeepsPreviousList(t *testing.T) {
	gw := mock.New()
	seedTables(gw, 3, "u-1")
	center := notify.NewCenter(nil)
	l := New(gw, Options{}, center, nil)
	ctx := context.Background()
	if err := l.SetUser(ctx, "u-1"); err != nil {
		t.Fatal(err)
	}

	gw.Errors["Search"] = errors.New("index unavailable")
	if err := l.Paginate(ctx, Owned, 2); err == nil {
		t.Fatal("expected error")
	}
	if got := l.Snapshot(Owned); len(got.Data) != 3 || got.Total != 3 {
		t.Errorf("owned = %+v, want previous rows", got)
	}

	active := center.Active()
	if len(active) != 1 || active[0].Message != "Error while fetching Owned Entities!" {
		t.Errorf("toasts = %+v", active)
	}
}

func TestLoader_RetryFetchesFailedListsOnly(t *testing.T) {
	gw := mock.New()
	seedTables(gw, 3, "u-1")
	l := New(gw, Options{}, nil, nil)
	ctx := context.Background()
	if err := l.SetUser(ctx, "u-1"); err != nil {
		t.Fatal(err)
	}

	gw.Errors["Search"] = errors.New("index unavailable")
	if err := l.Paginate(ctx, Owned, 2); err == nil {
		t.Fatal("expected error")
	}
	delete(gw.Errors, "Search")
	gw.ResetCalls()

	if err := l.Retry(ctx); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	calls := gw.CallsTo("Search")
	if len(calls) != 1 {
		t.Fatalf("expected one search, got %d", len(calls))
	}
	if got := l.Snapshot(Owned); got.CurrPage != 2 || len(got.Data) != 0 {
		t.Errorf("owned = %+v, want the empty second page", got)
	}

	gw.ResetCalls()
	if err := l.Retry(ctx); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if n := len(gw.CallsTo("Search")); n != 0 {
		t.Errorf("Retry without failures issued %d searches", n)
	}
}

func TestLoader_SupersededResponseDropped(t *testing.T) {
	gw := mock.New()
	seedTables(gw, 12, "u-1")
	l := New(gw, Options{}, nil, nil)
	ctx := context.Background()
	if err := l.SetUser(ctx, "u-1"); err != nil {
		t.Fatal(err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	gw.BeforeSearch = func(_ context.Context, q catalog.SearchQuery) error {
		if q.Page == 2 {
			entered <- struct{}{}
			<-release
		}
		return nil
	}

	errc := make(chan error, 1)
	go func() { errc <- l.Paginate(ctx, Owned, 2) }()
	<-entered
	if err := l.Paginate(ctx, Owned, 3); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-errc; err != nil {
		t.Fatal(err)
	}

	got := l.Snapshot(Owned)
	if got.CurrPage != 3 {
		t.Errorf("CurrPage = %d, want 3", got.CurrPage)
	}
	if diff := cmp.Diff([]string{"table_10", "table_11"}, names(got)); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}
