package recent

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T, limit int) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "recent.db"), limit)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func keys(items []Item) []string {
	out := []string{}
	for _, it := range items {
		out = append(out, it.Key)
	}
	return out
}

func TestStore_TouchOrdersByLastUse(t *testing.T) {
	s := newTestStore(t, 0)

	for _, k := range []string{"a", "b", "c"} {
		if err := s.Touch(KindEntity, k, "entity "+k, nil); err != nil {
			t.Fatalf("Touch %s: %v", k, err)
		}
	}
	if err := s.Touch(KindEntity, "a", "entity a (renamed)", map[string]string{"type": "table"}); err != nil {
		t.Fatal(err)
	}

	items, err := s.List(KindEntity, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "c", "b"}, keys(items)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	if items[0].Uses != 2 || items[0].Text != "entity a (renamed)" || items[0].Meta["type"] != "table" {
		t.Errorf("item a = %+v", items[0])
	}
	if items[0].LastUsed.IsZero() {
		t.Error("LastUsed not set")
	}
}

func TestStore_CapPerKind(t *testing.T) {
	s := newTestStore(t, 5)

	for i := range 8 {
		if err := s.Touch(KindSearch, fmt.Sprintf("q%d", i), "", nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Touch(KindEntity, "only", "only entity", nil); err != nil {
		t.Fatal(err)
	}

	searches, err := s.List(KindSearch, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"q7", "q6", "q5", "q4", "q3"}, keys(searches)); diff != "" {
		t.Errorf("searches (-want +got):\n%s", diff)
	}
	entities, err := s.List(KindEntity, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 1 {
		t.Errorf("entities = %v, other kinds must not be trimmed", keys(entities))
	}

	two, err := s.List(KindSearch, 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"q7", "q6"}, keys(two)); diff != "" {
		t.Errorf("limit 2 (-want +got):\n%s", diff)
	}
}

func TestStore_RemoveAndClear(t *testing.T) {
	s := newTestStore(t, 0)
	for _, k := range []string{"x", "y"} {
		if err := s.Touch(KindEntity, k, k, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Touch(KindSearch, "orders", "orders", nil); err != nil {
		t.Fatal(err)
	}

	if err := s.Remove(KindEntity, "x"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(KindEntity, "missing"); err != nil {
		t.Errorf("Remove missing: %v", err)
	}
	items, _ := s.List(KindEntity, 0)
	if diff := cmp.Diff([]string{"y"}, keys(items)); diff != "" {
		t.Errorf("after remove (-want +got):\n%s", diff)
	}

	if err := s.Clear(KindEntity); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	items, _ = s.List(KindEntity, 0)
	if len(items) != 0 {
		t.Errorf("after clear = %v", keys(items))
	}
	searches, _ := s.List(KindSearch, 0)
	if len(searches) != 1 {
		t.Errorf("Clear removed other kinds: %v", keys(searches))
	}
}

func TestStore_EmptyKeyRejected(t *testing.T) {
	s := newTestStore(t, 0)
	if err := s.Touch(KindEntity, "", "x", nil); err == nil {
		t.Error("expected error for empty key")
	}
}
