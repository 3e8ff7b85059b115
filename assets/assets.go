// Package assets loads the entities a user owns and the entities a user
// follows. The two lists page independently.
package assets

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/notify"
)

// Kind selects one of the two association lists.
type Kind int

const (
	Owned Kind = iota
	Followed
)

// Kinds lists every Kind in display order.
var Kinds = []Kind{Owned, Followed}

func (k Kind) String() string {
	switch k {
	case Owned:
		return "owned"
	case Followed:
		return "followed"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts "owned" and "followed" (or "following").
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "owned":
		return Owned, true
	case "followed", "following":
		return Followed, true
	}
	return 0, false
}

// DefaultPageSize is the number of entities per page.
const DefaultPageSize = 5

// DefaultIndex is the search index list the "my data" lists query.
const DefaultIndex = "table_search_index,topic_search_index,dashboard_search_index,pipeline_search_index,mlmodel_search_index"

// Searcher runs entity searches.
type Searcher interface {
	Search(ctx context.Context, q catalog.SearchQuery) (*catalog.SearchResponse, error)
}

// Options tune a Loader.
type Options struct {
	PageSize int
	Index    string
}

type list struct {
	data   catalog.AssetsData
	gen    uint64
	failed bool
}

// Loader holds the owned and followed lists of one user. It is safe for
// concurrent use.
type Loader struct {
	src      Searcher
	notifier notify.Notifier
	logger   *slog.Logger
	pageSize int
	index    string

	mu     sync.Mutex
	userID string
	lists  [2]list
}

// New creates a Loader. Zero options fall back to DefaultPageSize and
// DefaultIndex.
func New(src Searcher, opts Options, notifier notify.Notifier, logger *slog.Logger) *Loader {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Index == "" {
		opts.Index = DefaultIndex
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		src:      src,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "assets")),
		pageSize: opts.PageSize,
		index:    opts.Index,
	}
	l.reset()
	return l
}

// reset must be called with l.mu held.
func (l *Loader) reset() {
	for i := range l.lists {
		l.lists[i].gen++
		l.lists[i].failed = false
		l.lists[i].data = catalog.AssetsData{Data: []catalog.EntitySummary{}, CurrPage: 1}
	}
}

// SetUser switches the loader to userID and fetches both lists from the
// first page concurrently. Both fetches always run; the first error is
// returned.
func (l *Loader) SetUser(ctx context.Context, userID string) error {
	l.mu.Lock()
	l.userID = userID
	l.reset()
	l.mu.Unlock()

	var g errgroup.Group
	for _, k := range Kinds {
		g.Go(func() error { return l.Fetch(ctx, k) })
	}
	return g.Wait()
}

// Retry re-fetches the lists whose latest fetch failed.
func (l *Loader) Retry(ctx context.Context) error {
	var g errgroup.Group
	for _, k := range Kinds {
		l.mu.Lock()
		failed := l.lists[k].failed
		l.mu.Unlock()
		if failed {
			g.Go(func() error { return l.Fetch(ctx, k) })
		}
	}
	return g.Wait()
}

// Snapshot returns the current list of kind k.
func (l *Loader) Snapshot(k Kind) catalog.AssetsData {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.lists[k].data
	d.Data = slices.Clone(d.Data)
	if d.Data == nil {
		d.Data = []catalog.EntitySummary{}
	}
	return d
}

// Paginate moves list k to page and re-fetches that list only. Moving to
// the page already shown does nothing.
func (l *Loader) Paginate(ctx context.Context, k Kind, page int) error {
	if page < 1 {
		page = 1
	}
	l.mu.Lock()
	if l.lists[k].data.CurrPage == page {
		l.mu.Unlock()
		return nil
	}
	l.lists[k].data.CurrPage = page
	l.mu.Unlock()
	return l.Fetch(ctx, k)
}

func (l *Loader) query(k Kind, userID string, page int) catalog.SearchQuery {
	field := "owner.id"
	if k == Followed {
		field = "followers"
	}
	return catalog.SearchQuery{
		Query: field + ":" + userID,
		Page:  page,
		Size:  l.pageSize,
		Index: l.index,
	}
}

// Fetch loads the current page of list k. On failure a toast is shown and
// the list keeps its previous contents.
func (l *Loader) Fetch(ctx context.Context, k Kind) error {
	l.mu.Lock()
	userID := l.userID
	if userID == "" {
		l.mu.Unlock()
		return nil
	}
	l.lists[k].gen++
	gen := l.lists[k].gen
	page := l.lists[k].data.CurrPage
	l.mu.Unlock()

	q := l.query(k, userID, page)
	res, err := l.src.Search(ctx, q)
	if err == nil && res == nil {
		err = catalog.ErrUnexpectedResponse
	}
	if err != nil {
		l.logger.Error("fetch entities",
			slog.String("kind", k.String()),
			slog.String("query", q.Query),
			slog.Int("page", page),
			slog.Any("err", err),
		)
		if l.markFailed(k, gen) {
			l.notifier.Error(err, fetchErrorMessage(k))
		}
		return fmt.Errorf("fetch %s entities: %w", k, err)
	}

	data := catalog.AssetsData{
		Data:     catalog.FormatHits(res.Hits.Hits),
		Total:    res.Hits.Total.Value,
		CurrPage: page,
	}
	if len(data.Data) == 0 {
		data.Total = 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lists[k].gen != gen {
		l.logger.Debug("discarding superseded entities", slog.String("kind", k.String()), slog.Uint64("gen", gen))
		return nil
	}
	l.lists[k].data = data
	l.lists[k].failed = false
	return nil
}

// markFailed records a failure of fetch gen and reports whether it is
// still the latest fetch of list k.
func (l *Loader) markFailed(k Kind, gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lists[k].gen != gen {
		return false
	}
	l.lists[k].failed = true
	return true
}

func fetchErrorMessage(k Kind) string {
	if k == Followed {
		return "Error while fetching Following Entities!"
	}
	return "Error while fetching Owned Entities!"
}
