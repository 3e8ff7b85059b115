package web

import (
	"sync"
	"time"

	"github.com/GoCodeAlone/metacat/userpage"
)

const defaultMaxPages = 256

type pageKey struct {
	subject  string
	username string
}

type cachedPage struct {
	page *userpage.Page
	used time.Time
}

// pageCache keeps one user page per (subject, username) so feed cursors and
// entity list positions survive across requests. The least recently used
// page is closed once max is exceeded.
type pageCache struct {
	mu    sync.Mutex
	max   int
	pages map[pageKey]*cachedPage
}

func newPageCache(max int) *pageCache {
	return &pageCache{max: max, pages: make(map[pageKey]*cachedPage)}
}

func (c *pageCache) get(key pageKey, create func() *userpage.Page) *userpage.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.pages[key]; ok {
		e.used = time.Now()
		return e.page
	}
	if len(c.pages) >= c.max {
		c.evictLocked()
	}
	p := create()
	c.pages[key] = &cachedPage{page: p, used: time.Now()}
	return p
}

func (c *pageCache) evictLocked() {
	var oldest pageKey
	var found bool
	var at time.Time
	for k, e := range c.pages {
		if !found || e.used.Before(at) {
			oldest, at, found = k, e.used, true
		}
	}
	if found {
		c.pages[oldest].page.Close()
		delete(c.pages, oldest)
	}
}

func (c *pageCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}

func (c *pageCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.pages {
		e.page.Close()
		delete(c.pages, k)
	}
}
