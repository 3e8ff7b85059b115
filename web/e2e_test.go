package web

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/GoCodeAlone/metacat/gateway/mock"
)

// newBrowser starts a headless browser, skipping the test when none is
// installed.
func newBrowser(t *testing.T) *rod.Browser {
	t.Helper()
	if testing.Short() {
		t.Skip("browser test skipped in short mode")
	}
	bin, has := launcher.LookPath()
	if !has {
		t.Skip("no Chrome/Chromium found")
	}
	u, err := launcher.New().Bin(bin).Headless(true).Launch()
	if err != nil {
		t.Skipf("launch browser: %v", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		t.Fatalf("connect to browser: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func openPage(t *testing.T, b *rod.Browser, url string) *rod.Page {
	t.Helper()
	page, err := b.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		t.Fatalf("open %s: %v", url, err)
	}
	page = page.Timeout(15 * time.Second)
	if err := page.WaitLoad(); err != nil {
		t.Fatalf("load %s: %v", url, err)
	}
	return page
}

func textOf(t *testing.T, page *rod.Page, selector string) string {
	t.Helper()
	el, err := page.Element(selector)
	if err != nil {
		t.Fatalf("find %s: %v", selector, err)
	}
	text, err := el.Text()
	if err != nil {
		t.Fatalf("text of %s: %v", selector, err)
	}
	return text
}

// newBrowserServer serves s over HTTP. Pages hold an SSE stream open, so
// client connections are dropped before the server closes.
func newBrowserServer(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
	})
	return srv
}

func TestBrowser_UserPage(t *testing.T) {
	b := newBrowser(t)
	s := newOpenServer(t, mock.Demo())
	srv := newBrowserServer(t, s)

	page := openPage(t, b, srv.URL+"/users/aaron_johnson0")
	if got := textOf(t, page, `[data-testid="username"]`); got != "aaron_johnson0" {
		t.Errorf("expected username aaron_johnson0, got %q", got)
	}
	if got := textOf(t, page, `[data-testid="display-name"]`); got != "Aaron Johnson" {
		t.Errorf("expected display name, got %q", got)
	}

	btn, err := page.Element(`[data-testid="load-more"]`)
	if err != nil {
		t.Fatalf("find load more: %v", err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		t.Fatalf("click load more: %v", err)
	}
	if err := page.WaitLoad(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if _, err := page.Element(`[data-testid="feed"]`); err != nil {
		t.Fatalf("feed after load more: %v", err)
	}
}

func TestBrowser_UnknownUser(t *testing.T) {
	b := newBrowser(t)
	s := newOpenServer(t, mock.Demo())
	srv := newBrowserServer(t, s)

	page := openPage(t, b, srv.URL+"/users/ghost")
	if got := textOf(t, page, `[data-testid="error-message"]`); got != "No user available with name ghost" {
		t.Errorf("unexpected placeholder %q", got)
	}
}
