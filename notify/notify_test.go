package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/GoCodeAlone/metacat/gateway"
)

func TestCenter_ErrorMessagePrecedence(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		fallback string
		want     string
	}{
		{"server message wins", &gateway.APIError{Status: 500, Message: "index down"}, "Error while fetching Owned Entities!", "index down"},
		{"fallback when no server message", errors.New("dial tcp: refused"), "Error while fetching Activity Feeds!", "Error while fetching Activity Feeds!"},
		{"error text last", errors.New("boom"), "", "boom"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			center := NewCenter(nil)
			center.Error(c.err, c.fallback)
			active := center.Active()
			if len(active) != 1 {
				t.Fatalf("active = %d, want 1", len(active))
			}
			if active[0].Message != c.want || active[0].Level != LevelError {
				t.Errorf("toast = %+v, want message %q", active[0], c.want)
			}
		})
	}
}

func TestCenter_Dismiss(t *testing.T) {
	c := NewCenter(nil)
	c.Info("one")
	c.Success("two")

	active := c.Active()
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2", len(active))
	}
	if !c.Dismiss(active[0].ID) {
		t.Fatal("Dismiss returned false for active toast")
	}
	if c.Dismiss(active[0].ID) {
		t.Error("second Dismiss should report false")
	}
	if got := c.Active(); len(got) != 1 || got[0].Message != "two" {
		t.Errorf("active = %+v", got)
	}
	if ids := c.DismissAll(); len(ids) != 1 || ids[0] != active[1].ID {
		t.Errorf("DismissAll ids = %v, want [%s]", ids, active[1].ID)
	}
	if len(c.Active()) != 0 {
		t.Error("DismissAll left toasts behind")
	}
}

func TestCenter_HistoryCap(t *testing.T) {
	c := NewCenter(nil)
	for range 60 {
		c.Info("x")
	}
	if got := len(c.Active()); got != 50 {
		t.Errorf("active = %d, want 50", got)
	}
}

func TestCenter_Subscribe(t *testing.T) {
	c := NewCenter(nil)
	var n int32
	unsub := c.Subscribe(func(_ context.Context, tt Toast) {
		if tt.Message == "hello" {
			atomic.AddInt32(&n, 1)
		}
	})
	c.Info("hello")
	unsub()
	c.Info("hello")
	if atomic.LoadInt32(&n) != 1 {
		t.Errorf("handler calls = %d, want 1", n)
	}
}
