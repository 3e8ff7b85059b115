// Package session holds the logged-in user and notifies observers when it
// changes. Pages receive a *Session at construction instead of reading a
// global.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/GoCodeAlone/metacat/catalog"
)

// Observer is called with the new current user (nil after Clear).
type Observer func(u *catalog.User)

type observerEntry struct {
	id int
	fn Observer
}

// Session is the authenticated context of a client.
// It is safe for concurrent use.
type Session struct {
	mu          sync.RWMutex
	user        *catalog.User
	authEnabled bool
	observers   []observerEntry
	nextID      int
}

// New creates an empty session. authEnabled is false when the catalog runs
// without authentication.
func New(authEnabled bool) *Session {
	return &Session{authEnabled: authEnabled}
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *catalog.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	cp := *s.user
	return &cp
}

// AuthDisabled reports whether the catalog runs without authentication.
func (s *Session) AuthDisabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.authEnabled
}

// IsAdmin reports whether the current user is an administrator.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.IsAdmin
}

// IsCurrent reports whether name is the current user's login name.
func (s *Session) IsCurrent(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.Name == name
}

// Set replaces the current user and notifies observers.
func (s *Session) Set(u *catalog.User) {
	s.mu.Lock()
	if u != nil {
		cp := *u
		u = &cp
	}
	s.user = u
	targets := make([]Observer, 0, len(s.observers))
	for _, e := range s.observers {
		targets = append(targets, e.fn)
	}
	s.mu.Unlock()

	// Observers run outside the lock so they may read the session.
	for _, fn := range targets {
		fn(s.User())
	}
}

// Clear drops the current user.
func (s *Session) Clear() { s.Set(nil) }

// Refresh loads the logged-in user from gw.
func (s *Session) Refresh(ctx context.Context, gw catalog.Gateway) error {
	u, err := gw.LoggedInUser(ctx)
	if err != nil {
		return fmt.Errorf("load logged in user: %w", err)
	}
	s.Set(u)
	return nil
}

// Subscribe registers fn for user changes.
// The returned function unsubscribes it.
func (s *Session) Subscribe(fn Observer) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		filtered := s.observers[:0]
		for _, e := range s.observers {
			if e.id != id {
				filtered = append(filtered, e)
			}
		}
		s.observers = filtered
	}
}
