// Package notify implements the non-blocking toast notifications pages use
// to report failures without interrupting rendering.
package notify

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/metacat/gateway"
)

// Level is the severity of a toast.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Toast is a dismissible notification.
type Toast struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier reports user-visible outcomes.
type Notifier interface {
	// Error shows err, preferring the server's message, then fallback.
	Error(err error, fallback string)
	// Info shows a plain message.
	Info(msg string)
	// Success shows a confirmation.
	Success(msg string)
}

// Handler receives every toast pushed to a Center.
type Handler func(ctx context.Context, t Toast)

type handlerEntry struct {
	id      int
	handler Handler
}

// Center keeps the active toasts and fans them out to subscribers.
// It is safe for concurrent use.
type Center struct {
	mu       sync.RWMutex
	active   []Toast
	handlers []handlerEntry
	nextID   int
	maxHist  int
	logger   *slog.Logger
}

// NewCenter creates a Center that keeps at most 50 undismissed toasts.
func NewCenter(logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{maxHist: 50, logger: logger}
}

var _ Notifier = (*Center)(nil)

// Error implements Notifier.
func (c *Center) Error(err error, fallback string) {
	msg := gateway.ServerMessage(err)
	if msg == "" {
		msg = fallback
	}
	if msg == "" && err != nil {
		msg = err.Error()
	}
	c.logger.Warn("toast", slog.String("message", msg), slog.Any("err", err))
	c.push(LevelError, msg)
}

// Info implements Notifier.
func (c *Center) Info(msg string) { c.push(LevelInfo, msg) }

// Success implements Notifier.
func (c *Center) Success(msg string) { c.push(LevelSuccess, msg) }

func (c *Center) push(level Level, msg string) {
	t := Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   msg,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	c.active = append(c.active, t)
	if len(c.active) > c.maxHist {
		c.active = c.active[len(c.active)-c.maxHist:]
	}
	targets := make([]Handler, 0, len(c.handlers))
	for _, e := range c.handlers {
		targets = append(targets, e.handler)
	}
	c.mu.Unlock()

	for _, h := range targets {
		h(context.Background(), t)
	}
}

// Active returns the undismissed toasts, oldest first.
func (c *Center) Active() []Toast {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.active)
}

// Dismiss removes a toast. It reports whether the toast was active.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := slices.IndexFunc(c.active, func(t Toast) bool { return t.ID == id })
	if i < 0 {
		return false
	}
	c.active = slices.Delete(c.active, i, i+1)
	return true
}

// DismissAll removes every toast and returns the ids it removed.
func (c *Center) DismissAll() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.active))
	for _, t := range c.active {
		ids = append(ids, t.ID)
	}
	c.active = nil
	return ids
}

// Subscribe registers h for new toasts.
// The returned function unsubscribes the handler.
func (c *Center) Subscribe(h Handler) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.handlers = append(c.handlers, handlerEntry{id: id, handler: h})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.handlers = slices.DeleteFunc(c.handlers, func(e handlerEntry) bool { return e.id == id })
	}
}

// Discard is a Notifier that drops everything.
type Discard struct{}

func (Discard) Error(error, string) {}
func (Discard) Info(string)         {}
func (Discard) Success(string)      {}
