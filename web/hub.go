package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/GoCodeAlone/metacat/notify"
)

// SSE event names sent on /events.
const (
	eventSnapshot = "snapshot" // active toasts, sent once on connect
	eventToast    = "toast"
	eventDismiss  = "dismiss"
)

// frame is one encoded SSE message.
type frame struct {
	event string
	id    string
	data  []byte
}

type stream struct {
	subject string
	ch      chan frame
}

// dismissal is the payload of a dismiss event.
type dismissal struct {
	IDs []string `json:"ids"`
}

// Hub streams the toast center to browsers: the active toasts on connect,
// then every new toast and dismissal, so all open tabs show the same
// notifications.
type Hub struct {
	center *notify.Center
	logger *slog.Logger
	unsub  func()

	mu      sync.RWMutex
	streams map[*stream]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// NewHub subscribes a Hub to center.
func NewHub(center *notify.Center, logger *slog.Logger) *Hub {
	h := &Hub{
		center:  center,
		logger:  logger,
		streams: make(map[*stream]struct{}),
		done:    make(chan struct{}),
	}
	h.unsub = center.Subscribe(h.toastRaised)
	return h
}

// Close unsubscribes from the center and ends every open stream.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.unsub()
		close(h.done)
	})
}

// Streams returns the number of connected browsers.
func (h *Hub) Streams() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

func (h *Hub) toastRaised(_ context.Context, t notify.Toast) {
	h.send(eventToast, t.ID, t)
}

// Dismissed tells every stream that the toasts ids are gone.
func (h *Hub) Dismissed(ids ...string) {
	if len(ids) == 0 {
		return
	}
	h.send(eventDismiss, "", dismissal{IDs: ids})
}

// send fans a frame out. Slow streams miss frames rather than block the
// toast center.
func (h *Hub) send(event, id string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode toast event", slog.String("event", event), slog.Any("err", err))
		return
	}
	f := frame{event: event, id: id, data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.streams {
		select {
		case s.ch <- f:
		default:
			h.logger.Debug("toast stream full", slog.String("subject", s.subject), slog.String("event", event))
		}
	}
}

// ServeSSE streams toasts to one browser.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s := &stream{subject: subjectFrom(r.Context()), ch: make(chan frame, 64)}
	h.mu.Lock()
	h.streams[s] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.streams, s)
		h.mu.Unlock()
	}()

	// Registered before the snapshot is taken, so a toast raised in between
	// is sent twice at worst; the page ignores ids it already shows.
	active := h.center.Active()
	if active == nil {
		active = []notify.Toast{}
	}
	snapshot, _ := json.Marshal(active)
	writeFrame(w, frame{event: eventSnapshot, data: snapshot})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case f := <-s.ch:
			writeFrame(w, f)
			flusher.Flush()
		}
	}
}

// writeFrame writes f in SSE wire format. JSON from encoding/json carries
// no raw newlines, so data fits on one line.
func writeFrame(w http.ResponseWriter, f frame) {
	if f.id != "" {
		fmt.Fprintf(w, "id: %s\n", f.id) //nolint:errcheck
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.event, f.data) //nolint:errcheck
}
