// Package web implements the metacat HTTP daemon: server-rendered user and
// service connection pages, a JSON view API, auth and SSE toasts.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GoCodeAlone/metacat/catalog"
	"github.com/GoCodeAlone/metacat/config"
	"github.com/GoCodeAlone/metacat/notify"
	"github.com/GoCodeAlone/metacat/recent"
	"github.com/GoCodeAlone/metacat/session"
)

// Server is the metacat HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger
	// base is the caller's logger, handed to page controllers that tag
	// their own component.
	base *slog.Logger

	gw      catalog.Gateway
	session *session.Session
	toasts  *notify.Center
	hub     *Hub
	recent  *recent.Store
	pages   *pageCache

	routesOnce sync.Once

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	startTime time.Time
	version   string
}

// New creates a Server reading the catalog through gw.
func New(cfg config.Config, gw catalog.Gateway, ver string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger.With(slog.String("component", "web")),
		base:      logger,
		gw:        gw,
		session:   session.New(!cfg.Auth.Disabled),
		toasts:    notify.NewCenter(logger.With(slog.String("component", "notify"))),
		startTime: time.Now(),
		version:   ver,
	}
	s.hub = NewHub(s.toasts, s.logger)
	s.pages = newPageCache(defaultMaxPages)
	return s
}

// SetRecentStore attaches the recently viewed store. Without one the right
// panel stays empty.
func (s *Server) SetRecentStore(store *recent.Store) {
	s.recent = store
}

// Toasts returns the server's notification center.
func (s *Server) Toasts() *notify.Center {
	return s.toasts
}

// RefreshSession loads the catalog user behind the gateway token.
func (s *Server) RefreshSession(ctx context.Context) error {
	return s.session.Refresh(ctx, s.gw)
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	s.routesOnce.Do(s.registerRoutes)
	return s.mux
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":9090"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server and releases cached pages.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	s.pages.closeAll()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	// Public routes
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	// SSE: auth via cookie or ?token= because EventSource can't set headers
	s.mux.Handle("GET /events", s.authMiddleware(http.HandlerFunc(s.hub.ServeSSE)))

	s.mux.Handle("GET /{$}", s.authMiddleware(http.HandlerFunc(s.handleIndex)))
	s.mux.Handle("GET /users/{username}", s.authMiddleware(http.HandlerFunc(s.handleUserPage)))
	s.mux.Handle("GET /users/{username}/{tab}", s.authMiddleware(http.HandlerFunc(s.handleUserPage)))
	s.mux.Handle("POST /users/{username}/actions", s.authMiddleware(http.HandlerFunc(s.handleUserAction)))
	s.mux.Handle("GET /services/{category}/{fqn}/edit", s.authMiddleware(http.HandlerFunc(s.handleConnectionPage)))
	s.mux.Handle("POST /services/{category}/{fqn}/edit", s.authMiddleware(http.HandlerFunc(s.handleConnectionUpdate)))

	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)
	apiMux.HandleFunc("GET /api/view/users/{username}", s.handleUserView)
	apiMux.HandleFunc("POST /api/view/users/{username}/actions", s.handleUserViewAction)
	apiMux.HandleFunc("GET /api/view/services/{category}/{fqn}", s.handleConnectionView)
	apiMux.HandleFunc("GET /api/toasts", s.handleToasts)
	apiMux.HandleFunc("DELETE /api/toasts/{id}", s.handleDismissToast)
	apiMux.HandleFunc("DELETE /api/toasts", s.handleDismissAll)
	apiMux.HandleFunc("GET /api/recent", s.handleRecent)
	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

// statusResponse is the body of GET /api/status.
type statusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
	Gateway string `json:"gateway"`
	Pages   int    `json:"pages"`
	Streams int    `json:"streams"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
		Gateway: s.cfg.Gateway.URL,
		Pages:   s.pages.len(),
		Streams: s.hub.Streams(),
	})
}

func (s *Server) handleToasts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.toasts.Active())
}

func (s *Server) handleDismissToast(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.toasts.Dismiss(id) {
		writeJSONError(w, http.StatusNotFound, "toast not found")
		return
	}
	s.hub.Dismissed(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDismissAll(w http.ResponseWriter, _ *http.Request) {
	s.hub.Dismissed(s.toasts.DismissAll()...)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	kind := recent.KindEntity
	if k := r.URL.Query().Get("kind"); k != "" {
		kind = recent.Kind(k)
	}
	writeJSON(w, http.StatusOK, s.recentItems(kind))
}

func (s *Server) recentItems(kind recent.Kind) []recent.Item {
	if s.recent == nil {
		return []recent.Item{}
	}
	items, err := s.recent.List(kind, 0)
	if err != nil {
		s.logger.Warn("list recent", slog.String("kind", string(kind)), slog.Any("err", err))
		return []recent.Item{}
	}
	if items == nil {
		items = []recent.Item{}
	}
	return items
}

func (s *Server) touchRecent(kind recent.Kind, key, text string, meta map[string]string) {
	if s.recent == nil {
		return
	}
	if err := s.recent.Touch(kind, key, text, meta); err != nil {
		s.logger.Warn("record recent", slog.String("key", key), slog.Any("err", err))
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
