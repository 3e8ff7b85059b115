// Package gatewaytest serves a catalog.Gateway over the catalog REST API
// so HTTP clients can be tested end to end.
package gatewaytest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	"github.com/GoCodeAlone/metacat/catalog"
)

// Handlers exposes a gateway as REST routes.
type Handlers struct {
	Gateway catalog.Gateway
	// Token, when set, is required as a bearer token on every request.
	Token string
}

// NewServer starts an httptest.Server for gw. The caller must Close it.
func NewServer(gw catalog.Gateway, token string) *httptest.Server {
	h := &Handlers{Gateway: gw, Token: token}
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return httptest.NewServer(h.auth(mux))
}

// RegisterRoutes registers all catalog routes on mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/users/loggedInUser", h.loggedInUser)
	mux.HandleFunc("GET /api/v1/users/name/{name}", h.userByName)
	mux.HandleFunc("PATCH /api/v1/users/{id}", h.patchUser)

	mux.HandleFunc("GET /api/v1/feed", h.feed)
	mux.HandleFunc("GET /api/v1/feed/{id}", h.thread)
	mux.HandleFunc("PATCH /api/v1/feed/{id}", h.patchThread)
	mux.HandleFunc("DELETE /api/v1/feed/{id}", h.deleteThread)
	mux.HandleFunc("POST /api/v1/feed/{id}/posts", h.postToThread)
	mux.HandleFunc("PATCH /api/v1/feed/{id}/posts/{postId}", h.patchPost)
	mux.HandleFunc("DELETE /api/v1/feed/{id}/posts/{postId}", h.deletePost)

	mux.HandleFunc("GET /api/v1/search/query", h.search)

	mux.HandleFunc("GET /api/v1/services/{category}/name/{fqn}", h.serviceByFQN)
	mux.HandleFunc("PUT /api/v1/services/{category}", h.updateService)
}

func (h *Handlers) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Token != "" && r.Header.Get("Authorization") != "Bearer "+h.Token {
			writeError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a catalog-style JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"code": status, "message": msg})
}

// writeGatewayError maps gateway errors onto HTTP statuses.
func writeGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, catalog.ErrUnexpectedResponse):
		// The real API occasionally answers 200 with no body; reproduce it.
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func fields(r *http.Request) []string {
	f := r.URL.Query().Get("fields")
	if f == "" {
		return nil
	}
	return strings.Split(f, ",")
}

func readPatch(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	b, err := io.ReadAll(r.Body)
	if err != nil || len(b) == 0 {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return b, true
}

// --- users ---

func (h *Handlers) loggedInUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Gateway.LoggedInUser(r.Context())
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) userByName(w http.ResponseWriter, r *http.Request) {
	u, err := h.Gateway.UserByName(r.Context(), r.PathValue("name"), fields(r))
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handlers) patchUser(w http.ResponseWriter, r *http.Request) {
	patch, ok := readPatch(w, r)
	if !ok {
		return
	}
	u, err := h.Gateway.PatchUser(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- feed ---

func (h *Handlers) feed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Gateway.Feed(r.Context(), catalog.FeedQuery{
		UserID:     q.Get("userId"),
		Filter:     catalog.FeedFilter(q.Get("filterType")),
		After:      q.Get("after"),
		Type:       catalog.ThreadType(q.Get("type")),
		TaskStatus: catalog.TaskStatus(q.Get("taskStatus")),
	})
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) thread(w http.ResponseWriter, r *http.Request) {
	t, err := h.Gateway.Thread(r.Context(), r.PathValue("id"))
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) patchThread(w http.ResponseWriter, r *http.Request) {
	patch, ok := readPatch(w, r)
	if !ok {
		return
	}
	t, err := h.Gateway.PatchThread(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) deleteThread(w http.ResponseWriter, r *http.Request) {
	if err := h.Gateway.DeleteThread(r.Context(), r.PathValue("id")); err != nil {
		writeGatewayError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) postToThread(w http.ResponseWriter, r *http.Request) {
	var p catalog.Post
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := h.Gateway.PostToThread(r.Context(), r.PathValue("id"), p)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) patchPost(w http.ResponseWriter, r *http.Request) {
	patch, ok := readPatch(w, r)
	if !ok {
		return
	}
	p, err := h.Gateway.PatchPost(r.Context(), r.PathValue("id"), r.PathValue("postId"), patch)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.Gateway.DeletePost(r.Context(), r.PathValue("id"), r.PathValue("postId")); err != nil {
		writeGatewayError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// --- search ---

func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size, _ := strconv.Atoi(q.Get("size"))
	from, _ := strconv.Atoi(q.Get("from"))
	page := 1
	if size > 0 {
		page = from/size + 1
	}
	res, err := h.Gateway.Search(r.Context(), catalog.SearchQuery{
		Query: q.Get("q"),
		Page:  page,
		Size:  size,
		Index: q.Get("index"),
	})
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- services ---

func (h *Handlers) serviceByFQN(w http.ResponseWriter, r *http.Request) {
	s, err := h.Gateway.ServiceByFQN(r.Context(), r.PathValue("category"), r.PathValue("fqn"), fields(r))
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handlers) updateService(w http.ResponseWriter, r *http.Request) {
	var s catalog.Service
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	out, err := h.Gateway.UpdateService(r.Context(), r.PathValue("category"), &s)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
