package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/GoCodeAlone/metacat/connection"
	"github.com/GoCodeAlone/metacat/recent"
)

// loadConnection builds a fresh connection page for the request's service.
// Load failures are reflected in the returned page's view.
func (s *Server) loadConnection(r *http.Request) *connection.Page {
	category, fqn := r.PathValue("category"), r.PathValue("fqn")
	p := connection.New(s.gw, s.toasts, s.base)
	if err := p.Load(r.Context(), category, fqn); err != nil {
		s.logger.Debug("load connection page", slog.String("fqn", fqn), slog.Any("err", err))
		return p
	}
	v := p.View()
	name := v.Service.DisplayName
	if name == "" {
		name = v.Service.Name
	}
	s.touchRecent(recent.KindEntity, "service:"+category+"/"+fqn, name, map[string]string{
		"url":  connectionURL(category, fqn),
		"type": v.Service.ServiceType,
	})
	return p
}

func connectionURL(category, fqn string) string {
	return "/services/" + url.PathEscape(category) + "/" + url.PathEscape(fqn) + "/edit"
}

func (s *Server) handleConnectionView(w http.ResponseWriter, r *http.Request) {
	v := s.loadConnection(r).View()
	status := http.StatusOK
	if v.Missing {
		status = http.StatusNotFound
	}
	writeJSON(w, status, v)
}

func (s *Server) handleConnectionPage(w http.ResponseWriter, r *http.Request) {
	v := s.loadConnection(r).View()
	status := http.StatusOK
	if v.Missing {
		status = http.StatusNotFound
	}
	s.render(w, r, status, "connection.html", s.connectionPageData(r, v, ""))
}

// handleConnectionUpdate saves the posted config (a JSON object in the
// "config" field) and redirects back to the edit page.
func (s *Server) handleConnectionUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	p := s.loadConnection(r)
	v := p.View()
	if v.Service == nil {
		s.render(w, r, http.StatusNotFound, "connection.html", s.connectionPageData(r, v, ""))
		return
	}

	raw := r.PostFormValue("config")
	var cfg map[string]any
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil || cfg == nil {
		s.render(w, r, http.StatusBadRequest, "connection.html", s.connectionPageData(r, v, raw))
		return
	}
	if err := p.UpdateConfig(r.Context(), cfg); err != nil {
		s.logger.Info("update connection", slog.String("fqn", v.FQN), slog.Any("err", err))
		s.render(w, r, http.StatusBadGateway, "connection.html", s.connectionPageData(r, p.View(), raw))
		return
	}
	s.toasts.Success("Service connection updated")
	http.Redirect(w, r, connectionURL(v.Category, v.FQN), http.StatusSeeOther)
}
