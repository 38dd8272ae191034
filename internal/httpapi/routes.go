package httpapi

import (
	"net/http"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
	"github.com/iamtahmad1/traffic-manager/internal/platform/apierr"
)

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := domain.Key{
		Tenant: q.Get("tenant"), Service: q.Get("service"),
		Environment: q.Get("env"), Version: q.Get("version"),
	}
	if key.Tenant == "" || key.Service == "" || key.Environment == "" || key.Version == "" {
		writeError(w, apierr.Validation("tenant, service, env, and version are all required"))
		return
	}

	outcome, err := s.resolver.Resolve(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}

	body := map[string]string{
		"tenant": key.Tenant, "service": key.Service, "env": key.Environment, "version": key.Version, "url": outcome.URL,
	}
	if outcome.Source != "" {
		body["source"] = outcome.Source
	}
	writeJSON(w, http.StatusOK, body)
}

type routeRequest struct {
	Tenant      string `json:"tenant"`
	Service     string `json:"service"`
	Environment string `json:"env"`
	Version     string `json:"version"`
	URL         string `json:"url,omitempty"`
}

func (req routeRequest) key() domain.Key {
	return domain.Key{Tenant: req.Tenant, Service: req.Service, Environment: req.Environment, Version: req.Version}
}

func (req routeRequest) validate(requireURL bool) error {
	if req.Tenant == "" || req.Service == "" || req.Environment == "" || req.Version == "" {
		return apierr.Validation("tenant, service, env, and version are all required")
	}
	if requireURL && req.URL == "" {
		return apierr.Validation("url is required")
	}
	return nil
}

func writeRoute(w http.ResponseWriter, status int, route domain.Route) {
	writeJSON(w, status, map[string]interface{}{
		"tenant": route.Tenant, "service": route.Service, "env": route.Environment, "version": route.Version,
		"url": route.URL, "is_active": route.IsActive,
	})
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierr.Validation("malformed request body"))
		return
	}
	if err := req.validate(true); err != nil {
		writeError(w, err)
		return
	}

	route, err := s.writer.Create(r.Context(), req.key(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeRoute(w, http.StatusCreated, route)
}

func (s *Server) handleActivateRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierr.Validation("malformed request body"))
		return
	}
	if err := req.validate(false); err != nil {
		writeError(w, err)
		return
	}

	route, err := s.writer.Activate(r.Context(), req.key())
	if err != nil {
		writeError(w, err)
		return
	}
	writeRoute(w, http.StatusOK, route)
}

func (s *Server) handleDeactivateRoute(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierr.Validation("malformed request body"))
		return
	}
	if err := req.validate(false); err != nil {
		writeError(w, err)
		return
	}

	route, err := s.writer.Deactivate(r.Context(), req.key())
	if err != nil {
		writeError(w, err)
		return
	}
	writeRoute(w, http.StatusOK, route)
}
