package httpapi

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	if s.resilience.Drainer.IsDraining() {
		checks["drain"] = "draining"
		ready = false
	} else {
		checks["drain"] = "serving"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.dbPinger != nil {
		if err := s.dbPinger.Ping(ctx); err != nil {
			checks["database"] = "unreachable"
			ready = false
		} else {
			checks["database"] = "ok"
		}
	}
	if s.cachePinger != nil {
		if err := s.cachePinger.Ping(ctx); err != nil {
			checks["cache"] = "unreachable"
			ready = false
		} else {
			checks["cache"] = "ok"
		}
	}

	status := http.StatusOK
	body := map[string]interface{}{"status": "ready", "checks": checks}
	if !ready {
		status = http.StatusServiceUnavailable
		body["status"] = "not_ready"
	}
	writeJSON(w, status, body)
}

func (s *Server) handleResilience(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.resilience.Snapshot())
}
