package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/iamtahmad1/traffic-manager/internal/domain"
	"github.com/iamtahmad1/traffic-manager/internal/platform/apierr"
)

const maxAuditLimit = 1000

func parseLimit(r *http.Request, def int64) (int64, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 || n > maxAuditLimit {
		return 0, apierr.Validation("limit must be an integer in (0, 1000]")
	}
	return n, nil
}

func writeAuditEvents(w http.ResponseWriter, extra map[string]interface{}, docs []domain.AuditDocument) {
	body := map[string]interface{}{"count": len(docs), "events": docs}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleAuditRoute(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := domain.Key{Tenant: q.Get("tenant"), Service: q.Get("service"), Environment: q.Get("env"), Version: q.Get("version")}
	if key.Tenant == "" || key.Service == "" || key.Environment == "" || key.Version == "" {
		writeError(w, apierr.Validation("tenant, service, env, and version are all required"))
		return
	}
	limit, err := parseLimit(r, 100)
	if err != nil {
		writeError(w, err)
		return
	}

	docs, err := s.audit.RouteHistory(r.Context(), key, limit)
	if err != nil {
		writeError(w, apierr.Dependency("audit lookup failed", err))
		return
	}
	writeAuditEvents(w, map[string]interface{}{"route": key}, docs)
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	daysRaw := q.Get("days")
	days := int64(7)
	if daysRaw != "" {
		n, err := strconv.ParseInt(daysRaw, 10, 64)
		if err != nil || n < 1 || n > 365 {
			writeError(w, apierr.Validation("days must be an integer in [1, 365]"))
			return
		}
		days = n
	}
	limit, err := parseLimit(r, 100)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	docs, err := s.audit.TimeRange(r.Context(), now.Add(-time.Duration(days)*24*time.Hour), now, limit)
	if err != nil {
		writeError(w, apierr.Dependency("audit lookup failed", err))
		return
	}
	writeAuditEvents(w, map[string]interface{}{"days": days}, docs)
}

var validActions = map[string]domain.Action{
	"created":     domain.ActionCreate,
	"activated":   domain.ActionActivate,
	"deactivated": domain.ActionDeactivate,
}

func (s *Server) handleAuditAction(w http.ResponseWriter, r *http.Request) {
	actionRaw := r.URL.Query().Get("action")
	action, ok := validActions[actionRaw]
	if !ok {
		writeError(w, apierr.Validation("action must be one of created, activated, deactivated"))
		return
	}
	limit, err := parseLimit(r, 100)
	if err != nil {
		writeError(w, err)
		return
	}

	docs, err := s.audit.ByAction(r.Context(), action, limit)
	if err != nil {
		writeError(w, apierr.Dependency("audit lookup failed", err))
		return
	}
	writeAuditEvents(w, nil, docs)
}

func (s *Server) handleAuditTimeRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, q.Get("start_time"))
	if err != nil {
		writeError(w, apierr.Validation("start_time must be RFC3339"))
		return
	}
	end, err := time.Parse(time.RFC3339, q.Get("end_time"))
	if err != nil {
		writeError(w, apierr.Validation("end_time must be RFC3339"))
		return
	}
	if !end.After(start) {
		writeError(w, apierr.Validation("end_time must be after start_time"))
		return
	}
	limit, err := parseLimit(r, 100)
	if err != nil {
		writeError(w, err)
		return
	}

	docs, err := s.audit.TimeRange(r.Context(), start, end, limit)
	if err != nil {
		writeError(w, apierr.Dependency("audit lookup failed", err))
		return
	}
	writeAuditEvents(w, map[string]interface{}{"start_time": start, "end_time": end}, docs)
}
