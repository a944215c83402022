package api

import (
	"net/http"
	"strconv"
	"time"

	"sluice/internal/eventlog"
)

const (
	defaultEventPageSize = 50
	maxEventPageSize     = 500
)

type eventListResponse struct {
	Events []eventlog.Event `json:"events"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type healthResponse struct {
	Status         string    `json:"status"`
	Running        bool      `json:"running"`
	TriggersCount  int       `json:"triggers_count"`
	ActiveTriggers int       `json:"active_triggers"`
	EventsCount    int       `json:"events_count"`
	Timestamp      time.Time `json:"timestamp"`
}

// handleEvents serves GET /api/events?limit=&offset=, newest first.
func (gateway *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}

	limit := queryInt(r, "limit", defaultEventPageSize)
	if limit <= 0 {
		limit = defaultEventPageSize
	}
	if limit > maxEventPageSize {
		limit = maxEventPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	events, total := gateway.System.Events().List(limit, offset)
	writeJSON(w, http.StatusOK, eventListResponse{
		Events: events,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
	return nil
}

// handleMetrics serves the Prometheus text exposition. Like /health it
// sits outside the middleware chain so scrapers need no key.
func (gateway *Gateway) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	_ = gateway.System.Metrics().WritePrometheus(w)
}

// handleHealth is exempt from auth and rate limiting.
func (gateway *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "healthy",
		Running:        gateway.System.Running(),
		TriggersCount:  gateway.System.Registry().Len(),
		ActiveTriggers: gateway.System.Registry().EnabledCount(),
		EventsCount:    gateway.System.Events().Len(),
		Timestamp:      time.Now().UTC(),
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
