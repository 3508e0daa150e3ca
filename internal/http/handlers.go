package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"glowbudget/internal/core"
	"glowbudget/internal/log"
)

// handleHealth performs basic liveness check
func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewHTMXResponse().JSON(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	}).Write(w)
}

// handleReady reports whether the store can reach its backing storage.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{"templates": "ok", "storage": "ok"}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}
	if err := s.store.Ready(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	NewHTMXResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes request and ledger counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	m := s.Metrics()
	records, settings := s.store.Snapshot()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", m.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total Responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", m.ServerErrors)

	fmt.Fprintf(w, "# HELP ledger_records Current number of records\n")
	fmt.Fprintf(w, "# TYPE ledger_records gauge\n")
	fmt.Fprintf(w, "ledger_records %d\n\n", len(records))

	fmt.Fprintf(w, "# HELP ledger_categories Current number of categories\n")
	fmt.Fprintf(w, "# TYPE ledger_categories gauge\n")
	fmt.Fprintf(w, "ledger_categories %d\n\n", len(settings.Categories))

	if sized, ok := s.compiler.(interface{ Size() int }); ok {
		fmt.Fprintf(w, "# HELP search_cache_entries Compiled search patterns held in cache\n")
		fmt.Fprintf(w, "# TYPE search_cache_entries gauge\n")
		fmt.Fprintf(w, "search_cache_entries %d\n\n", sized.Size())
	}

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	records, settings := s.store.Snapshot()
	now := s.now()

	data := pageData{
		Theme:    settings.Theme,
		Table:    buildTable(records, settings, ParseQueryState(r.URL.Query()), s.compiler),
		Stats:    buildStats(records, settings, now),
		Form:     newFormView(settings, nil, now),
		Settings: buildSettings(records, settings),
	}
	s.render(w, r, nil, "index.html", data)
}

// handleRecordsPartial renders the filtered and sorted table.
func (s *Server) handleRecordsPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	records, settings := s.store.Snapshot()
	table := buildTable(records, settings, ParseQueryState(r.URL.Query()), s.compiler)
	table.OOB = true
	s.render(w, r, nil, "records.html", table)
}

func (s *Server) handleStatsPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	records, settings := s.store.Snapshot()
	s.render(w, r, nil, "stats.html", buildStats(records, settings, s.now()))
}

// handleFormPartial renders an empty record form, or the edit form when an
// id is given.
func (s *Server) handleFormPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	settings := s.store.Settings()
	id := r.URL.Query().Get("id")
	if id == "" {
		s.render(w, r, nil, "form.html", newFormView(settings, nil, s.now()))
		return
	}
	rec, err := s.store.Record(id)
	if err != nil {
		NotFoundError("Record not found").Write(w)
		return
	}
	s.render(w, r, nil, "form.html", newFormView(settings, &rec, s.now()))
}

func (s *Server) handleSettingsPartial(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	s.render(w, r, nil, "settings.html", buildSettings(s.store.Snapshot()))
}

// fail logs an unexpected ledger error and answers 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(),
		"Ledger operation failed", err, op, nil)
	InternalServerError("Could not save changes. Please try again.").Write(w)
}

// notConfirmed answers a destructive request that arrived without its
// confirmation flag.
func notConfirmed(w http.ResponseWriter, err error) bool {
	if errors.Is(err, core.ErrNotConfirmed) {
		BadRequestError("Please confirm this action first.").Write(w)
		return true
	}
	return false
}
