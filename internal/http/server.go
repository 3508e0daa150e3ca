// Package http serves the GlowBudget pages and HTMX partials on top of a
// ledger.Store.
package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"glowbudget/internal/ledger"
	"glowbudget/internal/log"
	"glowbudget/internal/middleware/security"
	"glowbudget/internal/middleware/trace"
	"glowbudget/internal/query"
	"glowbudget/internal/search"
	appweb "glowbudget/web"
)

const (
	defaultImportMaxBytes = 5 << 20
	staticMaxAge          = 3600
)

type Server struct {
	http.Server
	store          *ledger.Store
	compiler       query.Compiler
	templates      *template.Template
	logger         *log.Logger
	tracer         *trace.Middleware
	importMaxBytes int64
	now            func() time.Time
	started        time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithCompiler sets the search pattern compiler, typically a cached
// *search.Compiler.
func WithCompiler(c query.Compiler) Option {
	return func(s *Server) { s.compiler = c }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithImportLimit caps the size of an uploaded import file.
func WithImportLimit(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.importMaxBytes = n
		}
	}
}

// WithClock overrides the time source used for stats and form defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, store *ledger.Store, opts ...Option) (*Server, error) {
	s := &Server{
		store:          store,
		compiler:       search.NewCompiler(128, 10*time.Minute),
		logger:         log.Discard(),
		importMaxBytes: defaultImportMaxBytes,
		now:            time.Now,
		started:        time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentHTTP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	mux := http.NewServeMux()

	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("/static/", security.StaticAssetMiddleware(staticMaxAge)(static))

	mux.HandleFunc("/{$}", s.handleIndex)
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// UI partials
	mux.HandleFunc("/ui/records", s.handleRecordsPartial)
	mux.HandleFunc("/ui/stats", s.handleStatsPartial)
	mux.HandleFunc("/ui/form", s.handleFormPartial)
	mux.HandleFunc("/ui/settings", s.handleSettingsPartial)

	mux.HandleFunc("/records", s.handleCreateRecord)
	mux.HandleFunc("/records/{id}", s.handleUpdateRecord)
	mux.HandleFunc("/records/{id}/delete", s.handleDeleteRecord)

	mux.HandleFunc("/settings/theme", s.handleSetTheme)
	mux.HandleFunc("/settings/currency", s.handleSetCurrency)
	mux.HandleFunc("/settings/rates", s.handleSetRate)
	mux.HandleFunc("/settings/cap", s.handleSetCap)
	mux.HandleFunc("/categories", s.handleAddCategory)
	mux.HandleFunc("/categories/delete", s.handleRemoveCategory)

	mux.HandleFunc("/export", s.handleExport)
	mux.HandleFunc("/import", s.handleImport)
	mux.HandleFunc("/reset", s.handleReset)

	s.tracer = trace.NewMiddleware(s.logger, nil)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Metrics returns the request counters collected by the trace middleware.
func (s *Server) Metrics() trace.Metrics {
	return s.tracer.GetMetrics()
}

// Shutdown gracefully shuts down the server and logs the request totals.
func (s *Server) Shutdown(ctx context.Context) error {
	m := s.Metrics()
	s.logger.Info("HTTP server shutting down",
		log.FieldOperation, log.OpShutdown,
		"total_requests", m.TotalRequests,
		"server_errors", m.ServerErrors,
		"avg_response", m.AverageResponseTime().String())
	return s.Server.Shutdown(ctx)
}

// render executes a named template into a buffer first so a failing template
// never leaves a half-written response. A nil builder means a plain 200.
func (s *Server) render(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.NewStructuredLogger(log.FromContext(r.Context())).LogError(r.Context(),
			"Template execution failed", err, log.OpRender, log.LogFields{"template": name})
		InternalServerError("Rendering failed").Write(w)
		return
	}
	if b == nil {
		b = NewHTMXResponse()
	}
	b.BodyHTML(buf.String()).Write(w)
}
