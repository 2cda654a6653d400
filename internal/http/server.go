package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"expenses/internal/config"
	applog "expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
	"expenses/internal/services"
	appweb "expenses/web"
)

// idPattern restricts {id} to digits; anything else is a 404.
const idPattern = "{id:[0-9]+}"

type Server struct {
	http.Server
	svc       *services.ExpenseService
	templates map[string]*template.Template
	sessions  sessions.Store
	logger    *applog.Logger
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	now       func() time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and mounts every route. m may be
// nil, in which case nothing is recorded and /metrics is not served.
func NewServer(cfg *config.Config, svc *services.ExpenseService, logger *applog.Logger, m *metrics.Metrics) (*Server, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	templates, err := parseTemplates(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Server: http.Server{
			Addr:         cfg.Addr(),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
			ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		svc:       svc,
		templates: templates,
		sessions:  NewSessionStore(cfg.SecretKey, false),
		logger:    logger,
		metrics:   m,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Methods:           []string{http.MethodPost},
		}),
		detector: security.NewDetector(),
		now:      time.Now,
	}

	m.WatchRateLimiter(s.limiter.Rejected)

	handler, err := s.routes(cfg.MetricsEnabled && m != nil)
	if err != nil {
		s.limiter.Stop()
		return nil, err
	}
	s.Handler = handler
	return s, nil
}

func (s *Server) routes(serveMetrics bool) (http.Handler, error) {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	tracer := trace.NewMiddleware(s.logger, s.detector.ClientIP, s.metrics)

	r := chi.NewRouter()
	r.Use(tracer.Middleware)
	r.Use(s.recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.limiter.Middleware(s.detector.ClientIP, s.handleRateLimited))

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)

		r.Get("/", s.handleIndex)
		r.Get("/add", s.handleAddForm)
		r.Post("/add", s.handleAdd)
		r.Get("/edit/"+idPattern, s.handleEditForm)
		r.Post("/edit/"+idPattern, s.handleEdit)
		r.Post("/delete/"+idPattern, s.handleDelete)
		r.Get("/export", s.handleExport)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if serveMetrics {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.With(security.StaticAssetMiddleware(3600)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	return r, nil
}

// recoverer answers a handler panic with the generic 500 page unless the
// handler already started the response.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.requestLogger(r).ErrorContext(r.Context(), "Handler panicked",
				"panic", rec,
				"stack", string(debug.Stack()))
			if ww.Status() == 0 {
				s.renderError(ww, r, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) requestLogger(r *http.Request) *applog.Logger {
	return applog.FromContext(r.Context())
}

// Shutdown stops the limiter and gracefully drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
