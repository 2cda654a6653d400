package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"expenses/internal/core"
	"expenses/internal/export"
	applog "expenses/internal/log"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	rows, summary, err := s.svc.List(r.Context())
	if err != nil {
		s.serverError(w, r, "List expenses failed", err, applog.OpList)
		return
	}

	s.render(w, r, http.StatusOK, pageIndex, pageData{
		Title:   "Expenses",
		Notices: s.notices(w, r),
		Page:    indexPage{Expenses: rows, Summary: summary},
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	n, err := s.svc.Export(r.Context(), &buf)
	if err != nil {
		s.serverError(w, r, "CSV export failed", err, applog.OpExport)
		return
	}

	s.requestLogger(r).InfoContext(r.Context(), "CSV export served", applog.FieldCount, n)

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", export.AttachmentDisposition())
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"templates": "ok", "store": "ok"}
	status := http.StatusOK

	if len(s.templates) == 0 {
		checks["templates"] = "not loaded"
		status = http.StatusServiceUnavailable
	}
	if err := s.svc.Ready(r.Context()); err != nil {
		s.requestLogger(r).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
		checks["store"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusMethodNotAllowed)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.requestLogger(r).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ClientIP(r),
		applog.FieldPath, r.URL.Path)
	s.renderError(w, r, http.StatusTooManyRequests)
}

// serverError logs err and answers with the generic 500 page. Details
// never reach the client.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error, op string) {
	s.requestLogger(r).LogError(r.Context(), msg, err, op, nil)
	s.renderError(w, r, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// todayISO is the server's local date, used to pre-fill the add form.
func (s *Server) todayISO() string {
	return s.now().Format(core.DateLayout)
}
