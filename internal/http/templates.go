package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/shopspring/decimal"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

const (
	pageIndex = "index.html"
	pageAdd   = "add.html"
	pageEdit  = "edit.html"
	pageError = "error.html"
)

var templateFuncs = template.FuncMap{
	// amount renders a stored amount the way a user typed it ("3.5", "1200").
	"amount": core.FormatAmount,
	// money renders an aggregate with two decimals.
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

// parseTemplates builds one template set per page, each sharing layout.html.
func parseTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template)
	for _, page := range []string{pageIndex, pageAdd, pageEdit, pageError} {
		t, err := template.New(page).Funcs(templateFuncs).ParseFS(fsys, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		pages[page] = t
	}
	return pages, nil
}

// pageData is what every page receives; Page holds the page-specific part.
type pageData struct {
	Title   string
	Notices []Notice
	Page    any
}

type indexPage struct {
	Expenses []core.Expense
	Summary  core.Summary
}

type formPage struct {
	ID     int64
	Form   core.ExpenseForm
	Action string
}

type errorPage struct {
	Status  int
	Message string
}

// render executes the page into a buffer so a template failure can still
// produce a clean 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data pageData) {
	t, ok := s.templates[page]
	if !ok {
		s.requestLogger(r).WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(), "Unknown template", "template", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.requestLogger(r).WithComponent(applog.ComponentTemplate).LogError(r.Context(), "Template execution failed", err, applog.OpRender,
			applog.LogFields{"template": page})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows the error page with a generic message for status.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int) {
	s.render(w, r, status, pageError, pageData{
		Title: http.StatusText(status),
		Page:  errorPage{Status: status, Message: http.StatusText(status)},
	})
}
