package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"expenses/internal/core"
)

// maxFormBytes caps the size of a submitted expense form.
const maxFormBytes = 64 << 10

var errInvalidID = errors.New("invalid expense id")

// parseID reads the {id} route parameter. The router only matches digits,
// so an error here means the value overflowed int64.
func parseID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q", errInvalidID, raw)
	}
	return id, nil
}

// ParseExpenseForm reads the add/edit form fields from a POST body.
// Missing fields come back empty; validation happens in core.
func ParseExpenseForm(w http.ResponseWriter, r *http.Request) (core.ExpenseForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return core.ExpenseForm{}, fmt.Errorf("parse form: %w", err)
	}

	return core.ExpenseForm{
		Title:    sanitizeInput(r.PostForm.Get("title")),
		Amount:   sanitizeInput(r.PostForm.Get("amount")),
		Category: sanitizeInput(r.PostForm.Get("category")),
		Date:     sanitizeInput(r.PostForm.Get("date")),
		Notes:    sanitizeMultiline(r.PostForm.Get("notes")),
	}, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s))
}

// sanitizeMultiline is sanitizeInput that keeps tabs and line breaks.
func sanitizeMultiline(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if (r < 32 && r != '\t' && r != '\n' && r != '\r') || r == 127 {
			return -1
		}
		return r
	}, s))
}
