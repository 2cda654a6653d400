package http

import (
	"errors"
	"fmt"
	"net/http"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

const (
	msgAdded    = "Expense added successfully."
	msgUpdated  = "Expense updated."
	msgDeleted  = "Expense deleted."
	msgNotFound = "Expense not found."
)

func editPath(id int64) string { return fmt.Sprintf("/edit/%d", id) }

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageAdd, pageData{
		Title:   "Add expense",
		Notices: s.notices(w, r),
		Page: formPage{
			Form:   core.ExpenseForm{Date: s.todayISO()},
			Action: "/add",
		},
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	form, err := ParseExpenseForm(w, r)
	if err != nil {
		s.requestLogger(r).WarnContext(r.Context(), "Unreadable expense form", applog.FieldError, err)
		s.renderError(w, r, http.StatusBadRequest)
		return
	}

	id, err := s.svc.Create(r.Context(), form)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			s.redirectWithNotice(w, r, "/add", NoticeDanger, verr.Message())
			return
		}
		s.serverError(w, r, "Create expense failed", err, applog.OpCreate)
		return
	}

	s.requestLogger(r).DebugContext(r.Context(), "Expense added", applog.FieldExpenseID, id)
	s.redirectWithNotice(w, r, "/", NoticeSuccess, msgAdded)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}

	e, err := s.svc.Get(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		s.redirectWithNotice(w, r, "/", NoticeDanger, msgNotFound)
		return
	}
	if err != nil {
		s.serverError(w, r, "Load expense failed", err, applog.OpRead)
		return
	}

	s.render(w, r, http.StatusOK, pageEdit, pageData{
		Title:   "Edit expense",
		Notices: s.notices(w, r),
		Page: formPage{
			ID:     e.ID,
			Form:   e.Form(),
			Action: editPath(e.ID),
		},
	})
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}

	form, err := ParseExpenseForm(w, r)
	if err != nil {
		s.requestLogger(r).WarnContext(r.Context(), "Unreadable expense form", applog.FieldError, err)
		s.renderError(w, r, http.StatusBadRequest)
		return
	}

	err = s.svc.Update(r.Context(), id, form)
	var verr *core.ValidationError
	switch {
	case err == nil:
		s.redirectWithNotice(w, r, "/", NoticeSuccess, msgUpdated)
	case errors.Is(err, core.ErrNotFound):
		s.redirectWithNotice(w, r, "/", NoticeDanger, msgNotFound)
	case errors.As(err, &verr):
		s.redirectWithNotice(w, r, editPath(id), NoticeDanger, verr.Message())
	default:
		s.serverError(w, r, "Update expense failed", err, applog.OpUpdate)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.handleNotFound(w, r)
		return
	}

	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.serverError(w, r, "Delete expense failed", err, applog.OpDelete)
		return
	}
	s.redirectWithNotice(w, r, "/", NoticeInfo, msgDeleted)
}
