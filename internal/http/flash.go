package http

import (
	"encoding/gob"
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionName = "expenses_session"

// Notice categories, also used as CSS classes.
const (
	NoticeSuccess = "success"
	NoticeDanger  = "danger"
	NoticeInfo    = "info"
)

// Notice is a one-shot message shown on the next rendered page.
type Notice struct {
	Category string
	Message  string
}

func init() {
	gob.Register(Notice{})
}

// NewSessionStore returns a signed cookie store for flash notices.
func NewSessionStore(secret string, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// flash queues a notice for the next page. It must run before the
// response header is written.
func (s *Server) flash(w http.ResponseWriter, r *http.Request, category, message string) {
	sess, err := s.sessions.Get(r, sessionName)
	if err != nil {
		// Tampered or stale cookie: Get still returns a fresh session.
		s.requestLogger(r).DebugContext(r.Context(), "Discarding unreadable session", "error", err)
	}
	sess.AddFlash(Notice{Category: category, Message: message})
	if err := sess.Save(r, w); err != nil {
		s.requestLogger(r).WarnContext(r.Context(), "Failed to save flash notice", "error", err)
	}
}

// notices pops every queued notice. The cleared session is written back
// so each notice shows exactly once.
func (s *Server) notices(w http.ResponseWriter, r *http.Request) []Notice {
	sess, err := s.sessions.Get(r, sessionName)
	if err != nil {
		return nil
	}
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil
	}

	out := make([]Notice, 0, len(raw))
	for _, v := range raw {
		if n, ok := v.(Notice); ok {
			out = append(out, n)
		}
	}
	if err := sess.Save(r, w); err != nil {
		s.requestLogger(r).WarnContext(r.Context(), "Failed to clear flash notices", "error", err)
	}
	return out
}

// redirectWithNotice flashes a notice and sends the browser to target
// with 303 so the follow-up request is a GET.
func (s *Server) redirectWithNotice(w http.ResponseWriter, r *http.Request, target, category, message string) {
	s.flash(w, r, category, message)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
