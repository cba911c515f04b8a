package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/duybaohuynhtan/CareerAgent/internal/session"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"
)

type sessionKey struct{}

// withSession resolves the session id from the header, then the cookie,
// falling back to the shared default session.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestedSession(r)
		if id == "" {
			id = session.DefaultID
		}

		if err := h.validate.Var(id, "max=128,printascii"); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid session id", nil)
			return
		}

		w.Header().Set(SessionHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

// requestedSession returns the id named by the header or the cookie, or ""
// when the request names none.
func requestedSession(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func sessionID(r *http.Request) string {
	if id, ok := r.Context().Value(sessionKey{}).(string); ok {
		return id
	}
	return session.DefaultID
}
