package http

import (
	"context"
	"errors"
	"net/http"

	"kvitt/internal/gateway"
	klog "kvitt/internal/log"
	"kvitt/internal/middleware/security"
	"kvitt/internal/session"
)

// sessionHandler is a handler that runs with the browser's session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

var errSessionExpired = errors.New("backend session expired")

// withSession resolves the session cookie, creating a session when there is
// none, and renews the cookie on every response.
func (s *Server) withSession(next sessionHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(s.cookie.name); err == nil {
			id = c.Value
		}
		sess, err := s.sessions.Open(r.Context(), id)
		if err != nil {
			logRequestError(r, "Failed to open session", err)
			InternalServerError("Sessionen kunde inte öppnas.").Write(w)
			return
		}
		s.setSessionCookie(w, sess.ID)

		logger := klog.FromContext(r.Context()).With(klog.FieldSessionID, sess.ID)
		next(w, r.WithContext(klog.NewContext(r.Context(), logger)), sess)
	})
}

// requireAuth lets only logged in sessions through; everyone else is sent to
// the login page.
func (s *Server) requireAuth(next sessionHandler) http.Handler {
	return security.NoStore(s.withSession(func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		if sess.Username() == "" {
			redirect(w, r, "/login")
			return
		}
		next(w, r, sess)
	}))
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	c := &http.Cookie{
		Name:     s.cookie.name,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cookie.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if s.cookie.maxAge > 0 {
		c.MaxAge = int(s.cookie.maxAge.Seconds())
	}
	http.SetCookie(w, c)
}

// refresh reloads the dashboard of sess. When the backend no longer accepts
// the credential the session is logged out and errSessionExpired returned.
// Any other error means some sections kept their previous value.
func refresh(ctx context.Context, sess *session.Session) error {
	err := sess.Refresh(ctx)
	if gateway.IsStatus(err, http.StatusUnauthorized) {
		sess.Store.Logout(ctx)
		return errSessionExpired
	}
	return err
}
