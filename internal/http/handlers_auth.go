package http

import (
	"errors"
	"net/http"

	"kvitt/internal/gateway"
	klog "kvitt/internal/log"
	"kvitt/internal/session"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess.Username() != "" {
		redirect(w, r, "/")
		return
	}
	page := loginPage{Title: "Logga in"}
	if r.URL.Query().Get("registered") == "true" {
		page.Notice = msgRegistered
	}
	s.render(w, r, NewHTMXResponse(), "login.html", page)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	creds, err := ParseCredentials(r)
	if err != nil {
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	page := loginPage{Title: "Logga in", Username: creds.Username}
	if !creds.Complete() {
		page.Error = msgMissingCreds
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "login.html", page)
		return
	}

	if !sess.Store.Login(r.Context(), creds.Username, creds.Password) {
		s.events.LogAuth(r.Context(), klog.OpLogin, sess.ID, creds.Username, errors.New("rejected"))
		page.Error = msgLoginFailed
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnauthorized), "login.html", page)
		return
	}
	s.events.LogAuth(r.Context(), klog.OpLogin, sess.ID, creds.Username, nil)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if sess.Username() != "" {
		redirect(w, r, "/")
		return
	}
	s.render(w, r, NewHTMXResponse(), "register.html", registerPage{Title: "Skapa konto"})
}

// handleRegister creates the account and sends the user to the login page;
// registering does not log in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	creds, err := ParseCredentials(r)
	if err != nil {
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	page := registerPage{Title: "Skapa konto", Username: creds.Username}
	switch {
	case !creds.Complete():
		page.Error = msgMissingCreds
	case creds.Password != creds.Confirm:
		page.Error = msgPasswordMatch
	}
	if page.Error != "" {
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "register.html", page)
		return
	}

	err = sess.Client.Register(r.Context(), creds.Username, creds.Password)
	s.events.LogAuth(r.Context(), klog.OpRegister, sess.ID, creds.Username, err)
	if err != nil {
		var se *gateway.StatusError
		status := http.StatusBadGateway
		switch {
		case errors.As(err, &se):
			page.Error = msgRegisterFailed
			if se.Message != "" {
				page.Error = se.Message
			}
			status = http.StatusUnprocessableEntity
		default:
			page.Error = msgNetworkError
		}
		s.render(w, r, NewHTMXResponse().Status(status), "register.html", page)
		return
	}
	http.Redirect(w, r, "/login?registered=true", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	username := sess.Username()
	sess.Store.Logout(r.Context())
	s.events.LogAuth(r.Context(), klog.OpLogout, sess.ID, username, nil)
	redirect(w, r, "/login")
}
