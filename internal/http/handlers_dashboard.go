package http

import (
	"errors"
	"net/http"

	klog "kvitt/internal/log"
	"kvitt/internal/session"
)

// handleDashboard refreshes every section and renders the full page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ov, ok := s.refreshOverview(w, r, sess)
	if !ok {
		return
	}
	page := dashboardPage{
		Title:    "Översikt",
		Username: sess.Username(),
		Overview: ov,
		Modal:    newModal(sess.Form.State()),
	}
	s.render(w, r, NewHTMXResponse(), "dashboard.html", page)
}

// handleOverview refreshes and renders the overview fragment.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	ov, ok := s.refreshOverview(w, r, sess)
	if !ok {
		return
	}
	s.render(w, r, NewHTMXResponse(), "overview", ov)
}

// refreshOverview reloads the dashboard and renders what it holds. A partial
// failure is shown inline; an expired backend session redirects to login and
// reports false.
func (s *Server) refreshOverview(w http.ResponseWriter, r *http.Request, sess *session.Session) (overviewView, bool) {
	username := sess.Username()
	err := refresh(r.Context(), sess)
	if errors.Is(err, errSessionExpired) {
		s.events.LogAuth(r.Context(), klog.OpRefresh, sess.ID, username, err)
		redirect(w, r, "/login")
		return overviewView{}, false
	}
	ov := newOverview(sess.Dashboard.Snapshot())
	if err != nil {
		ov.Error = msgRefreshDegraded
	}
	return ov, true
}
