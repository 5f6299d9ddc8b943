package http

import (
	"errors"
	"net/http"

	"kvitt/internal/form"
	"kvitt/internal/gateway"
	klog "kvitt/internal/log"
	"kvitt/internal/session"
)

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	expense, err := ParseTransactionType(r.URL.Query())
	if err != nil {
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	sess.Form.OpenCreate(expense)
	s.render(w, r, NewHTMXResponse(), "modal", newModal(sess.Form.State()))
}

// handleEditTransaction opens the form for an event of the last fetched list.
func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := ParseEventID(r)
	if err != nil {
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	e, ok := sess.Dashboard.Find(id)
	if !ok {
		NotFoundError(msgNotFound).Write(w)
		return
	}
	sess.Form.OpenEdit(e)
	s.render(w, r, NewHTMXResponse(), "modal", newModal(sess.Form.State()))
}

func (s *Server) handleCancelTransaction(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	sess.Form.Cancel()
	s.render(w, r, NewHTMXResponse(), "modal", modalView{})
}

// handleSubmitTransaction submits the open form. Validation errors re-render
// the modal with 422; backend failures keep it open with the error. On
// success the closed modal is returned together with the refreshed overview
// as an out-of-band swap.
func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	in, err := ParseTransactionForm(r)
	if err != nil {
		BadRequestError(msgBadRequest).Write(w)
		return
	}

	before := newModal(sess.Form.State())
	op := submitOp(before.Editing)
	username := sess.Username()

	err = sess.Form.Submit(r.Context(), username, in.Input())
	var verr *form.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		s.render(w, r, NewHTMXResponse().Status(http.StatusUnprocessableEntity), "modal", newModal(sess.Form.State()))
		return
	case errors.Is(err, form.ErrBusy):
		ErrorResponse(http.StatusConflict, "Sparar redan, vänta lite.").Write(w)
		return
	case errors.Is(err, form.ErrClosed):
		s.render(w, r, NewHTMXResponse(), "modal", modalView{})
		return
	case gateway.IsStatus(err, http.StatusUnauthorized):
		sess.Store.Logout(r.Context())
		s.events.LogAuth(r.Context(), op, sess.ID, username, err)
		redirect(w, r, "/login")
		return
	default:
		s.events.LogError(r.Context(), "Transaction submit failed", err, klog.ComponentForm, op, nil)
		m := newModal(sess.Form.State())
		b := NewHTMXResponse().Status(http.StatusUnprocessableEntity)
		if m.Error != "" {
			b.TriggerErrorNotification(m.Error)
		}
		s.render(w, r, b, "modal", m)
		return
	}

	s.events.LogTransaction(r.Context(), op, username, "", in.Title, in.Amount, before.Expense)
	ov := newOverview(sess.Dashboard.Snapshot())
	ov.OOB = true
	b := NewHTMXResponse().
		TriggerTransactionSaved(op, before.Expense).
		TriggerSuccessNotification(msgSaved)
	s.render(w, r, b, "modal_response.html", modalResponse{Overview: &ov})
}

func submitOp(editing bool) string {
	if editing {
		return klog.OpEdit
	}
	return klog.OpCreate
}

// handleDeleteTransaction deletes an event and answers with the refreshed
// overview. A failed delete leaves the list untouched with an inline error.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	id, err := ParseEventID(r)
	if err != nil {
		BadRequestError(msgBadRequest).Write(w)
		return
	}
	username := sess.Username()
	e, known := sess.Dashboard.Find(id)

	if err := sess.Transactions.DeleteEvent(r.Context(), username, id); err != nil {
		if gateway.IsStatus(err, http.StatusUnauthorized) {
			sess.Store.Logout(r.Context())
			s.events.LogAuth(r.Context(), klog.OpDelete, sess.ID, username, err)
			redirect(w, r, "/login")
			return
		}
		s.events.LogError(r.Context(), "Transaction delete failed", err, klog.ComponentForm, klog.OpDelete,
			klog.NewFields().WithEvent(id.String(), e.Title, "", e.Expense))
		ov := newOverview(sess.Dashboard.Snapshot())
		ov.Error = msgDeleteFailed
		s.render(w, r, NewHTMXResponse().TriggerErrorNotification(msgDeleteFailed), "overview", ov)
		return
	}
	amount := ""
	if known {
		amount = e.Amount.String()
	}
	s.events.LogTransaction(r.Context(), klog.OpDelete, username, id.String(), e.Title, amount, e.Expense)

	ov, ok := s.refreshOverview(w, r, sess)
	if !ok {
		return
	}
	b := NewHTMXResponse().
		TriggerTransactionSaved(klog.OpDelete, e.Expense).
		TriggerSuccessNotification(msgDeleted)
	s.render(w, r, b, "overview", ov)
}
