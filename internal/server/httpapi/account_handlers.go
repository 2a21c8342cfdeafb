package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/server/session"
	"github.com/dmitrijs2005/bankapp/internal/server/validation"
	"github.com/go-chi/chi/v5"
)

func (s *Server) initiateTransfer(w http.ResponseWriter, r *http.Request) {
	var form validation.TransferForm
	if err := decode(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, MsgBadRequest)
		return
	}

	amount, vr := form.ParseAmount()
	if !vr.OK() {
		s.fail(w, r, vr)
		return
	}

	user, sess := userFrom(r.Context()), sessionFrom(r.Context())
	pending, err := s.transfers.Initiate(r.Context(), user.ID, form.Mode(), form.Selector(), amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	sess.Pending = pending
	if !s.saveSession(w, r, sess) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Please review and confirm the transfer.",
		"pending": newPendingView(pending),
	})
}

func (s *Server) confirmTransfer(w http.ResponseWriter, r *http.Request) {
	user, sess := userFrom(r.Context()), sessionFrom(r.Context())

	tx, err := s.transfers.Confirm(r.Context(), user.ID, sess.Pending)
	if err != nil && errors.Is(err, common.ErrorInternal) {
		s.fail(w, r, err)
		return
	}

	if sess.Pending != nil {
		sess.Pending = nil
		// A session destroyed meanwhile took the pending transfer with it.
		if err := s.sessions.Save(r.Context(), sess); err != nil && !errors.Is(err, session.ErrNotFound) {
			s.fail(w, r, err)
			return
		}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Transfer completed successfully.",
		"transaction": newTransactionView(tx, user.ID),
	})
}

func (s *Server) cancelTransfer(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess.Pending == nil {
		s.fail(w, r, common.ErrNoPendingTransfer)
		return
	}

	sess.Pending = nil
	if !s.saveSession(w, r, sess) {
		return
	}
	writeMessage(w, http.StatusOK, "Transfer cancelled.")
}

// saveSession writes sess back. A session destroyed by a concurrent logout
// is answered like any other missing session.
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, sess *session.Session) bool {
	err := s.sessions.Save(r.Context(), sess)
	if err == nil {
		return true
	}
	if errors.Is(err, session.ErrNotFound) {
		http.SetCookie(w, s.sessions.ClearCookie())
		err = common.ErrorUnauthorized
	}
	s.fail(w, r, err)
	return false
}

func (s *Server) account(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": newUserView(userFrom(r.Context()))})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var form validation.ProfileForm
	if err := decode(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, MsgBadRequest)
		return
	}

	user, err := s.users.UpdateProfile(r.Context(), userFrom(r.Context()).ID, form)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": newUserView(user)})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txs, err := s.transfers.History(r.Context(), user.ID, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionView(t, user.ID))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (s *Server) exportStatement(w http.ResponseWriter, r *http.Request) {
	st, err := s.statements.Export(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":        st.URL,
		"expires_at": st.ExpiresAt,
	})
}

func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var form validation.DepositForm
	if err := decode(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, MsgBadRequest)
		return
	}

	amount, vr := form.Validate()
	if !vr.OK() {
		s.fail(w, r, vr)
		return
	}

	tx, err := s.transfers.Deposit(r.Context(), form.AccountNumber, amount)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "deposit by admin", "admin_id", userFrom(r.Context()).ID, "transaction_id", tx.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Deposit completed successfully.",
		"transaction": newTransactionView(tx, tx.ReceiverID),
	})
}

func (s *Server) adminListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	users, err := s.users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, newUserView(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrorNotFound
	}
	return id, nil
}

func (s *Server) adminGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.users.Account(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": newUserView(user)})
}

func (s *Server) adminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := userIDParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var form validation.AdminUserForm
	if err := decode(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, MsgBadRequest)
		return
	}

	user, err := s.users.UpdateUser(r.Context(), id, form)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": newUserView(user)})
}
