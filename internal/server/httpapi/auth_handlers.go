package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/netx"
	"github.com/dmitrijs2005/bankapp/internal/server/validation"
	"github.com/go-chi/chi/v5"
)

const (
	MsgResetRequested = "Check your email for the instructions to reset your password."
	MsgResetDone      = "Your password has been reset."
	MsgLoggedOut      = "You have been logged out."
	MsgRegistered     = "Congratulations, you are now a registered user!"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var form validation.RegistrationForm
	if err := decode(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, MsgBadRequest)
		return
	}

	user, err := s.users.Register(r.Context(), form)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": MsgRegistered,
		"user":    newUserView(user),
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var form validation.LoginForm
	if err := decode(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, MsgBadRequest)
		return
	}

	user, err := s.users.Login(r.Context(), form)
	if err != nil {
		var vr *validation.Result
		if !errors.As(err, &vr) {
			s.metrics.Login("failure")
			s.logger.Warn(r.Context(), "login failed", "ip", netx.ClientIP(r), "path", safePath(r))
		}
		s.fail(w, r, err)
		return
	}

	sess, err := s.sessions.Start(r.Context(), s.sessions.IDFromRequest(r), user.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.metrics.Login("success")

	http.SetCookie(w, s.sessions.Cookie(sess))
	noCache(w)
	writeJSON(w, http.StatusOK, map[string]any{"user": newUserView(user)})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Destroy(r.Context(), s.sessions.IDFromRequest(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	http.SetCookie(w, s.sessions.ClearCookie())
	noCache(w)
	writeMessage(w, http.StatusOK, MsgLoggedOut)
}

func (s *Server) resetRequestInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Submit the email address of your account to receive a reset link.",
		"fields":  []string{validation.FieldEmail},
	})
}

// resetRequest answers the same way whether or not the address is known.
func (s *Server) resetRequest(w http.ResponseWriter, r *http.Request) {
	var form validation.ResetRequestForm
	if err := decode(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, MsgBadRequest)
		return
	}

	if err := s.users.RequestPasswordReset(r.Context(), form); err != nil {
		s.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, MsgResetRequested)
}

func (s *Server) verifyReset(w http.ResponseWriter, r *http.Request) {
	if _, err := s.users.VerifyResetToken(r.Context(), chi.URLParam(r, "token")); err != nil {
		s.resetFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":  true,
		"fields": []string{validation.FieldPassword, validation.FieldPassword2},
	})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var form validation.ResetPasswordForm
	if err := decode(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, MsgBadRequest)
		return
	}

	if err := s.users.ResetPassword(r.Context(), chi.URLParam(r, "token"), form); err != nil {
		s.resetFailed(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, MsgResetDone)
}

func (s *Server) resetFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, common.ErrTokenInvalid) || errors.Is(err, common.ErrTokenExpired) || errors.Is(err, common.ErrTokenUnknown) {
		s.logger.Warn(r.Context(), "reset token rejected", "ip", netx.ClientIP(r), "path", safePath(r), "reason", err.Error())
	}
	s.fail(w, r, err)
}
