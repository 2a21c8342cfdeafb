package httpapi

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/server/validation"
)

const maxBodyBytes = 1 << 20

// Messages shown to clients.
const (
	MsgInternal          = "Something went wrong. Please try again."
	MsgInvalidLogin      = "Invalid username or password"
	MsgLoginRequired     = "Please log in to access this page."
	MsgForbidden         = "You do not have permission to access this page."
	MsgDeactivated       = "Your account has been deactivated. Please contact support."
	MsgPending           = "Your account is pending activation."
	MsgInvalidResetLink  = "The password reset link is invalid or has expired."
	MsgInsufficientFunds = "Insufficient funds."
	MsgNoPending         = "There is no transfer awaiting confirmation."
	MsgPendingExpired    = "The transfer has expired. Please start again."
	MsgNotFound          = "Not found."
	MsgBadRequest        = "The request could not be understood."
	MsgTooManyAttempts   = "Too many attempts. Please try again later."
	MsgTooManyRequests   = "Too many requests. Please try again later."
	MsgUnavailable       = "Service temporarily unavailable. Please try again later."
)

type errorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// errorStatus maps a service error to a status code and client message.
// Anything unrecognised is reported as an internal error.
func errorStatus(err error) (int, errorBody) {
	var vr *validation.Result
	if errors.As(err, &vr) {
		return http.StatusBadRequest, errorBody{Error: "validation failed", Fields: vr.Fields}
	}

	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorBody{Error: MsgInvalidLogin}
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, errorBody{Error: MsgLoginRequired}
	case errors.Is(err, common.ErrAccountDeactivated):
		return http.StatusForbidden, errorBody{Error: MsgDeactivated}
	case errors.Is(err, common.ErrAccountPending):
		return http.StatusForbidden, errorBody{Error: MsgPending}
	case errors.Is(err, common.ErrorForbidden):
		return http.StatusForbidden, errorBody{Error: MsgForbidden}
	case errors.Is(err, common.ErrTokenInvalid),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrTokenUnknown):
		return http.StatusBadRequest, errorBody{Error: MsgInvalidResetLink}
	case errors.Is(err, common.ErrInvalidAmount):
		return http.StatusBadRequest, fieldBody(validation.FieldAmount, validation.MsgAmountPositive)
	case errors.Is(err, common.ErrAccountNotFound):
		return http.StatusNotFound, fieldBody(validation.FieldAccountNumber, "Account not found.")
	case errors.Is(err, common.ErrRecipientNotFound):
		return http.StatusNotFound, errorBody{Error: "Recipient not found."}
	case errors.Is(err, common.ErrSelfTransfer):
		return http.StatusBadRequest, errorBody{Error: "You cannot transfer money to yourself."}
	case errors.Is(err, common.ErrInsufficientFunds):
		return http.StatusConflict, errorBody{Error: MsgInsufficientFunds}
	case errors.Is(err, common.ErrNoPendingTransfer):
		return http.StatusConflict, errorBody{Error: MsgNoPending}
	case errors.Is(err, common.ErrPendingTransferGone):
		return http.StatusConflict, errorBody{Error: MsgPendingExpired}
	case errors.Is(err, common.ErrUsernameTaken), errors.Is(err, common.ErrEmailTaken):
		return http.StatusConflict, errorBody{Error: err.Error()}
	case errors.Is(err, common.ErrorNotFound), errors.Is(err, common.ErrorDisabled):
		return http.StatusNotFound, errorBody{Error: MsgNotFound}
	default:
		return http.StatusInternalServerError, errorBody{Error: MsgInternal}
	}
}

func fieldBody(field, msg string) errorBody {
	return errorBody{Error: "validation failed", Fields: map[string][]string{field: {msg}}}
}

// fail writes err to the client, logging anything that maps to a 5xx.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", safePath(r), "error", err)
	}
	writeJSON(w, status, body)
}

// decode reads a JSON or form-encoded body into dst, whose fields carry
// json tags. Form values are matched by the same names.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		return json.NewDecoder(r.Body).Decode(dst)
	}

	if err := r.ParseForm(); err != nil {
		return err
	}
	flat := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			flat[k] = v[0]
		}
	}
	b, err := json.Marshal(flat)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// wantsJSON reports whether the caller is an API client rather than a
// browser page.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
