package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/beepdata/internal/common"
)

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type errorMapping struct {
	err     error
	status  int
	code    string
	message string
}

// errorMappings is checked in order, the first match wins.
var errorMappings = []errorMapping{
	{common.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials"},
	{common.ErrRefreshTokenExpired, http.StatusUnauthorized, "token_expired", "Refresh token expired"},
	{common.ErrorUnauthorized, http.StatusUnauthorized, "unauthenticated", "Authentication credentials were not provided or are invalid"},
	{common.ErrDuplicateUsername, http.StatusBadRequest, "duplicate_username", "Username already exists"},
	{common.ErrDuplicateType, http.StatusBadRequest, "duplicate_type", "An image of this type already exists in this set"},
	{common.ErrTokenNotFound, http.StatusBadRequest, "token_not_found", "Token not found"},
	{common.ErrorValidation, http.StatusBadRequest, "validation_error", ""},
	{common.ErrorNotFound, http.StatusNotFound, "not_found", "Not found"},
}

// statusFor maps err to an HTTP status, a machine code and a client message.
func statusFor(err error) (int, string, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			return m.status, m.code, msg
		}
	}
	return http.StatusInternalServerError, "internal_error", "Internal server error"
}

func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Code: code, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidJSON
	}
	return nil
}

var errInvalidJSON = validationError("Invalid JSON")

func validationError(msg string) error {
	return &wrapped{msg: msg, err: common.ErrorValidation}
}

type wrapped struct {
	msg string
	err error
}

func (e *wrapped) Error() string { return e.msg }
func (e *wrapped) Unwrap() error { return e.err }
