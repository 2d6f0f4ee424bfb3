package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	lerrors "moneymarket/core/errors"
	"moneymarket/core/pricing"
)

// ErrorResponse is the body of every failed request. Kind and Code are set
// for protocol failures.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Code  uint16 `json:"code,omitempty"`
}

type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return &requestError{status: http.StatusNotFound, msg: fmt.Sprintf(format, args...)}
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr.status
	}
	switch {
	case errors.Is(err, lerrors.ErrAssetNotListed):
		return http.StatusNotFound
	case errors.Is(err, lerrors.ErrPriceUnavailable),
		errors.Is(err, lerrors.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, pricing.ErrInvalidPrice):
		return http.StatusBadRequest
	case errors.Is(err, pricing.ErrOutOfOrder),
		errors.Is(err, pricing.ErrDeviantPrice):
		return http.StatusConflict
	}
	switch lerrors.KindOf(err) {
	case lerrors.KindInvalidParameter:
		return http.StatusBadRequest
	case lerrors.KindAuthorization:
		return http.StatusForbidden
	case lerrors.KindInvalidState, lerrors.KindConsistency:
		return http.StatusConflict
	case lerrors.KindPolicyViolation, lerrors.KindArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error, status int) ErrorResponse {
	if status == http.StatusInternalServerError {
		return ErrorResponse{Error: "internal error"}
	}
	body := ErrorResponse{Error: err.Error()}
	if kind := lerrors.KindOf(err); kind != lerrors.KindUnknown {
		body.Kind = kind.String()
		body.Code = lerrors.CodeOf(err)
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "lending request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody(err, status))
}
