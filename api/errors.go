package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/piecework-payroll/approval"
	"github.com/warp/piecework-payroll/factory"
	"github.com/warp/piecework-payroll/payroll"
	"github.com/warp/piecework-payroll/store/sqlite"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// errBadRequest marks request validation failures that surface from helpers
// shared between handlers.
var errBadRequest = errors.New("invalid request")

func badRequest(msg string) error { return fmt.Errorf("%s: %w", msg, errBadRequest) }

// statusFor maps domain and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, approval.ErrRoleNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, approval.ErrIllegalTransition),
		errors.Is(err, approval.ErrEntryLocked),
		errors.Is(err, sqlite.ErrConcurrentModification),
		errors.Is(err, sqlite.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, approval.ErrCommentRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sqlite.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, payroll.ErrInvalidDate),
		errors.Is(err, payroll.ErrInvalidPeriod),
		errors.Is(err, factory.ErrInvalidRateCard),
		errors.Is(err, sqlite.ErrInvalidReference):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeStoreError writes err with the status statusFor picks.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
