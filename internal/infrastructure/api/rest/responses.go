package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	derr "lmlang/internal/domain/errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// errorBody is the error envelope shape spec.md §7 requires across every
// non-2xx response.
type errorBody struct {
	Error   string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// writeAppError maps a domain error to its HTTP status per spec.md §7's
// error handling table. Anything not matching one of the typed errors is
// treated as an Internal error and redacted.
func writeAppError(w http.ResponseWriter, err error) {
	var validation *derr.ValidationError
	var conflict *derr.ConflictWithDetails
	var notFound *derr.NotFound
	var badRequest *derr.BadRequest
	var contractViol *derr.ContractViolation
	var stepLimit *derr.StepLimitExceeded

	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error:   "validation_error",
			Message: validation.Error(),
			Details: validation.Diagnostics,
		})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorBody{
			Error:   "conflict",
			Message: conflict.Error(),
			Details: conflict,
		})
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &badRequest):
		writeError(w, http.StatusBadRequest, "bad_request", badRequest.Error())
	case errors.As(err, &contractViol):
		// Not an HTTP error: spec.md §7 surfaces a contract violation as a
		// 200 with an explicit status field so clients don't need to
		// special-case error handling for an expected interpreter outcome.
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "contract_violation",
			"info":   contractViol.Info,
		})
	case errors.As(err, &stepLimit):
		writeError(w, http.StatusUnprocessableEntity, "step_limit_exceeded", stepLimit.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// decodeJSON parses r's body into v, returning a *derr.BadRequest on
// malformed JSON so callers can route it through writeAppError uniformly.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &derr.BadRequest{Message: "malformed request body: " + err.Error()}
	}
	return nil
}
