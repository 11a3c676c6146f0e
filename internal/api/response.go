package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/lessonbank/dedup/internal/duplicates"
	"github.com/lessonbank/dedup/internal/services"
)

// Machine-readable error codes
const (
	CodeInvalidBody       = "invalid_body"
	CodeValidation        = "validation_error"
	CodeInvalidQuery      = "invalid_query"
	CodeInvalidResolution = "invalid_resolution"
	CodeInvalidDismissal  = "invalid_dismissal"
	CodeInvalidSettings   = "invalid_settings"
	CodeAuthDisabled      = "auth_disabled"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Failed to encode JSON response: %v", err)
		}
	}
}

// RespondError writes an error with no code.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondErrorWithCode writes an error response with a machine-readable code.
func RespondErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondValidationError writes field errors keyed by JSON path as a 422.
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    CodeValidation,
		Details: fieldErrors,
	})
}

// ResolveStatus maps the outcome of a resolution to its HTTP status:
//
//	200  every archive committed
//	422  the resolution was rejected before touching the catalog
//	409  the catalog disagreed, possibly after some archives committed
//	500  anything else with nothing committed
func ResolveStatus(result *services.ResolveResult, err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case duplicates.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case result != nil && result.ArchivedCount > 0,
		errors.Is(err, services.ErrAlreadyArchived),
		errors.Is(err, services.ErrLessonNotFound),
		errors.Is(err, services.ErrCanonicalUnavailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondResolveResult writes the outcome of a resolution. Rejections get the
// error envelope; everything else carries the result so partial counts reach
// the reviewer.
func RespondResolveResult(w http.ResponseWriter, result *services.ResolveResult, err error) {
	status := ResolveStatus(result, err)
	if status == http.StatusUnprocessableEntity {
		RespondErrorWithCode(w, status, CodeInvalidResolution, err.Error())
		return
	}
	RespondJSON(w, status, result)
}
