package handler

// Every error response has the same shape:
//
//	{"error": "validation_error", "message": "This field is required.", "field": "email"}
//
// "error" is a stable machine-readable kind, "message" is safe to show to a
// user and "field" names the offending input when there is one.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sakif/tubescribe/internal/apperror"
)

// maxBodyBytes caps request bodies. The largest legitimate body is a
// registration form.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeJSON sends data with the given status. Headers must be set before
// WriteHeader, so nothing may touch w after this call.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are gone; all that is left is to log it.
			log.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// writeError maps err to a status code and the error body.
//
// Only *apperror.AppError messages reach the client. Anything else is an
// unexpected failure: it is logged with its full chain and the client sees
// a generic 500.
func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error().Err(err).Msg("unhandled error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: apperror.Internal(err).Message,
		})
		return
	}

	status, kind, field := http.StatusInternalServerError, "internal_error", appErr.Field
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, kind = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrIncorrectPassword):
		status, kind = http.StatusBadRequest, "validation_error"
		if field == "" {
			field = "old_password"
		}
	case errors.Is(err, apperror.ErrUnauthenticated):
		status, kind = http.StatusUnauthorized, "unauthorized"
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	case errors.Is(err, apperror.ErrForbidden):
		status, kind = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, kind = http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrGeneration):
		status, kind = http.StatusBadRequest, "generation_failed"
	default:
		logger.Error().Err(apperror.CauseOf(err)).Msg("internal error")
	}

	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
		Field:   field,
	})
}

// decodeJSON reads a JSON object from the request body into dst. A missing,
// oversized or malformed body is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, false)
}

// decodeOptionalJSON is decodeJSON for requests whose body may be omitted.
// An empty body, chunked or not, leaves dst untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeBody(w, r, dst, true)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF) && optional:
			return nil
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("", "Request body must not be empty.")
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("", fmt.Sprintf("Request body must not be larger than %d bytes.", maxErr.Limit))
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return apperror.ValidationFailed(typeErr.Field, fmt.Sprintf("Expected a %s.", typeErr.Type))
		default:
			return apperror.ValidationFailed("", "Request body is not valid JSON.")
		}
	}
	return nil
}
