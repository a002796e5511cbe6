// Common helper functions for HTTP handlers.

package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/biosustain/lifelike-annotator/pkg/errors"
)

// userID extracts the acting user from the request. Authentication happens
// at the gateway; this service trusts the forwarded identity header.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

// parsePagination extracts page and page_size from query parameters.
func parsePagination(r *http.Request) (int, int) {
	page := 1
	pageSize := 20

	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}
	return page, pageSize
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, statusCode int, err error) {
	resp := ErrorResponse{
		Code:    http.StatusText(statusCode),
		Message: err.Error(),
	}
	writeJSON(w, statusCode, resp)
}

// writeAppError maps application-level errors to HTTP status codes via the
// error code table. Non-AppError failures are masked as internal errors.
func writeAppError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		writeJSON(w, appErr.Code.HTTPStatus(), ErrorResponse{
			Code:    appErr.Code.String(),
			Message: appErr.Message,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Code:    errors.ErrCodeInternal.String(),
		Message: "internal server error",
	})
}

// decodeJSON reads the request body into target, rejecting malformed JSON.
func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return errors.Wrap(err, errors.ErrCodeAnnotationPayloadInvalid, "request body is not valid JSON")
	}
	return nil
}
