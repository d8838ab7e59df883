package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/transportops/field-service-api/internal/app/fieldauth"
	"github.com/transportops/field-service-api/internal/app/fieldreports"
	"github.com/transportops/field-service-api/internal/platform/auth/qrtoken"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	body := errorBody{Error: errorDetail{
		Code:    code,
		Message: message,
		Details: details,
	}}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		body.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeAppError maps application errors onto HTTP responses. Anything it does
// not recognize becomes an opaque 500; internals never leak to field devices.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *fieldreports.Error
	if errors.As(err, &ae) {
		writeError(w, r, ae.Status, ae.Code, ae.Message, ae.Details)
		return
	}
	if errors.Is(err, fieldauth.ErrInvalidBearerToken) || errors.Is(err, qrtoken.ErrInvalidToken) {
		writeError(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired token", nil)
		return
	}
	writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
