package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"washdesk/internal/service"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

// writeError answers with the notification text for err and a status code
// that matches its kind.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: service.UserMessage(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNoToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrUnknownService),
		errors.Is(err, service.ErrUnknownUser),
		errors.Is(err, service.ErrScreenClosed):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSubmissionInFlight),
		errors.Is(err, service.ErrNoServiceSelected),
		errors.Is(err, service.ErrNoRulePending):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidRate),
		errors.Is(err, service.ErrInvalidPrice):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrUnavailable),
		errors.Is(err, service.ErrBadPayload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// decodeBody reads a JSON request body into dst and validates it.
func decodeBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, 64<<10)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return v, nil
}

// screenFor finds the open screen of the order named in the URL.
func screenFor(w http.ResponseWriter, r *http.Request, screens *service.Screens) (*service.Reconciler, bool) {
	orderID, err := int64Param(r, "orderID")
	if err != nil {
		badRequest(w, err.Error())
		return nil, false
	}
	rec, ok := screens.Get(orderID)
	if !ok {
		writeError(w, r, service.ErrScreenClosed)
		return nil, false
	}
	return rec, true
}
