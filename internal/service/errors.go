package service

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("backend unavailable")
	ErrBadPayload   = errors.New("malformed response payload")

	ErrNoToken      = errors.New("not signed in")
	ErrTokenExpired = errors.New("session expired")

	ErrNoServiceSelected  = errors.New("select a service first")
	ErrNoRulePending      = errors.New("no salary rule is waiting for a rate")
	ErrSubmissionInFlight = errors.New("assignment is already being submitted")
	ErrInvalidRate        = errors.New("rate must be a positive number")
	ErrInvalidPrice       = errors.New("price must not be negative")
	ErrUnknownService     = errors.New("service is not in the catalog")
	ErrUnknownUser        = errors.New("user is not in the directory")
	ErrScreenClosed       = errors.New("order screen is closed")
)

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: unexpected status %d, body: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}

var notices = []struct {
	err error
	msg string
}{
	{ErrUnavailable, "Could not reach the server. Check the connection and try again."},
	{ErrNoToken, "Please sign in."},
	{ErrTokenExpired, "Your session has expired. Please sign in again."},
	{ErrUnauthorized, "Please sign in again."},
	{ErrSubmissionInFlight, "The assignment is already being saved."},
	{ErrNoServiceSelected, "Select a service first."},
	{ErrNoRulePending, "There is no salary rule waiting for a rate."},
	{ErrInvalidRate, "Enter a positive number for the rate."},
	{ErrInvalidPrice, "The price must not be negative."},
	{ErrUnknownService, "That service is not in the catalog."},
	{ErrUnknownUser, "That employee is not in the directory."},
	{ErrScreenClosed, "The order screen was closed. Open it again."},
	{ErrNotFound, "The record no longer exists on the server."},
	{ErrBadPayload, "The server sent an unexpected response."},
}

// UserMessage turns an operation error into the notification shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, n := range notices {
		if errors.Is(err, n.err) {
			return n.msg
		}
	}
	var se *StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("The server rejected the request (status %d).", se.Code)
	}
	return "Something went wrong. Please try again."
}
