package handler

import (
	"net/http"

	"washdesk/internal/service"
)

type loginRequest struct {
	Token string `json:"token" validate:"required"`
	Role  string `json:"role" validate:"omitempty,max=64"`
}

type sessionResponse struct {
	Role string `json:"role,omitempty"`
}

func LoginHandler(sessions *service.SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}

		if err := sessions.Login(r.Context(), req.Token, req.Role); err != nil {
			writeError(w, r, err)
			return
		}

		role, err := sessions.Role(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{Role: role})
	}
}

// LogoutHandler forgets the session and closes every open order screen.
func LogoutHandler(sessions *service.SessionService, screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := sessions.Logout(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		screens.CloseAll()
		w.WriteHeader(http.StatusNoContent)
	}
}
