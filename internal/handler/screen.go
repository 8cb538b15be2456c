package handler

import (
	"net/http"

	"washdesk/internal/model"
	"washdesk/internal/service"
)

type screenResponse struct {
	OrderID   int64                   `json:"orderId"`
	Services  []model.Service         `json:"services"`
	Users     []model.User            `json:"users"`
	Assigned  []model.AssignedService `json:"assigned"`
	Selection service.Selection       `json:"selection"`
}

func snapshot(rec *service.Reconciler) screenResponse {
	return screenResponse{
		OrderID:   rec.OrderID(),
		Services:  rec.FilterServices(""),
		Users:     rec.FilterUsers(""),
		Assigned:  rec.Assigned(),
		Selection: rec.Selection(),
	}
}

// OpenScreenHandler opens the order's assignment screen and loads it.
func OpenScreenHandler(screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := int64Param(r, "orderID")
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		rec, err := screens.Open(r.Context(), orderID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshot(rec))
	}
}

func CloseScreenHandler(screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := int64Param(r, "orderID")
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		screens.Close(orderID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListServicesHandler(screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := screenFor(w, r, screens)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, rec.FilterServices(r.URL.Query().Get("q")))
	}
}

func ListUsersHandler(screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := screenFor(w, r, screens)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, rec.FilterUsers(r.URL.Query().Get("q")))
	}
}
