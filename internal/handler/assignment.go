package handler

import (
	"net/http"

	"washdesk/internal/service"
)

func ListAssignmentsHandler(screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := screenFor(w, r, screens)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, rec.Assigned())
	}
}

func RemoveAssignmentHandler(screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := screenFor(w, r, screens)
		if !ok {
			return
		}

		id, err := int64Param(r, "id")
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		if err := rec.RemoveAssignment(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec.Assigned())
	}
}

// AssignmentDetailHandler shows one assignment with its service, order and
// employee. It does not need an open screen.
func AssignmentDetailHandler(backend service.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := int64Param(r, "id")
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		detail, err := backend.WashServiceDetail(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// OrderAssignmentDetailHandler shows one assignment of the open order.
func OrderAssignmentDetailHandler(screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := screenFor(w, r, screens)
		if !ok {
			return
		}

		id, err := int64Param(r, "id")
		if err != nil {
			badRequest(w, err.Error())
			return
		}

		detail, err := rec.Detail(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}
