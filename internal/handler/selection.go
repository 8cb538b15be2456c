package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"washdesk/internal/model"
	"washdesk/internal/service"
)

type selectServiceRequest struct {
	ServiceID int64    `json:"serviceId" validate:"required,gt=0"`
	Price     *float64 `json:"price" validate:"omitempty,gte=0"`
}

type selectUserRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type salaryRequest struct {
	Rate float64 `json:"rate" validate:"gt=0"`
}

type selectUserResponse struct {
	Outcome   service.Outcome         `json:"outcome"`
	Selection service.Selection       `json:"selection"`
	Assigned  []model.AssignedService `json:"assigned"`
}

type payoutResponse struct {
	Rate   decimal.Decimal `json:"rate"`
	Payout decimal.Decimal `json:"payout"`
}

func SelectServiceHandler(screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := screenFor(w, r, screens)
		if !ok {
			return
		}

		var req selectServiceRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}

		svc, err := rec.Service(req.ServiceID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rec.SelectService(svc)
		if req.Price != nil {
			if err := rec.SetPrice(decimal.NewFromFloat(*req.Price)); err != nil {
				writeError(w, r, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, rec.Selection())
	}
}

// SelectUserHandler picks the employee. When no salary rule exists the answer
// carries outcome "rule_required" and the client must post a rate.
func SelectUserHandler(screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := screenFor(w, r, screens)
		if !ok {
			return
		}

		var req selectUserRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}

		user, err := rec.User(model.UserID(req.UserID))
		if err != nil {
			writeError(w, r, err)
			return
		}
		outcome, err := rec.SelectUser(r.Context(), user)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, selectUserResponse{
			Outcome:   outcome,
			Selection: rec.Selection(),
			Assigned:  rec.Assigned(),
		})
	}
}

func PreviewPayoutHandler(screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := screenFor(w, r, screens)
		if !ok {
			return
		}

		rate, err := service.ParseRate(r.URL.Query().Get("rate"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		payout, err := rec.PreviewPayout(rate)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payoutResponse{Rate: rate, Payout: payout})
	}
}

// CreateSalaryRuleHandler stores the rate asked for after SelectUser and
// creates the assignment with it.
func CreateSalaryRuleHandler(screens *service.Screens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := screenFor(w, r, screens)
		if !ok {
			return
		}

		var req salaryRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, err.Error())
			return
		}

		created, err := rec.CreateSalaryRule(r.Context(), decimal.NewFromFloat(req.Rate))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}
