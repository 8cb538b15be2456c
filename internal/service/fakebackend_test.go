package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"washdesk/internal/model"
)

const testToken = "test-token"

type staticToken string

func (s staticToken) Token(_ context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// fakeBackend serves the car-wash API from memory and serializes its answers
// the way the real backend does: $id tags on objects, $values list envelopes
// and $ref back-references in detail payloads.
type fakeBackend struct {
	mu       sync.Mutex
	services []model.Service
	users    []model.User
	rules    map[string]decimal.Decimal
	assigned []model.AssignedService
	nextID   int64

	salaryLookups int
	ruleCreates   int
	washCreates   int
	lastWash      model.WashServiceRequest
	failStatus    map[string]int
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()
	fb := &fakeBackend{
		rules:      make(map[string]decimal.Decimal),
		nextID:     100,
		failStatus: make(map[string]int),
	}
	srv := httptest.NewServer(fb.routes())
	t.Cleanup(srv.Close)
	return fb, srv
}

func ruleKey(serviceID int64, userID model.UserID) string {
	return fmt.Sprintf("%d|%s", serviceID, userID)
}

func (fb *fakeBackend) failWith(path string, status int) {
	fb.mu.Lock()
	fb.failStatus[path] = status
	fb.mu.Unlock()
}

func (fb *fakeBackend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+testToken {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			fb.mu.Lock()
			status := fb.failStatus[r.URL.Path]
			fb.mu.Unlock()
			if status != 0 {
				http.Error(w, "forced failure", status)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get(pathServices, fb.listServices)
	r.Get(pathUsers, fb.listUsers)
	r.Get(pathAssignedServices, fb.listAssigned)
	r.Get(pathSalaryLookup, fb.salaryLookup)
	r.Post(pathSalaryCreate, fb.createRule)
	r.Post(pathWashCreate, fb.createWash)
	r.Patch(pathWashDelete, fb.deleteWash)
	r.Get(pathWashDetail, fb.detail)
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// envelope wraps items the way the backend wraps lists.
func envelope(items []map[string]any) map[string]any {
	for i, item := range items {
		item["$id"] = strconv.Itoa(i + 2)
	}
	return map[string]any{"$id": "1", "$values": items}
}

func serviceJSON(s model.Service) map[string]any {
	return map[string]any{"id": s.ID, "name": s.Name, "price": s.Price.InexactFloat64()}
}

func userJSON(u model.User) map[string]any {
	return map[string]any{"id": string(u.ID), "name": u.Name, "surname": u.Surname, "patronymic": u.Patronymic}
}

func assignedJSON(a model.AssignedService) map[string]any {
	return map[string]any{
		"id":               a.ID,
		"serviceId":        a.ServiceID,
		"washOrderId":      a.WashOrderID,
		"serviceName":      a.ServiceName,
		"price":            a.Price.InexactFloat64(),
		"whomAspNetUserId": string(a.UserID),
		"salary":           a.Salary.InexactFloat64(),
		"isCompleted":      a.Completed,
	}
}

func (fb *fakeBackend) listServices(w http.ResponseWriter, _ *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	items := make([]map[string]any, 0, len(fb.services))
	for _, s := range fb.services {
		items = append(items, serviceJSON(s))
	}
	writeJSON(w, envelope(items))
}

func (fb *fakeBackend) listUsers(w http.ResponseWriter, _ *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	items := make([]map[string]any, 0, len(fb.users))
	for _, u := range fb.users {
		items = append(items, userJSON(u))
	}
	writeJSON(w, envelope(items))
}

func (fb *fakeBackend) listAssigned(w http.ResponseWriter, r *http.Request) {
	orderID, _ := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	items := make([]map[string]any, 0)
	for _, a := range fb.assigned {
		if a.WashOrderID == orderID {
			items = append(items, assignedJSON(a))
		}
	}
	writeJSON(w, envelope(items))
}

func (fb *fakeBackend) salaryLookup(w http.ResponseWriter, r *http.Request) {
	serviceID, _ := strconv.ParseInt(r.URL.Query().Get("serviceId"), 10, 64)
	userID := model.UserID(r.URL.Query().Get("aspNetUserId"))

	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.salaryLookups++
	rate, ok := fb.rules[ruleKey(serviceID, userID)]
	if !ok {
		http.Error(w, "salary setting not found", http.StatusNotFound)
		return
	}
	writeJSON(w, rate.InexactFloat64())
}

func (fb *fakeBackend) createRule(w http.ResponseWriter, r *http.Request) {
	var req model.SalarySettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.ruleCreates++
	fb.rules[ruleKey(req.ServiceID, req.UserID)] = decimal.NewFromFloat(req.Salary)
	w.WriteHeader(http.StatusOK)
}

func (fb *fakeBackend) createWash(w http.ResponseWriter, r *http.Request) {
	var req model.WashServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.washCreates++
	fb.lastWash = req
	fb.nextID++
	a := model.AssignedService{
		ID:          fb.nextID,
		ServiceID:   req.ServiceID,
		WashOrderID: req.WashOrderID,
		ServiceName: req.ServiceName,
		Price:       decimal.NewFromFloat(req.Price),
		UserID:      req.UserID,
		Salary:      decimal.NewFromFloat(req.Salary),
	}
	fb.assigned = append(fb.assigned, a)
	writeJSON(w, map[string]any{"id": a.ID})
}

func (fb *fakeBackend) deleteWash(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for i, a := range fb.assigned {
		if a.ID == id {
			fb.assigned = append(fb.assigned[:i], fb.assigned[i+1:]...)
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	http.Error(w, "wash service not found", http.StatusNotFound)
}

func (fb *fakeBackend) detail(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	fb.mu.Lock()
	defer fb.mu.Unlock()

	for _, a := range fb.assigned {
		if a.ID != id {
			continue
		}
		doc := assignedJSON(a)
		doc["$id"] = "1"
		for _, s := range fb.services {
			if s.ID == a.ServiceID {
				svc := serviceJSON(s)
				svc["$id"] = "2"
				doc["service"] = svc
			}
		}
		doc["washOrder"] = map[string]any{
			"$id":          "3",
			"id":           a.WashOrderID,
			"carNumber":    "A001AA",
			"washServices": map[string]any{"$id": "4", "$values": []any{map[string]any{"$ref": "1"}}},
		}
		doc["whomAspNetUser"] = map[string]any{"$ref": "9"}
		writeJSON(w, doc)
		return
	}
	http.Error(w, "wash service not found", http.StatusNotFound)
}
