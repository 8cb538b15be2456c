package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"washdesk/internal/metrics"
	"washdesk/internal/model"
)

// Backend is the part of the REST API the reconciler depends on.
type Backend interface {
	Services(ctx context.Context) ([]model.Service, error)
	Users(ctx context.Context) ([]model.User, error)
	AssignedServices(ctx context.Context, orderID int64) ([]model.AssignedService, error)
	SalaryRate(ctx context.Context, serviceID int64, userID model.UserID) (decimal.Decimal, error)
	CreateSalarySetting(ctx context.Context, rule model.SalaryRule) error
	CreateWashService(ctx context.Context, req model.WashServiceRequest) (int64, error)
	DeleteWashService(ctx context.Context, id int64) error
	WashServiceDetail(ctx context.Context, id int64) (*model.AssignedServiceDetail, error)
}

type State int

const (
	StateIdle State = iota
	StateSalaryLookup
	StateRuleFound
	StateRulePrompt
	StateSubmitting
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSalaryLookup:
		return "salary_lookup"
	case StateRuleFound:
		return "rule_found"
	case StateRulePrompt:
		return "rule_prompt"
	case StateSubmitting:
		return "submitting"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome tells the caller of SelectUser what the screen should show next.
type Outcome int

const (
	OutcomeCommitted Outcome = iota
	OutcomeRuleRequired
)

func (o Outcome) String() string {
	if o == OutcomeRuleRequired {
		return "rule_required"
	}
	return "committed"
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Selection is the pending (service, user) pick of an order screen.
type Selection struct {
	Service *model.Service  `json:"service,omitempty"`
	Price   decimal.Decimal  `json:"price"`
	User    *model.User      `json:"user,omitempty"`
	Rate    *decimal.Decimal `json:"rate,omitempty"`
	State   State            `json:"state"`
}

// Reconciler keeps one order's assignment list in line with the backend while
// the user picks services and employees. One reconciler serves one order
// screen; it is safe for concurrent use.
type Reconciler struct {
	backend Backend
	orderID int64

	mu               sync.Mutex
	services         []model.Service
	users            []model.User
	filteredServices []model.Service
	filteredUsers    []model.User
	assigned         []model.AssignedService
	sel              Selection
	// generation counts confirmed mutations of assigned.
	generation uint64

	// submitting holds a token while an assignment is being created.
	submitting chan struct{}
	refetches  singleflight.Group
	background sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewReconciler(backend Backend, orderID int64) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		backend:    backend,
		orderID:    orderID,
		submitting: make(chan struct{}, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (r *Reconciler) OrderID() int64 { return r.orderID }

// Load refreshes the catalog, the directory and the order's assignments.
func (r *Reconciler) Load(ctx context.Context) error {
	services, err := r.backend.Services(ctx)
	if err != nil {
		return err
	}
	users, err := r.backend.Users(ctx)
	if err != nil {
		return err
	}
	assigned, err := r.backend.AssignedServices(ctx, r.orderID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.services = services
	r.users = users
	r.filteredServices = slices.Clone(services)
	r.filteredUsers = slices.Clone(users)
	r.assigned = assigned
	r.mu.Unlock()

	slog.Debug("order screen loaded", "order", r.orderID,
		"services", len(services), "users", len(users), "assigned", len(assigned))
	return nil
}

func (r *Reconciler) Service(id int64) (model.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.services {
		if s.ID == id {
			return s, nil
		}
	}
	return model.Service{}, ErrUnknownService
}

func (r *Reconciler) User(id model.UserID) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, ErrUnknownUser
}

// FilterServices recomputes the filtered catalog from the full one.
func (r *Reconciler) FilterServices(text string) []model.Service {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filteredServices = FilterServices(r.services, text)
	return slices.Clone(r.filteredServices)
}

// FilterUsers recomputes the filtered directory from the full one.
func (r *Reconciler) FilterUsers(text string) []model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filteredUsers = FilterUsers(r.users, text)
	return slices.Clone(r.filteredUsers)
}

func (r *Reconciler) Assigned() []model.AssignedService {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.assigned)
}

func (r *Reconciler) Selection() Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sel
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sel.State
}

// SelectService starts a new pick with the catalog price as the editable price.
func (r *Reconciler) SelectService(s model.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sel = Selection{Service: &s, Price: s.Price, State: StateIdle}
}

// SetPrice overrides the catalog price of the pending pick.
func (r *Reconciler) SetPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sel.Service == nil {
		return ErrNoServiceSelected
	}
	r.sel.Price = price
	return nil
}

// PreviewPayout is the payout the pending pick would get at rate.
func (r *Reconciler) PreviewPayout(rate decimal.Decimal) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sel.Service == nil {
		return decimal.Zero, ErrNoServiceSelected
	}
	return Payout(r.sel.Price, rate), nil
}

// SelectUser picks the employee and looks up their salary rule for the
// selected service. A missing rule yields OutcomeRuleRequired and the screen
// must ask for a rate (see CreateSalaryRule); an existing rule is submitted
// right away.
func (r *Reconciler) SelectUser(ctx context.Context, u model.User) (Outcome, error) {
	r.mu.Lock()
	if r.sel.Service == nil {
		r.mu.Unlock()
		return 0, ErrNoServiceSelected
	}
	r.sel.User = &u
	r.sel.Rate = nil
	service := *r.sel.Service
	r.mu.Unlock()

	return r.lookupSalary(ctx, service, u)
}

func (r *Reconciler) lookupSalary(ctx context.Context, s model.Service, u model.User) (Outcome, error) {
	r.setState(StateSalaryLookup)

	rate, err := r.backend.SalaryRate(ctx, s.ID, u.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		r.setState(StateRulePrompt)
		return OutcomeRuleRequired, nil
	case err != nil:
		r.setState(StateIdle)
		return 0, err
	}

	r.mu.Lock()
	r.sel.Rate = &rate
	r.sel.State = StateRuleFound
	r.mu.Unlock()
	if _, err := r.CommitAssignment(ctx, s, u, rate); err != nil {
		return 0, err
	}
	return OutcomeCommitted, nil
}

// CreateSalaryRule stores the rate for the pending pick and submits the
// assignment with it. It is only valid while a rate is being asked for, or
// after the rule was stored but the submission did not start; then only the
// submission is retried, with the stored rate.
func (r *Reconciler) CreateSalaryRule(ctx context.Context, rate decimal.Decimal) (*model.AssignedService, error) {
	if !rate.IsPositive() {
		return nil, ErrInvalidRate
	}

	r.mu.Lock()
	if r.sel.Service == nil || r.sel.User == nil {
		r.mu.Unlock()
		return nil, ErrNoRulePending
	}
	service, user := *r.sel.Service, *r.sel.User
	switch {
	case r.sel.State == StateRuleFound && r.sel.Rate != nil:
		stored := *r.sel.Rate
		r.mu.Unlock()
		return r.CommitAssignment(ctx, service, user, stored)
	case r.sel.State != StateRulePrompt:
		r.mu.Unlock()
		return nil, ErrNoRulePending
	}
	r.mu.Unlock()

	rule := model.SalaryRule{ServiceID: service.ID, UserID: user.ID, Rate: rate}
	if err := r.backend.CreateSalarySetting(ctx, rule); err != nil {
		r.setState(StateFailed)
		return nil, err
	}

	r.mu.Lock()
	r.sel.Rate = &rate
	r.sel.State = StateRuleFound
	r.mu.Unlock()
	return r.CommitAssignment(ctx, service, user, rate)
}

// CommitAssignment creates the assignment on the backend. Only one submission
// runs at a time; an overlapping call returns ErrSubmissionInFlight without
// contacting the backend. The local list changes only after the backend
// confirms, and a refetch is scheduled in the background.
func (r *Reconciler) CommitAssignment(ctx context.Context, s model.Service, u model.User, rate decimal.Decimal) (*model.AssignedService, error) {
	select {
	case r.submitting <- struct{}{}:
	default:
		metrics.Submissions.WithLabelValues("rejected").Inc()
		return nil, ErrSubmissionInFlight
	}
	defer func() { <-r.submitting }()

	r.mu.Lock()
	price := s.Price
	if r.sel.Service != nil && r.sel.Service.ID == s.ID {
		price = r.sel.Price
	}
	r.sel.State = StateSubmitting
	r.mu.Unlock()

	payout := Payout(price, rate)
	req := model.WashServiceRequest{
		ServiceID:   s.ID,
		WashOrderID: r.orderID,
		Price:       price.InexactFloat64(),
		ServiceName: s.Name,
		UserID:      u.ID,
		Salary:      payout.InexactFloat64(),
	}
	id, err := r.backend.CreateWashService(ctx, req)
	if err != nil {
		r.setState(StateFailed)
		metrics.Submissions.WithLabelValues("failed").Inc()
		slog.Error("assignment failed", "order", r.orderID, "service", s.ID, "user", u.ID, "error", err)
		return nil, err
	}

	created := model.AssignedService{
		ID:          id,
		ServiceID:   s.ID,
		WashOrderID: r.orderID,
		ServiceName: s.Name,
		Price:       price,
		UserID:      u.ID,
		Salary:      payout,
	}
	r.mu.Lock()
	// a refetch may already have brought the new entry in
	if id == 0 || !slices.ContainsFunc(r.assigned, func(a model.AssignedService) bool { return a.ID == id }) {
		r.assigned = append(r.assigned, created)
	}
	r.generation++
	r.sel.State = StateCommitted
	r.mu.Unlock()

	metrics.Submissions.WithLabelValues("committed").Inc()
	slog.Info("assignment created", "order", r.orderID, "service", s.ID, "user", u.ID, "payout", payout.String())
	r.scheduleRefresh()
	return &created, nil
}

// RemoveAssignment deletes an assignment. On failure the local list is left
// as it was.
func (r *Reconciler) RemoveAssignment(ctx context.Context, id int64) error {
	if err := r.backend.DeleteWashService(ctx, id); err != nil {
		slog.Error("assignment removal failed", "order", r.orderID, "id", id, "error", err)
		return err
	}

	r.mu.Lock()
	r.assigned = slices.DeleteFunc(r.assigned, func(a model.AssignedService) bool { return a.ID == id })
	r.generation++
	r.mu.Unlock()

	slog.Info("assignment removed", "order", r.orderID, "id", id)
	r.scheduleRefresh()
	return nil
}

// Detail loads one assignment of this order with the service, order and user
// it refers to. Assignments of other orders are reported as ErrNotFound.
func (r *Reconciler) Detail(ctx context.Context, id int64) (*model.AssignedServiceDetail, error) {
	d, err := r.backend.WashServiceDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.WashOrderID != 0 && d.WashOrderID != r.orderID {
		return nil, fmt.Errorf("assignment %d is on order %d: %w", id, d.WashOrderID, ErrNotFound)
	}
	return d, nil
}

// Refresh replaces the local assignment list with the backend's. Concurrent
// refreshes of the same order share one request. A list read before a
// mutation was confirmed is never applied; the request is repeated instead.
func (r *Reconciler) Refresh(ctx context.Context) error {
	key := strconv.FormatInt(r.orderID, 10)
	_, err, _ := r.refetches.Do(key, func() (any, error) {
		for {
			r.mu.Lock()
			generation := r.generation
			r.mu.Unlock()

			assigned, err := r.backend.AssignedServices(ctx, r.orderID)
			if err != nil {
				return nil, err
			}

			r.mu.Lock()
			if r.generation == generation {
				r.assigned = assigned
				r.mu.Unlock()
				return nil, nil
			}
			r.mu.Unlock()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	})
	if err != nil {
		return fmt.Errorf("refresh order %d: %w", r.orderID, err)
	}
	return nil
}

func (r *Reconciler) scheduleRefresh() {
	r.background.Add(1)
	go func() {
		defer r.background.Done()
		if err := r.Refresh(r.ctx); err != nil && r.ctx.Err() == nil {
			slog.Warn("background refresh failed", "order", r.orderID, "error", err)
		}
	}()
}

// Wait blocks until scheduled refreshes have finished.
func (r *Reconciler) Wait() {
	r.background.Wait()
}

// Close cancels pending refreshes and waits for them to return.
func (r *Reconciler) Close() {
	r.cancel()
	r.background.Wait()
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	r.sel.State = s
	r.mu.Unlock()
}
