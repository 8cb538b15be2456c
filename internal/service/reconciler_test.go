package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"washdesk/internal/model"
)

// stubBackend answers from function fields; nil fields fall back to
// empty successful answers.
type stubBackend struct {
	services   []model.Service
	users      []model.User
	assigned   func(orderID int64) ([]model.AssignedService, error)
	salary     func(serviceID int64, userID model.UserID) (decimal.Decimal, error)
	createRule func(rule model.SalaryRule) error
	createWash func(req model.WashServiceRequest) (int64, error)
	deleteWash func(id int64) error
	detail     func(id int64) (*model.AssignedServiceDetail, error)
}

func (s *stubBackend) Services(context.Context) ([]model.Service, error) { return s.services, nil }

func (s *stubBackend) Users(context.Context) ([]model.User, error) { return s.users, nil }

func (s *stubBackend) AssignedServices(_ context.Context, orderID int64) ([]model.AssignedService, error) {
	if s.assigned == nil {
		return nil, nil
	}
	return s.assigned(orderID)
}

func (s *stubBackend) SalaryRate(_ context.Context, serviceID int64, userID model.UserID) (decimal.Decimal, error) {
	if s.salary == nil {
		return decimal.Zero, ErrNotFound
	}
	return s.salary(serviceID, userID)
}

func (s *stubBackend) CreateSalarySetting(_ context.Context, rule model.SalaryRule) error {
	if s.createRule == nil {
		return nil
	}
	return s.createRule(rule)
}

func (s *stubBackend) CreateWashService(_ context.Context, req model.WashServiceRequest) (int64, error) {
	if s.createWash == nil {
		return 1, nil
	}
	return s.createWash(req)
}

func (s *stubBackend) DeleteWashService(_ context.Context, id int64) error {
	if s.deleteWash == nil {
		return nil
	}
	return s.deleteWash(id)
}

func (s *stubBackend) WashServiceDetail(_ context.Context, id int64) (*model.AssignedServiceDetail, error) {
	if s.detail == nil {
		return nil, ErrNotFound
	}
	return s.detail(id)
}

var (
	wash = model.Service{ID: 1, Name: "Wash", Price: decimal.NewFromInt(500)}
	wax  = model.Service{ID: 2, Name: "Hot wax", Price: decimal.NewFromInt(800)}
	abc  = model.User{ID: "9", Name: "A", Surname: "B", Patronymic: "C"}
)

func newLoadedReconciler(t *testing.T, b Backend) *Reconciler {
	t.Helper()
	rec := NewReconciler(b, 42)
	t.Cleanup(rec.Close)
	require.NoError(t, rec.Load(context.Background()))
	return rec
}

func TestReconciler_SelectUserRequiresService(t *testing.T) {
	rec := newLoadedReconciler(t, &stubBackend{})

	_, err := rec.SelectUser(context.Background(), abc)
	require.ErrorIs(t, err, ErrNoServiceSelected)
	assert.Equal(t, StateIdle, rec.State())
}

func TestReconciler_SelectServiceSeedsPrice(t *testing.T) {
	rec := newLoadedReconciler(t, &stubBackend{services: []model.Service{wash}})

	rec.SelectService(wash)
	sel := rec.Selection()
	require.NotNil(t, sel.Service)
	assert.True(t, sel.Price.Equal(decimal.NewFromInt(500)))
	assert.Nil(t, sel.User)

	require.NoError(t, rec.SetPrice(decimal.NewFromInt(450)))
	assert.True(t, rec.Selection().Price.Equal(decimal.NewFromInt(450)))
	assert.ErrorIs(t, rec.SetPrice(decimal.NewFromInt(-1)), ErrInvalidPrice)
}

func TestReconciler_RuleMissingPromptsForRate(t *testing.T) {
	var created []model.SalaryRule
	var submitted []model.WashServiceRequest
	b := &stubBackend{
		createRule: func(rule model.SalaryRule) error {
			created = append(created, rule)
			return nil
		},
		createWash: func(req model.WashServiceRequest) (int64, error) {
			submitted = append(submitted, req)
			return 7, nil
		},
	}
	rec := newLoadedReconciler(t, b)
	ctx := context.Background()

	rec.SelectService(wash)
	outcome, err := rec.SelectUser(ctx, abc)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRuleRequired, outcome)
	assert.Equal(t, StateRulePrompt, rec.State())
	assert.Empty(t, submitted)

	payout, err := rec.PreviewPayout(decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Equal(t, "250", payout.String())

	a, err := rec.CreateSalaryRule(ctx, decimal.NewFromInt(50))
	require.NoError(t, err)
	rec.Wait()

	require.Len(t, created, 1)
	assert.Equal(t, model.SalaryRule{ServiceID: 1, UserID: "9", Rate: decimal.NewFromInt(50)}, created[0])
	require.Len(t, submitted, 1)
	assert.Equal(t, 250.0, submitted[0].Salary)
	assert.Equal(t, int64(42), submitted[0].WashOrderID)
	assert.Equal(t, int64(7), a.ID)
	assert.Equal(t, StateCommitted, rec.State())
}

func TestReconciler_RuleFoundCommitsDirectly(t *testing.T) {
	var submitted []model.WashServiceRequest
	b := &stubBackend{
		salary: func(int64, model.UserID) (decimal.Decimal, error) { return decimal.NewFromInt(300), nil },
		createWash: func(req model.WashServiceRequest) (int64, error) {
			submitted = append(submitted, req)
			return 8, nil
		},
	}
	rec := newLoadedReconciler(t, b)

	rec.SelectService(wax)
	outcome, err := rec.SelectUser(context.Background(), abc)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, outcome)
	require.Len(t, submitted, 1)
	assert.Equal(t, 300.0, submitted[0].Salary, "rates from 100 up are absolute")
	assert.Equal(t, "Hot wax", submitted[0].ServiceName)
}

func TestReconciler_LookupFailureKeepsState(t *testing.T) {
	boom := &StatusError{Method: "GET", Path: pathSalaryLookup, Code: 500}
	b := &stubBackend{
		salary: func(int64, model.UserID) (decimal.Decimal, error) { return decimal.Zero, boom },
		createWash: func(model.WashServiceRequest) (int64, error) {
			t.Fatal("must not submit after a failed lookup")
			return 0, nil
		},
	}
	rec := newLoadedReconciler(t, b)

	rec.SelectService(wash)
	_, err := rec.SelectUser(context.Background(), abc)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateIdle, rec.State())
	assert.Empty(t, rec.Assigned())
}

func TestReconciler_CreateSalaryRuleOnlyWhenPrompted(t *testing.T) {
	rec := newLoadedReconciler(t, &stubBackend{})
	ctx := context.Background()

	_, err := rec.CreateSalaryRule(ctx, decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrNoRulePending)

	rec.SelectService(wash)
	_, err = rec.SelectUser(ctx, abc)
	require.NoError(t, err)

	_, err = rec.CreateSalaryRule(ctx, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidRate)
	assert.Equal(t, StateRulePrompt, rec.State())
}

func TestReconciler_RulePersistenceFailureStopsSubmission(t *testing.T) {
	b := &stubBackend{
		createRule: func(model.SalaryRule) error { return ErrUnavailable },
		createWash: func(model.WashServiceRequest) (int64, error) {
			t.Fatal("must not submit when the rule was not stored")
			return 0, nil
		},
	}
	rec := newLoadedReconciler(t, b)
	ctx := context.Background()

	rec.SelectService(wash)
	_, err := rec.SelectUser(ctx, abc)
	require.NoError(t, err)

	_, err = rec.CreateSalaryRule(ctx, decimal.NewFromInt(50))
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, StateFailed, rec.State())
	assert.Empty(t, rec.Assigned())
}

func TestReconciler_CommitFailureLeavesCacheUntouched(t *testing.T) {
	existing := model.AssignedService{ID: 3, ServiceID: 2, WashOrderID: 42, ServiceName: "Hot wax"}
	b := &stubBackend{
		assigned:   func(int64) ([]model.AssignedService, error) { return []model.AssignedService{existing}, nil },
		createWash: func(model.WashServiceRequest) (int64, error) { return 0, &StatusError{Code: 400} },
	}
	rec := newLoadedReconciler(t, b)

	_, err := rec.CommitAssignment(context.Background(), wash, abc, decimal.NewFromInt(50))
	require.Error(t, err)
	assert.Equal(t, []model.AssignedService{existing}, rec.Assigned())
	assert.Equal(t, StateFailed, rec.State())

	// the in-flight slot is released after a failure
	b.createWash = func(model.WashServiceRequest) (int64, error) { return 4, nil }
	_, err = rec.CommitAssignment(context.Background(), wash, abc, decimal.NewFromInt(50))
	require.NoError(t, err)
}

func TestReconciler_ConcurrentCommitSubmitsOnce(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	b := &stubBackend{
		assigned: func(int64) ([]model.AssignedService, error) {
			if calls.Load() == 0 {
				return nil, nil
			}
			return []model.AssignedService{{ID: 11, WashOrderID: 42, ServiceName: "Wash"}}, nil
		},
		createWash: func(model.WashServiceRequest) (int64, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			return 11, nil
		},
	}
	rec := newLoadedReconciler(t, b)
	ctx := context.Background()

	firstDone := make(chan error, 1)
	go func() {
		_, err := rec.CommitAssignment(ctx, wash, abc, decimal.NewFromInt(50))
		firstDone <- err
	}()
	<-started

	var wg sync.WaitGroup
	rejected := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rec.CommitAssignment(ctx, wash, abc, decimal.NewFromInt(50))
			rejected <- err
		}()
	}
	wg.Wait()
	close(rejected)
	for err := range rejected {
		assert.ErrorIs(t, err, ErrSubmissionInFlight)
	}

	close(release)
	require.NoError(t, <-firstDone)
	rec.Wait()
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, rec.Assigned(), 1)
}

func TestReconciler_RemoveAssignment(t *testing.T) {
	first := model.AssignedService{ID: 3, WashOrderID: 42, ServiceName: "Wash"}
	second := model.AssignedService{ID: 4, WashOrderID: 42, ServiceName: "Hot wax"}

	var mu sync.Mutex
	server := []model.AssignedService{first, second}
	b := &stubBackend{
		assigned: func(int64) ([]model.AssignedService, error) {
			mu.Lock()
			defer mu.Unlock()
			return append([]model.AssignedService(nil), server...), nil
		},
		deleteWash: func(id int64) error {
			mu.Lock()
			defer mu.Unlock()
			for i, a := range server {
				if a.ID == id {
					server = append(server[:i], server[i+1:]...)
					return nil
				}
			}
			return &StatusError{Code: 404}
		},
	}
	rec := newLoadedReconciler(t, b)
	ctx := context.Background()

	require.NoError(t, rec.RemoveAssignment(ctx, 3))
	rec.Wait()
	assert.Equal(t, []model.AssignedService{second}, rec.Assigned())

	err := rec.RemoveAssignment(ctx, 3)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []model.AssignedService{second}, rec.Assigned())
}

func TestReconciler_Filters(t *testing.T) {
	b := &stubBackend{
		services: []model.Service{wash, wax, {ID: 3, Name: "Interior WASH", Price: decimal.NewFromInt(900)}},
		users:    []model.User{abc, {ID: "10", Name: "Ivan", Surname: "Petrov"}},
	}
	rec := newLoadedReconciler(t, b)

	got := rec.FilterServices("wash")
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)

	assert.Len(t, rec.FilterServices("wax"), 1)
	assert.Len(t, rec.FilterServices(""), 3)

	users := rec.FilterUsers("PETR")
	require.Len(t, users, 1)
	assert.Equal(t, model.UserID("10"), users[0].ID)
	assert.Len(t, rec.FilterUsers(""), 2)
}

func TestReconciler_BackgroundRefreshFailureIsLogged(t *testing.T) {
	var refreshes atomic.Int32
	b := &stubBackend{
		assigned: func(int64) ([]model.AssignedService, error) {
			if refreshes.Add(1) > 1 {
				return nil, errors.New("temporarily down")
			}
			return nil, nil
		},
	}
	rec := newLoadedReconciler(t, b)

	_, err := rec.CommitAssignment(context.Background(), wash, abc, decimal.NewFromInt(50))
	require.NoError(t, err)
	rec.Wait()

	// the optimistic entry stays when the refetch fails
	assert.Len(t, rec.Assigned(), 1)
}

func TestReconciler_CloseStopsRefresh(t *testing.T) {
	blocked := make(chan struct{})
	b := &stubBackend{
		assigned: func(int64) ([]model.AssignedService, error) {
			close(blocked)
			return nil, nil
		},
	}
	rec := NewReconciler(b, 42)

	_, err := rec.CommitAssignment(context.Background(), wash, abc, decimal.NewFromInt(50))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		rec.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	<-blocked
}

func TestReconciler_StoredRuleIsNotCreatedTwice(t *testing.T) {
	var rules, washes int
	b := &stubBackend{
		createRule: func(model.SalaryRule) error {
			rules++
			return nil
		},
		createWash: func(model.WashServiceRequest) (int64, error) {
			washes++
			return 5, nil
		},
	}
	rec := newLoadedReconciler(t, b)
	ctx := context.Background()

	rec.SelectService(wash)
	_, err := rec.SelectUser(ctx, abc)
	require.NoError(t, err)

	// another submission holds the slot
	rec.submitting <- struct{}{}
	_, err = rec.CreateSalaryRule(ctx, decimal.NewFromInt(50))
	require.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, StateRuleFound, rec.State())
	require.NotNil(t, rec.Selection().Rate)
	<-rec.submitting

	a, err := rec.CreateSalaryRule(ctx, decimal.NewFromInt(70))
	require.NoError(t, err)
	rec.Wait()

	assert.Equal(t, 1, rules)
	assert.Equal(t, 1, washes)
	assert.True(t, a.Salary.Equal(decimal.NewFromInt(250)), "the stored rate is used")
	assert.Equal(t, StateCommitted, rec.State())
}

func TestReconciler_Detail(t *testing.T) {
	b := &stubBackend{
		detail: func(id int64) (*model.AssignedServiceDetail, error) {
			orderID := int64(42)
			if id == 6 {
				orderID = 43
			}
			return &model.AssignedServiceDetail{
				AssignedService: model.AssignedService{ID: id, WashOrderID: orderID, ServiceName: "Wash"},
				Service:         &wash,
			}, nil
		},
	}
	rec := newLoadedReconciler(t, b)
	ctx := context.Background()

	d, err := rec.Detail(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Wash", d.Service.Name)

	_, err = rec.Detail(ctx, 6)
	require.ErrorIs(t, err, ErrNotFound)
}
