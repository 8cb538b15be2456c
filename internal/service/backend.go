package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"washdesk/internal/graph"
	"washdesk/internal/metrics"
	"washdesk/internal/model"
)

const (
	pathServices         = "/api/Service/GetAllServices"
	pathUsers            = "/api/Director/GetAllUsers"
	pathAssignedServices = "/api/WashService/AllWashServicesOnOrderAsync"
	pathSalaryLookup     = "/api/Salary/GetSalaryUser"
	pathSalaryCreate     = "/api/Salary/createsalarysetting"
	pathWashCreate       = "/api/WashService/CreateWashService"
	pathWashDelete       = "/api/WashService/DeleteWashServiceFromOrder"
	pathWashDetail       = "/api/WashService/DetailsWashService"

	maxResponseBody = 8 << 20
	maxErrorBody    = 512
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// BackendClient talks to the car-wash REST backend.
type BackendClient struct {
	baseURL string
	client  *http.Client
	tokens  TokenSource
}

func NewBackendClient(baseURL string, timeout time.Duration, tokens TokenSource) *BackendClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BackendClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

func (c *BackendClient) Services(ctx context.Context) ([]model.Service, error) {
	var services []model.Service
	if err := c.getList(ctx, pathServices, nil, &services); err != nil {
		return nil, fmt.Errorf("get services: %w", err)
	}
	return services, nil
}

func (c *BackendClient) Users(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.getList(ctx, pathUsers, nil, &users); err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	return users, nil
}

func (c *BackendClient) AssignedServices(ctx context.Context, orderID int64) ([]model.AssignedService, error) {
	var assigned []model.AssignedService
	q := url.Values{"id": {strconv.FormatInt(orderID, 10)}}
	if err := c.getList(ctx, pathAssignedServices, q, &assigned); err != nil {
		return nil, fmt.Errorf("get assigned services for order %d: %w", orderID, err)
	}
	return assigned, nil
}

// SalaryRate returns the rate stored for the pair. A missing rule is reported
// as ErrNotFound.
func (c *BackendClient) SalaryRate(ctx context.Context, serviceID int64, userID model.UserID) (decimal.Decimal, error) {
	q := url.Values{
		"serviceId":    {strconv.FormatInt(serviceID, 10)},
		"aspNetUserId": {string(userID)},
	}
	data, err := c.do(ctx, http.MethodGet, pathSalaryLookup, q, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get salary rule: %w", err)
	}
	rate, err := parseRate(data)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get salary rule: %w", err)
	}
	return rate, nil
}

func (c *BackendClient) CreateSalarySetting(ctx context.Context, rule model.SalaryRule) error {
	body := model.SalarySettingRequest{
		ServiceID: rule.ServiceID,
		UserID:    rule.UserID,
		Salary:    rule.Rate.InexactFloat64(),
	}
	if _, err := c.do(ctx, http.MethodPost, pathSalaryCreate, nil, body); err != nil {
		return fmt.Errorf("create salary rule: %w", err)
	}
	return nil
}

// CreateWashService creates an assignment and returns its id, or 0 when the
// backend does not echo one.
func (c *BackendClient) CreateWashService(ctx context.Context, req model.WashServiceRequest) (int64, error) {
	data, err := c.do(ctx, http.MethodPost, pathWashCreate, nil, req)
	if err != nil {
		return 0, fmt.Errorf("create wash service: %w", err)
	}
	return gjson.GetBytes(data, "id").Int(), nil
}

func (c *BackendClient) DeleteWashService(ctx context.Context, id int64) error {
	q := url.Values{"id": {strconv.FormatInt(id, 10)}}
	if _, err := c.do(ctx, http.MethodPatch, pathWashDelete, q, nil); err != nil {
		return fmt.Errorf("delete wash service %d: %w", id, err)
	}
	return nil
}

// WashServiceDetail loads one assignment. The backend serializes the detail as
// an object graph with $id/$ref tags.
func (c *BackendClient) WashServiceDetail(ctx context.Context, id int64) (*model.AssignedServiceDetail, error) {
	q := url.Values{"id": {strconv.FormatInt(id, 10)}}
	data, err := c.do(ctx, http.MethodGet, pathWashDetail, q, nil)
	if err != nil {
		return nil, fmt.Errorf("get wash service %d: %w", id, err)
	}
	var detail model.AssignedServiceDetail
	if err := decodeGraph(data, &detail); err != nil {
		return nil, fmt.Errorf("get wash service %d: %w", id, err)
	}
	return &detail, nil
}

func (c *BackendClient) getList(ctx context.Context, endpoint string, q url.Values, dst any) error {
	data, err := c.do(ctx, http.MethodGet, endpoint, q, nil)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return decodeGraph(data, dst)
}

func (c *BackendClient) do(ctx context.Context, method, endpoint string, q url.Values, body any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	u := c.baseURL + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observe(endpoint, 0, start)
		slog.Warn("backend request failed", "method", method, "endpoint", endpoint, "error", err)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, endpoint, err)
	}
	defer resp.Body.Close()
	observe(endpoint, resp.StatusCode, start)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody] + "...(truncated)"
		}
		return nil, &StatusError{Method: method, Path: endpoint, Code: resp.StatusCode, Body: msg}
	}
	return data, nil
}

func observe(endpoint string, status int, start time.Time) {
	result := metrics.Result(status)
	metrics.BackendRequests.WithLabelValues(endpoint, result).Inc()
	metrics.BackendLatency.WithLabelValues(endpoint, result).Observe(time.Since(start).Seconds())
}

// decodeGraph resolves $id/$ref tags, unwraps $values list envelopes and
// decodes the result into dst.
func decodeGraph(data []byte, dst any) error {
	v, err := graph.Parse(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	v = graph.UnwrapLists(graph.Resolve(v), graph.DefaultValuesKey)
	if err := graph.Decode(v, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrBadPayload, err)
	}
	return nil
}

// parseRate accepts a bare number, a numeric string or an object with a
// numeric "salary" field.
func parseRate(data []byte) (decimal.Decimal, error) {
	if !gjson.ValidBytes(data) {
		return decimal.Zero, fmt.Errorf("%w: salary is not json", ErrBadPayload)
	}
	r := gjson.ParseBytes(data)
	if r.IsObject() {
		r = r.Get("salary")
	}

	var (
		rate decimal.Decimal
		err  error
	)
	switch r.Type {
	case gjson.Number:
		rate, err = decimal.NewFromString(r.Raw)
	case gjson.String:
		rate, err = decimal.NewFromString(strings.TrimSpace(r.Str))
	default:
		return decimal.Zero, fmt.Errorf("%w: salary is not a number", ErrBadPayload)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: salary: %w", ErrBadPayload, err)
	}
	return rate, nil
}
