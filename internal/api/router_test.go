package api_test

import (
	"bytes"
	"context"
	"customer-service/internal/api"
	"customer-service/internal/api/handler/dto"
	"customer-service/internal/config"
	"customer-service/internal/domain/customer"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) CreateCustomer(ctx context.Context, name, phone string) (*customer.Customer, error) {
	args := m.Called(ctx, name, phone)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) GetAllCustomers(ctx context.Context, query customer.ListQuery) (*customer.Page, error) {
	args := m.Called(ctx, query)
	if p, ok := args.Get(0).(*customer.Page); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) UpdateCustomer(ctx context.Context, customerID int64, name, phone string) (*customer.Customer, error) {
	args := m.Called(ctx, customerID, name, phone)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) DeleteCustomer(ctx context.Context, customerID int64) error {
	return m.Called(ctx, customerID).Error(0)
}

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(authEnabled bool) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			RateLimit: config.RateLimitConfig{Enabled: true, RPS: 1000, Burst: 1000},
			Auth:      config.AuthConfig{Enabled: authEnabled, JWTSecret: "router-test-secret", TokenTTL: time.Hour},
		},
		Metrics:    config.MetricsConfig{Path: "/metrics"},
		Pagination: config.PaginationConfig{DefaultPageSize: 20, MaxPageSize: 100},
	}
}

func newRouter(t *testing.T, svc customer.CustomerService, cfg *config.Config) http.Handler {
	t.Helper()
	router, limiter := api.SetupRouter(svc, cfg, logger)
	t.Cleanup(limiter.Close)
	return router
}

func issueToken(t *testing.T, router http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"username":"ops"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.TokenResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.True(t, strings.HasPrefix(resp.Token, "Bearer "))
	return resp.Token
}

func TestSetupRouter_Health(t *testing.T) {
	router := newRouter(t, new(MockCustomerService), testConfig(false))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestSetupRouter_MetricsEndpoint(t *testing.T) {
	router := newRouter(t, new(MockCustomerService), testConfig(false))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "customer_service_http_requests_total")
}

func TestSetupRouter_SwaggerRedirect(t *testing.T) {
	router := newRouter(t, new(MockCustomerService), testConfig(false))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/swagger", nil))

	assert.Equal(t, http.StatusMovedPermanently, rr.Code)
	assert.Equal(t, "/swagger/index.html", rr.Header().Get("Location"))
}

func TestSetupRouter_CustomerRoutesRequireToken(t *testing.T) {
	svc := new(MockCustomerService)
	router := newRouter(t, svc, testConfig(true))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/customers/1", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":{"message":"Unauthorized"}}`, rr.Body.String())
	svc.AssertNotCalled(t, "GetCustomer", mock.Anything, mock.Anything)
}

func TestSetupRouter_CustomerLifecycleWithToken(t *testing.T) {
	svc := new(MockCustomerService)
	router := newRouter(t, svc, testConfig(true))
	token := issueToken(t, router)

	created := &customer.Customer{
		ID:          9,
		Name:        "Ada",
		Phone:       "555-0100",
		Status:      customer.StatusActive,
		CreatedTime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	svc.On("CreateCustomer", mock.Anything, "Ada", "555-0100").Return(created, nil).Once()
	svc.On("GetCustomer", mock.Anything, int64(9)).Return(created, nil).Once()
	svc.On("DeleteCustomer", mock.Anything, int64(9)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/customers", bytes.NewBufferString(`{"name":"Ada","phone":"555-0100"}`))
	req.Header.Set("Authorization", token)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/customers/9", rr.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/customers/9", nil)
	req.Header.Set("Authorization", token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var body dto.CustomerResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, int64(9), body.ID)
	assert.Equal(t, "ACTIVE", body.Status)
	assert.Nil(t, body.UpdatedTime)

	req = httptest.NewRequest(http.MethodDelete, "/customers/9", nil)
	req.Header.Set("Authorization", token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	svc.AssertExpectations(t)
}

func TestSetupRouter_UnknownRoute(t *testing.T) {
	router := newRouter(t, new(MockCustomerService), testConfig(false))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/customers/1", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
