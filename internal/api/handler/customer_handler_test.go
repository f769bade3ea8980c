package handler_test

import (
	"bytes"
	"context"
	"customer-service/internal/api/handler"
	"customer-service/internal/api/handler/dto"
	"customer-service/internal/config"
	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCustomerService struct {
	mock.Mock
}

func (_m *MockCustomerService) CreateCustomer(ctx context.Context, name, phone string) (*customer.Customer, error) {
	ret := _m.Called(ctx, name, phone)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) GetAllCustomers(ctx context.Context, query customer.ListQuery) (*customer.Page, error) {
	ret := _m.Called(ctx, query)

	var r0 *customer.Page
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Page)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	ret := _m.Called(ctx, customerID)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) UpdateCustomer(ctx context.Context, customerID int64, name, phone string) (*customer.Customer, error) {
	ret := _m.Called(ctx, customerID, name, phone)

	var r0 *customer.Customer
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*customer.Customer)
	}
	return r0, ret.Error(1)
}

func (_m *MockCustomerService) DeleteCustomer(ctx context.Context, customerID int64) error {
	return _m.Called(ctx, customerID).Error(0)
}

var _ customer.CustomerService = (*MockCustomerService)(nil)

var (
	testLogger     = slog.New(slog.NewTextHandler(io.Discard, nil))
	testPagination = config.PaginationConfig{DefaultPageSize: 20, MaxPageSize: 100}
	testCreated    = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func setupRouter() (*MockCustomerService, http.Handler) {
	svc := new(MockCustomerService)
	h := handler.NewCustomerHandler(svc, testPagination, testLogger)

	r := chi.NewRouter()
	r.Route("/customers", func(r chi.Router) {
		r.Post("/", h.CreateCustomer)
		r.Get("/", h.ListCustomers)
		r.Get("/{customerID}", h.GetCustomer)
		r.Put("/{customerID}", h.UpdateCustomer)
		r.Delete("/{customerID}", h.DeleteCustomer)
	})
	return svc, r
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorDetail {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func sampleCustomer(id int64) *customer.Customer {
	return &customer.Customer{ID: id, Name: "Jane", Phone: "123", Status: customer.StatusActive, CreatedTime: testCreated}
}

func TestCreateCustomerHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc, router := setupRouter()
		svc.On("CreateCustomer", mock.Anything, "Jane", "123").Return(sampleCustomer(1), nil).Once()

		rec := do(t, router, http.MethodPost, "/customers", dto.CreateCustomerRequest{Name: "Jane", Phone: "123"})

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "/customers/1", rec.Header().Get("Location"))
		assert.JSONEq(t, `{
			"id": 1,
			"name": "Jane",
			"phone": "123",
			"status": "ACTIVE",
			"createdTime": "2024-05-01T10:00:00Z",
			"updatedTime": null
		}`, rec.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("Duplicate active name is 409", func(t *testing.T) {
		svc, router := setupRouter()
		svc.On("CreateCustomer", mock.Anything, "Jane", "123").
			Return(nil, fmt.Errorf("%w: name %q is already taken by an active customer", customer.ErrAlreadyExists, "Jane")).Once()

		rec := do(t, router, http.MethodPost, "/customers", dto.CreateCustomerRequest{Name: "Jane", Phone: "123"})

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "already exists")
	})

	t.Run("Blank name is 400 with field", func(t *testing.T) {
		svc, router := setupRouter()

		rec := do(t, router, http.MethodPost, "/customers", dto.CreateCustomerRequest{Name: " ", Phone: "123"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "name", decodeError(t, rec).Field)
		svc.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Unknown fields are rejected", func(t *testing.T) {
		_, router := setupRouter()

		rec := do(t, router, http.MethodPost, "/customers", `{"name":"Jane","phone":"1","status":"REMOVED"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Malformed JSON is 400", func(t *testing.T) {
		_, router := setupRouter()

		rec := do(t, router, http.MethodPost, "/customers", `{"name":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Unexpected failure is 500 with a generic message", func(t *testing.T) {
		svc, router := setupRouter()
		svc.On("CreateCustomer", mock.Anything, "Jane", "123").Return(nil, errors.New("pq: connection refused")).Once()

		rec := do(t, router, http.MethodPost, "/customers", dto.CreateCustomerRequest{Name: "Jane", Phone: "123"})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "An unexpected error occurred.", decodeError(t, rec).Message)
	})
}

func TestListCustomersHandler(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		svc, router := setupRouter()
		svc.On("GetAllCustomers", mock.Anything, customer.ListQuery{Page: 0, PageSize: 20}).
			Return(&customer.Page{Content: []*customer.Customer{sampleCustomer(1)}, Number: 0, Size: 20, TotalElements: 1}, nil).Once()

		rec := do(t, router, http.MethodGet, "/customers", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var page dto.CustomerPageResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
		assert.Len(t, page.Content, 1)
		assert.Equal(t, int64(1), page.TotalElements)
		assert.Equal(t, 1, page.TotalPages)
		svc.AssertExpectations(t)
	})

	t.Run("Filters, status and paging are parsed", func(t *testing.T) {
		svc, router := setupRouter()
		name, phone, status := "jan", "12", customer.StatusRemoved
		svc.On("GetAllCustomers", mock.Anything, customer.ListQuery{
			Name: &name, Phone: &phone, Status: &status, Page: 2, PageSize: 5,
		}).Return(&customer.Page{Number: 2, Size: 5}, nil).Once()

		rec := do(t, router, http.MethodGet, "/customers?name=jan&phone=12&status=removed&page=2&size=5", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"content":[]`)
		svc.AssertExpectations(t)
	})

	t.Run("Blank filters are ignored and size is capped", func(t *testing.T) {
		svc, router := setupRouter()
		svc.On("GetAllCustomers", mock.Anything, customer.ListQuery{Page: 0, PageSize: 100}).
			Return(&customer.Page{Size: 100}, nil).Once()

		rec := do(t, router, http.MethodGet, "/customers?name=&phone=%20&size=1000", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})

	invalid := map[string]string{
		"unknown status": "/customers?status=ARCHIVED",
		"negative page":  "/customers?page=-1",
		"zero size":      "/customers?size=0",
		"textual page":   "/customers?page=first",
	}
	for name, target := range invalid {
		t.Run("Rejects "+name, func(t *testing.T) {
			svc, router := setupRouter()

			rec := do(t, router, http.MethodGet, target, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			svc.AssertNotCalled(t, "GetAllCustomers", mock.Anything, mock.Anything)
		})
	}
	t.Run("Page whose offset overflows is 400", func(t *testing.T) {
		svc, router := setupRouter()

		rec := do(t, router, http.MethodGet, "/customers?page=184467440737095516&size=100", nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "page", decodeError(t, rec).Field)
		svc.AssertNotCalled(t, "GetAllCustomers", mock.Anything, mock.Anything)
	})

	t.Run("Overflow check uses the capped size", func(t *testing.T) {
		svc, router := setupRouter()
		page := customer.MaxPage(100)
		svc.On("GetAllCustomers", mock.Anything, customer.ListQuery{Page: page, PageSize: 100}).
			Return(&customer.Page{Number: page, Size: 100}, nil).Once()

		rec := do(t, router, http.MethodGet, fmt.Sprintf("/customers?page=%d&size=1000", page), nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})
}

func TestGetCustomerHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc, router := setupRouter()
		svc.On("GetCustomer", mock.Anything, int64(7)).Return(sampleCustomer(7), nil).Once()

		rec := do(t, router, http.MethodGet, "/customers/7", nil)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.CustomerResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, int64(7), resp.ID)
	})

	t.Run("Not found or removed is 404", func(t *testing.T) {
		svc, router := setupRouter()
		svc.On("GetCustomer", mock.Anything, int64(8)).Return(nil, fmt.Errorf("%w: id %d", customer.ErrNotFound, 8)).Once()

		rec := do(t, router, http.MethodGet, "/customers/8", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "customer not found: id 8", decodeError(t, rec).Message)
	})

	t.Run("Invalid id is 400", func(t *testing.T) {
		svc, router := setupRouter()

		for _, target := range []string{"/customers/abc", "/customers/0", "/customers/-3"} {
			rec := do(t, router, http.MethodGet, target, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, target)
			assert.Equal(t, "customerID", decodeError(t, rec).Field)
		}
		svc.AssertNotCalled(t, "GetCustomer", mock.Anything, mock.Anything)
	})
}

func TestUpdateCustomerHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc, router := setupRouter()
		updated := sampleCustomer(3)
		updated.Name = "Janet"
		updatedAt := testCreated.Add(time.Hour)
		updated.UpdatedTime = &updatedAt
		svc.On("UpdateCustomer", mock.Anything, int64(3), "Janet", "123").Return(updated, nil).Once()

		rec := do(t, router, http.MethodPut, "/customers/3", dto.UpdateCustomerRequest{Name: "Janet", Phone: "123"})

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.CustomerResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Janet", resp.Name)
		require.NotNil(t, resp.UpdatedTime)
		assert.True(t, resp.UpdatedTime.Equal(updatedAt))
	})

	t.Run("Conflict is 409", func(t *testing.T) {
		svc, router := setupRouter()
		svc.On("UpdateCustomer", mock.Anything, int64(3), "Taken", "1").Return(nil, customer.ErrAlreadyExists).Once()

		rec := do(t, router, http.MethodPut, "/customers/3", dto.UpdateCustomerRequest{Name: "Taken", Phone: "1"})

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Removed is 404", func(t *testing.T) {
		svc, router := setupRouter()
		svc.On("UpdateCustomer", mock.Anything, int64(3), "Jane", "1").Return(nil, customer.ErrNotFound).Once()

		rec := do(t, router, http.MethodPut, "/customers/3", dto.UpdateCustomerRequest{Name: "Jane", Phone: "1"})

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Blank phone is 400", func(t *testing.T) {
		svc, router := setupRouter()

		rec := do(t, router, http.MethodPut, "/customers/3", dto.UpdateCustomerRequest{Name: "Jane"})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "phone", decodeError(t, rec).Field)
		svc.AssertNotCalled(t, "UpdateCustomer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDeleteCustomerHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc, router := setupRouter()
		svc.On("DeleteCustomer", mock.Anything, int64(5)).Return(nil).Once()

		rec := do(t, router, http.MethodDelete, "/customers/5", nil)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("Second removal is 404", func(t *testing.T) {
		svc, router := setupRouter()
		svc.On("DeleteCustomer", mock.Anything, int64(5)).Return(fmt.Errorf("%w: id 5", apperrors.ErrNotFound)).Once()

		rec := do(t, router, http.MethodDelete, "/customers/5", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestNewCustomerHandlerPanics(t *testing.T) {
	assert.Panics(t, func() { handler.NewCustomerHandler(nil, testPagination, testLogger) })
	assert.Panics(t, func() { handler.NewCustomerHandler(new(MockCustomerService), testPagination, nil) })
}
