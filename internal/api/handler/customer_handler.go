package handler

import (
	"customer-service/internal/api/handler/dto"
	"customer-service/internal/config"
	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type CustomerHandler struct {
	service    customer.CustomerService
	pagination config.PaginationConfig
	logger     *slog.Logger
}

func NewCustomerHandler(s customer.CustomerService, pagination config.PaginationConfig, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("customer service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		service:    s,
		pagination: pagination,
		logger:     l.With("component", "CustomerHandler"),
	}
}

func getCustomerIDFromURL(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "customerID")
	if idStr == "" {
		return 0, apperrors.NewValidationError("customerID", "customerID not found in URL path")
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("customerID", fmt.Sprintf("invalid customerID %q", idStr))
	}
	return id, nil
}

// optionalParam treats a blank query parameter as absent.
func optionalParam(values url.Values, key string) *string {
	v := strings.TrimSpace(values.Get(key))
	if v == "" {
		return nil
	}
	return &v
}

func intParam(values url.Values, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(key, fmt.Sprintf("%s must be an integer", key))
	}
	return n, nil
}

func (h *CustomerHandler) parseListQuery(r *http.Request) (customer.ListQuery, error) {
	values := r.URL.Query()
	query := customer.ListQuery{
		Name:  optionalParam(values, "name"),
		Phone: optionalParam(values, "phone"),
	}

	if raw := optionalParam(values, "status"); raw != nil {
		status, err := customer.ParseStatus(*raw)
		if err != nil {
			return query, err
		}
		query.Status = &status
	}

	page, err := intParam(values, "page", 0)
	if err != nil {
		return query, err
	}
	if page < 0 {
		return query, apperrors.NewValidationError("page", "page cannot be negative")
	}

	size, err := intParam(values, "size", h.pagination.DefaultPageSize)
	if err != nil {
		return query, err
	}
	if size <= 0 {
		return query, apperrors.NewValidationError("size", "size must be positive")
	}
	if h.pagination.MaxPageSize > 0 && size > h.pagination.MaxPageSize {
		size = h.pagination.MaxPageSize
	}
	if page > customer.MaxPage(size) {
		return query, apperrors.NewValidationError("page", "page is too large for the page size")
	}

	query.Page = page
	query.PageSize = size
	return query, nil
}

// CreateCustomer handles POST /customers
// @Summary Create a new customer
// @Description Creates an ACTIVE customer. The name must not be held by another active customer, compared case-insensitively.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body dto.CreateCustomerRequest true "Customer creation request"
// @Success 201 {object} dto.CustomerResponse "Customer successfully created"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 409 {object} dto.ErrorResponse "An active customer already holds the name"
// @Failure 500 {object} dto.ErrorResponse "Internal server error during creation"
// @Router /customers [post]
// @Security BearerAuth
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received create customer request")

	var req dto.CreateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Validation failed", slog.Any("error", err))
		respondError(w, h.logger, err)
		return
	}

	createdCustomer, err := h.service.CreateCustomer(r.Context(), req.Name, req.Phone)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Service failed to create customer", slog.Any("error", err))
		respondError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/customers/%d", createdCustomer.ID))
	respondJSON(w, h.logger, http.StatusCreated, dto.NewCustomerResponse(createdCustomer))
}

// ListCustomers handles GET /customers
// @Summary List customers
// @Description Returns one page of customers ordered by id. Name and phone match case-insensitive substrings. Status defaults to ACTIVE.
// @Tags Customers
// @Produce json
// @Param name query string false "Name fragment"
// @Param phone query string false "Phone fragment"
// @Param status query string false "Lifecycle status" Enums(ACTIVE, REMOVED)
// @Param page query int false "Zero-based page index" minimum(0) default(0)
// @Param size query int false "Page size, capped at the configured maximum" minimum(1) default(20)
// @Success 200 {object} dto.CustomerPageResponse "A page of customers"
// @Failure 400 {object} dto.ErrorResponse "Invalid filter or paging parameters"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers [get]
// @Security BearerAuth
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	query, err := h.parseListQuery(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Invalid list query", slog.Any("error", err))
		respondError(w, h.logger, err)
		return
	}

	page, err := h.service.GetAllCustomers(r.Context(), query)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to list customers", slog.Any("error", err))
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.NewCustomerPageResponse(page))
}

// GetCustomer handles GET /customers/{customerID}
// @Summary Get a customer
// @Description Returns an ACTIVE customer. Removed customers are reported as not found.
// @Tags Customers
// @Produce json
// @Param customerID path int true "Customer ID"
// @Success 200 {object} dto.CustomerResponse "The customer"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found or removed"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [get]
// @Security BearerAuth
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	cust, err := h.service.GetCustomer(r.Context(), customerID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Service failed to get customer", slog.Int64("customerID", customerID), slog.Any("error", err))
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.NewCustomerResponse(cust))
}

// UpdateCustomer handles PUT /customers/{customerID}
// @Summary Update a customer
// @Description Replaces name and phone of an ACTIVE customer. Status is never changed here.
// @Tags Customers
// @Accept json
// @Produce json
// @Param customerID path int true "Customer ID"
// @Param request body dto.UpdateCustomerRequest true "New customer details"
// @Success 200 {object} dto.CustomerResponse "Customer updated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request"
// @Failure 404 {object} dto.ErrorResponse "Customer not found or removed"
// @Failure 409 {object} dto.ErrorResponse "Another active customer already holds the name"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [put]
// @Security BearerAuth
func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var req dto.UpdateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, h.logger, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, h.logger, err)
		return
	}

	updated, err := h.service.UpdateCustomer(r.Context(), customerID, req.Name, req.Phone)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Service failed to update customer", slog.Int64("customerID", customerID), slog.Any("error", err))
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.NewCustomerResponse(updated))
}

// DeleteCustomer handles DELETE /customers/{customerID}
// @Summary Remove a customer
// @Description Moves an ACTIVE customer to REMOVED. The record is kept but hidden from lookups, and its name becomes free.
// @Tags Customers
// @Param customerID path int true "Customer ID"
// @Success 204 "Customer removed"
// @Failure 400 {object} dto.ErrorResponse "Invalid customer ID"
// @Failure 404 {object} dto.ErrorResponse "Customer not found or already removed"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /customers/{customerID} [delete]
// @Security BearerAuth
func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	if err := h.service.DeleteCustomer(r.Context(), customerID); err != nil {
		h.logger.WarnContext(r.Context(), "Service failed to remove customer", slog.Int64("customerID", customerID), slog.Any("error", err))
		respondError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
