package customer

import (
	"context"
	"customer-service/internal/event"
	"customer-service/internal/infrastructure/monitoring"
	"customer-service/internal/pkg/apperrors"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

const (
	inputValidationPassed = "Input validation passed"
	customerNotFound      = "Customer not found by repository"
)

// ListQuery is the input of GetAllCustomers. A nil Status means ACTIVE.
type ListQuery struct {
	Name     *string
	Phone    *string
	Status   *Status
	Page     int
	PageSize int
}

type CustomerService interface {
	CreateCustomer(ctx context.Context, name, phone string) (*Customer, error)
	GetAllCustomers(ctx context.Context, query ListQuery) (*Page, error)
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
	UpdateCustomer(ctx context.Context, customerID int64, name, phone string) (*Customer, error)
	DeleteCustomer(ctx context.Context, customerID int64) error
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	pub    event.EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

func NewCustomerService(repo CustomerRepository, eventPublisher event.EventPublisher, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}

	if eventPublisher == nil {
		logger.Warn("Warning: No event publisher provided to NewCustomerService, events will be dropped")
		eventPublisher = event.NoopPublisher{}
	}

	return &customerService{
		repo:   repo,
		pub:    eventPublisher,
		logger: logger.With(slog.String("component", "customerService")),
		now:    currentTime,
	}
}

// Postgres keeps microseconds, so timestamps are truncated to match what a
// later read returns.
func currentTime() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func NewCustomerEventPayload(cust *Customer) event.CustomerEventPayload {
	if cust == nil {
		return event.CustomerEventPayload{}
	}
	return event.CustomerEventPayload{
		CustomerID:  cust.ID,
		Name:        cust.Name,
		Phone:       cust.Phone,
		Status:      cust.Status.String(),
		CreatedTime: cust.CreatedTime,
		UpdatedTime: cust.UpdatedTime,
	}
}

func validateDetails(name, phone string) (string, string, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" {
		return "", "", apperrors.NewValidationError("name", "customer name cannot be empty")
	}
	if phone == "" {
		return "", "", apperrors.NewValidationError("phone", "customer phone cannot be empty")
	}
	return name, phone, nil
}

func (s *customerService) CreateCustomer(ctx context.Context, name, phone string) (*Customer, error) {
	logger := s.logger.With(slog.String("operation", "CreateCustomer"))
	logger.InfoContext(ctx, "Attempting to create new customer")

	name, phone, err := validateDetails(name, phone)
	if err != nil {
		logger.WarnContext(ctx, "Validation failed", slog.Any("error", err))
		return nil, err
	}
	logger = logger.With(slog.String("name", name))
	logger.DebugContext(ctx, inputValidationPassed)

	logger.DebugContext(ctx, "Calling repository FindByNameAndStatus")
	existing, err := s.repo.FindByNameAndStatus(ctx, name, StatusActive)
	switch {
	case err == nil:
		logger.WarnContext(ctx, "Business rule failed: an active customer already holds this name", slog.Int64("existingCustomerID", existing.ID))
		monitoring.RecordNameConflict()
		return nil, fmt.Errorf("%w: name %q is already taken by an active customer", ErrAlreadyExists, name)
	case !errors.Is(err, apperrors.ErrNotFound):
		logger.ErrorContext(ctx, "Repository error checking name uniqueness", slog.Any("error", err))
		return nil, fmt.Errorf("failed to check customer name uniqueness: %w", err)
	}

	customer := NewCustomer(name, phone, s.now())

	logger.DebugContext(ctx, "Calling repository Insert")
	if err := s.repo.Insert(ctx, customer); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			logger.WarnContext(ctx, "Insert rejected by active name constraint", slog.Any("error", err))
			monitoring.RecordNameConflict()
			return nil, fmt.Errorf("%w: name %q is already taken by an active customer", ErrAlreadyExists, name)
		}
		logger.ErrorContext(ctx, "Repository failed to insert new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}
	logger = logger.With(slog.Int64("customerID", customer.ID))
	monitoring.RecordCustomerCreated()

	createdEvent := event.CustomerCreatedEvent{
		Timestamp: s.now(),
		Payload:   NewCustomerEventPayload(customer),
	}
	if pubErr := s.pub.PublishCustomerCreated(ctx, createdEvent); pubErr != nil {
		logger.ErrorContext(ctx, "Customer created, but FAILED to publish creation event", slog.Any("error", pubErr))
	}

	logger.InfoContext(ctx, "Successfully created new customer")
	return customer, nil
}

func (s *customerService) GetAllCustomers(ctx context.Context, query ListQuery) (*Page, error) {
	logger := s.logger.With(slog.String("operation", "GetAllCustomers"))
	logger.InfoContext(ctx, "Attempting to list customers")

	if query.Page < 0 {
		return nil, apperrors.NewValidationError("page", "page index cannot be negative")
	}
	if query.PageSize <= 0 {
		return nil, apperrors.NewValidationError("size", "page size must be positive")
	}
	if query.Page > MaxPage(query.PageSize) {
		return nil, apperrors.NewValidationError("page", "page index is too large for the page size")
	}

	status := StatusActive
	if query.Status != nil {
		status = *query.Status
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}

	filter := Filter{Name: query.Name, Phone: query.Phone, Status: status}
	pageReq := PageRequest{Page: query.Page, Size: query.PageSize}

	logger.DebugContext(ctx, "Calling repository FindAll",
		slog.String("status", status.String()),
		slog.Int("page", pageReq.Page),
		slog.Int("size", pageReq.Size),
	)
	page, err := s.repo.FindAll(ctx, filter, pageReq)
	if err != nil {
		logger.ErrorContext(ctx, "Repository error listing customers", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	if page.Content == nil {
		page.Content = make([]*Customer, 0)
	}

	logger.InfoContext(ctx, "Successfully listed customers",
		slog.Int("count", len(page.Content)),
		slog.Int64("total", page.TotalElements),
	)
	return page, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	logger := s.logger.With(slog.String("operation", "GetCustomer"), slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to get customer by ID")

	customer, err := s.findVisible(ctx, logger, customerID)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "Successfully retrieved customer")
	return customer, nil
}

// findVisible resolves a customer that lookups may see: present and not REMOVED.
func (s *customerService) findVisible(ctx context.Context, logger *slog.Logger, customerID int64) (*Customer, error) {
	logger.DebugContext(ctx, "Calling repository FindByID")
	customer, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, customerNotFound)
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, customerID)
		}
		logger.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}

	if !customer.IsActive() {
		logger.WarnContext(ctx, "Customer is removed, treating as not found")
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, customerID)
	}
	return customer, nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, customerID int64, name, phone string) (*Customer, error) {
	logger := s.logger.With(slog.String("operation", "UpdateCustomer"), slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to update customer")

	name, phone, err := validateDetails(name, phone)
	if err != nil {
		logger.WarnContext(ctx, "Validation failed", slog.Any("error", err))
		return nil, err
	}
	logger.DebugContext(ctx, inputValidationPassed)

	customer, err := s.findVisible(ctx, logger, customerID)
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "Calling repository FindByNameAndStatusExcludingID")
	holder, err := s.repo.FindByNameAndStatusExcludingID(ctx, name, StatusActive, customerID)
	switch {
	case err == nil:
		logger.WarnContext(ctx, "Business rule failed: another active customer already holds this name", slog.Int64("holderCustomerID", holder.ID))
		monitoring.RecordNameConflict()
		return nil, fmt.Errorf("%w: name %q is already taken by an active customer", ErrAlreadyExists, name)
	case !errors.Is(err, apperrors.ErrNotFound):
		logger.ErrorContext(ctx, "Repository error checking name uniqueness", slog.Any("error", err))
		return nil, fmt.Errorf("failed to check customer name uniqueness: %w", err)
	}

	customer.ChangeDetails(name, phone, s.now())

	logger.DebugContext(ctx, "Calling repository Update")
	if err := s.repo.Update(ctx, customer); err != nil {
		return nil, s.translateWriteError(ctx, logger, customerID, name, err)
	}
	monitoring.RecordCustomerUpdated()

	updatedEvent := event.CustomerUpdatedEvent{
		Timestamp: s.now(),
		Payload:   NewCustomerEventPayload(customer),
	}
	if pubErr := s.pub.PublishCustomerUpdated(ctx, updatedEvent); pubErr != nil {
		logger.ErrorContext(ctx, "Customer updated, but FAILED to publish update event", slog.Any("error", pubErr))
	}

	logger.InfoContext(ctx, "Successfully updated customer")
	return customer, nil
}

func (s *customerService) DeleteCustomer(ctx context.Context, customerID int64) error {
	logger := s.logger.With(slog.String("operation", "DeleteCustomer"), slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to remove customer")

	customer, err := s.findVisible(ctx, logger, customerID)
	if err != nil {
		return err
	}

	customer.Remove(s.now())

	logger.DebugContext(ctx, "Calling repository Update", slog.String("status", customer.Status.String()))
	if err := s.repo.Update(ctx, customer); err != nil {
		return s.translateWriteError(ctx, logger, customerID, customer.Name, err)
	}
	monitoring.RecordCustomerRemoved()

	removedEvent := event.CustomerRemovedEvent{
		Timestamp: s.now(),
		Payload:   NewCustomerEventPayload(customer),
	}
	if pubErr := s.pub.PublishCustomerRemoved(ctx, removedEvent); pubErr != nil {
		logger.ErrorContext(ctx, "Customer removed, but FAILED to publish removal event", slog.Any("error", pubErr))
	}

	logger.InfoContext(ctx, "Successfully removed customer")
	return nil
}

func (s *customerService) translateWriteError(ctx context.Context, logger *slog.Logger, customerID int64, name string, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		logger.ErrorContext(ctx, "Customer disappeared before save completed")
		return fmt.Errorf("%w: id %d", ErrNotFound, customerID)
	case errors.Is(err, apperrors.ErrAlreadyExists):
		logger.WarnContext(ctx, "Update rejected by active name constraint", slog.Any("error", err))
		monitoring.RecordNameConflict()
		return fmt.Errorf("%w: name %q is already taken by an active customer", ErrAlreadyExists, name)
	default:
		logger.ErrorContext(ctx, "Repository failed to save customer", slog.Any("error", err))
		return fmt.Errorf("failed to save customer %d: %w", customerID, err)
	}
}
