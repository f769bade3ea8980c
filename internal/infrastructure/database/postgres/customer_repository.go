package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

const customersTable = "customers"

var customerColumns = []string{"id", "name", "phone", "status", "created_time", "updated_time"}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// listTxOptions keeps the count and the page slice on one snapshot.
var listTxOptions = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerRepository, using default stderr handler")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

func (r *CustomerRepository) Insert(ctx context.Context, cust *customer.Customer) (err error) {
	defer func(start time.Time) { observeQuery("insert_customer", start, err) }(time.Now())

	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	r.logger.DebugContext(ctx, "Attempting to insert new customer", slog.String("name", cust.Name))

	query, args, err := psql.Insert(customersTable).
		Columns("name", "phone", "status", "created_time", "updated_time").
		Values(cust.Name, cust.Phone, cust.Status.String(), cust.CreatedTime, cust.UpdatedTime).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: failed to build insert customer query: %w", apperrors.ErrDatabase, err)
	}

	if err = r.db.QueryRow(ctx, query, args...).Scan(&cust.ID); err != nil {
		translatedErr := translateDBError(err, r.logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Failed to insert customer due to unique constraint violation", slog.String("name", cust.Name))
			return translatedErr
		}
		r.logger.ErrorContext(ctx, "Failed to insert customer", slog.Any("error", err))
		return fmt.Errorf("%w: failed to insert customer: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Customer inserted successfully", slog.Int64("customerID", cust.ID))
	return nil
}

// Update writes name, phone, status and updated_time. Only ACTIVE rows are
// writable, so a row removed by a concurrent request reports ErrNotFound.
func (r *CustomerRepository) Update(ctx context.Context, cust *customer.Customer) (err error) {
	defer func(start time.Time) { observeQuery("update_customer", start, err) }(time.Now())

	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	logger := r.logger.With(slog.Int64("customerID", cust.ID))
	logger.DebugContext(ctx, "Attempting to update customer")

	query, args, err := psql.Update(customersTable).
		Set("name", cust.Name).
		Set("phone", cust.Phone).
		Set("status", cust.Status.String()).
		Set("updated_time", cust.UpdatedTime).
		Where(sq.Eq{"id": cust.ID, "status": customer.StatusActive.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: failed to build update customer query: %w", apperrors.ErrDatabase, err)
	}

	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		translatedErr := translateDBError(err, logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			logger.WarnContext(ctx, "Failed to update customer due to unique constraint violation", slog.Any("error", err))
			return translatedErr
		}
		logger.ErrorContext(ctx, "Failed to update customer", slog.Any("error", err))
		return fmt.Errorf("%w: failed to update customer: %w", apperrors.ErrDatabase, err)
	}

	if cmdTag.RowsAffected() == 0 {
		logger.WarnContext(ctx, "Update affected zero rows, customer missing or already removed")
		return customer.ErrNotFound
	}

	logger.InfoContext(ctx, "Customer updated successfully", slog.String("status", cust.Status.String()))
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (cust *customer.Customer, err error) {
	defer func(start time.Time) { observeQuery("find_customer_by_id", start, err) }(time.Now())

	logger := r.logger.With(slog.Int64("customerID", customerID))
	logger.DebugContext(ctx, "Attempting to find customer by ID")

	query, args, err := psql.Select(customerColumns...).
		From(customersTable).
		Where(sq.Eq{"id": customerID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build find customer query: %w", apperrors.ErrDatabase, err)
	}

	cust, err = scanCustomer(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.DebugContext(ctx, "Customer not found")
			return nil, customer.ErrNotFound
		}
		logger.ErrorContext(ctx, "Failed to query/scan customer by ID", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get customer by ID: %w", apperrors.ErrDatabase, err)
	}

	return cust, nil
}

func (r *CustomerRepository) FindByNameAndStatus(ctx context.Context, name string, status customer.Status) (*customer.Customer, error) {
	return r.findByName(ctx, "find_customer_by_name", name, status, nil)
}

func (r *CustomerRepository) FindByNameAndStatusExcludingID(ctx context.Context, name string, status customer.Status, excludeID int64) (*customer.Customer, error) {
	return r.findByName(ctx, "find_customer_by_name_excluding_id", name, status, sq.NotEq{"id": excludeID})
}

func (r *CustomerRepository) findByName(ctx context.Context, queryName, name string, status customer.Status, extra sq.Sqlizer) (cust *customer.Customer, err error) {
	defer func(start time.Time) { observeQuery(queryName, start, err) }(time.Now())

	logger := r.logger.With(slog.String("name", name), slog.String("status", status.String()))
	logger.DebugContext(ctx, "Attempting to find customer by name")

	builder := psql.Select(customerColumns...).
		From(customersTable).
		Where(sq.Expr("LOWER(name) = LOWER(?)", name)).
		Where(sq.Eq{"status": status.String()})
	if extra != nil {
		builder = builder.Where(extra)
	}

	query, args, err := builder.OrderBy("id ASC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build find customer by name query: %w", apperrors.ErrDatabase, err)
	}

	cust, err = scanCustomer(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		logger.ErrorContext(ctx, "Failed to query/scan customer by name", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get customer by name: %w", apperrors.ErrDatabase, err)
	}

	return cust, nil
}

func filterConditions(filter customer.Filter) sq.And {
	conds := sq.And{sq.Eq{"status": filter.Status.String()}}
	if filter.Name != nil {
		conds = append(conds, sq.ILike{"name": containsPattern(*filter.Name)})
	}
	if filter.Phone != nil {
		conds = append(conds, sq.ILike{"phone": containsPattern(*filter.Phone)})
	}
	return conds
}

func containsPattern(fragment string) string {
	return "%" + likeEscaper.Replace(fragment) + "%"
}

func (r *CustomerRepository) FindAll(ctx context.Context, filter customer.Filter, page customer.PageRequest) (result *customer.Page, err error) {
	defer func(start time.Time) { observeQuery("find_all_customers", start, err) }(time.Now())

	logger := r.logger.With(
		slog.String("status", filter.Status.String()),
		slog.Int("page", page.Page),
		slog.Int("size", page.Size),
	)
	logger.DebugContext(ctx, "Attempting to list customers")

	if !page.Valid() {
		return nil, fmt.Errorf("%w: invalid page request %d/%d", apperrors.ErrInvalidArgument, page.Page, page.Size)
	}

	conds := filterConditions(filter)

	countQuery, countArgs, err := psql.Select("COUNT(*)").From(customersTable).Where(conds).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build count customers query: %w", apperrors.ErrDatabase, err)
	}
	listQuery, listArgs, err := psql.Select(customerColumns...).
		From(customersTable).
		Where(conds).
		OrderBy("id ASC").
		Limit(uint64(page.Size)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build list customers query: %w", apperrors.ErrDatabase, err)
	}

	tx, err := r.db.BeginTx(ctx, listTxOptions)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer func() {
		if err != nil {
			r.rollbackTx(ctx, tx)
		}
	}()

	result = &customer.Page{Number: page.Page, Size: page.Size, Content: make([]*customer.Customer, 0)}
	if err = tx.QueryRow(ctx, countQuery, countArgs...).Scan(&result.TotalElements); err != nil {
		logger.ErrorContext(ctx, "Failed to count customers", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to count customers: %w", apperrors.ErrDatabase, err)
	}

	if int64(page.Offset()) < result.TotalElements {
		if result.Content, err = queryCustomers(ctx, tx, listQuery, listArgs); err != nil {
			logger.ErrorContext(ctx, "Failed to list customers", slog.Any("error", err))
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	logger.DebugContext(ctx, "Finished listing customers",
		slog.Int("count", len(result.Content)),
		slog.Int64("total", result.TotalElements),
	)
	return result, nil
}

func (r *CustomerRepository) CountByStatus(ctx context.Context) (counts map[customer.Status]int64, err error) {
	defer func(start time.Time) { observeQuery("count_customers_by_status", start, err) }(time.Now())

	query, args, err := psql.Select("status", "COUNT(*)").
		From(customersTable).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build count by status query: %w", apperrors.ErrDatabase, err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to count customers by status", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to count customers by status: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	counts = make(map[customer.Status]int64, len(customer.Statuses))
	for _, status := range customer.Statuses {
		counts[status] = 0
	}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err = rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%w: failed to scan status count row: %w", apperrors.ErrDatabase, err)
		}
		counts[customer.Status(status)] = count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating status count rows: %w", apperrors.ErrDatabase, err)
	}

	return counts, nil
}

func (r *CustomerRepository) rollbackTx(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", err))
	}
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryCustomers(ctx context.Context, db rowQuerier, query string, args []any) ([]*customer.Customer, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query customers: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	customers := make([]*customer.Customer, 0)
	for rows.Next() {
		cust, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan customer row: %w", apperrors.ErrDatabase, err)
		}
		customers = append(customers, cust)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating customer rows: %w", apperrors.ErrDatabase, err)
	}
	return customers, nil
}

func scanCustomer(row pgx.Row) (*customer.Customer, error) {
	var (
		cust   customer.Customer
		status string
	)
	err := row.Scan(
		&cust.ID,
		&cust.Name,
		&cust.Phone,
		&status,
		&cust.CreatedTime,
		&cust.UpdatedTime,
	)
	if err != nil {
		return nil, err
	}
	cust.Status = customer.Status(status)
	return &cust, nil
}
