package batch

import (
	"context"
	"customer-service/internal/domain/customer"
	"customer-service/internal/infrastructure/monitoring"
	"fmt"
	"log/slog"
	"time"
)

type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[customer.Status]int64, error)
}

// CustomerStatsJob refreshes the customers-by-status gauge.
type CustomerStatsJob struct {
	repo   StatusCounter
	logger *slog.Logger
}

func NewCustomerStatsJob(repo StatusCounter, logger *slog.Logger) *CustomerStatsJob {
	if repo == nil || logger == nil {
		panic("CustomerStatsJob dependencies cannot be nil")
	}
	return &CustomerStatsJob{
		repo:   repo,
		logger: logger.With("job", "CustomerStats"),
	}
}

func (j *CustomerStatsJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting customer statistics job.")

	counts, err := j.repo.CountByStatus(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to count customers by status, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to count customers: %w", err)
	}

	attrs := make([]any, 0, len(customer.Statuses)+1)
	for _, status := range customer.Statuses {
		count := counts[status]
		monitoring.SetCustomersByStatus(status.String(), count)
		attrs = append(attrs, slog.Int64(status.String(), count))
	}
	attrs = append(attrs, slog.Duration("duration", time.Since(startTime)))

	j.logger.InfoContext(ctx, "Customer statistics job finished successfully.", attrs...)
	return nil
}
