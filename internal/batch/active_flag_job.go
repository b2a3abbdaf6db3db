package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/loan"
)

// RefreshActiveFlagsJob re-derives the stored is_active flag on every
// loan from its end date. Decisions never read the flag directly, it
// exists for reporting queries, so running this once a day is enough.
type RefreshActiveFlagsJob struct {
	loanRepo loan.Repository
	timeout  time.Duration
	logger   *slog.Logger
}

func NewRefreshActiveFlagsJob(loanRepo loan.Repository, timeout time.Duration, logger *slog.Logger) *RefreshActiveFlagsJob {
	if loanRepo == nil || logger == nil {
		panic("RefreshActiveFlagsJob dependencies cannot be nil")
	}
	if timeout <= 0 {
		timeout = 1 * time.Minute
	}
	return &RefreshActiveFlagsJob{
		loanRepo: loanRepo,
		timeout:  timeout,
		logger:   logger.With("job", "RefreshActiveFlags"),
	}
}

func (j *RefreshActiveFlagsJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting loan active-flag refresh job.")

	jobCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	changed, err := j.loanRepo.RefreshActiveFlags(jobCtx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Active-flag refresh failed.", slog.Any("error", err))
		return fmt.Errorf("cannot refresh loan active flags: %w", err)
	}

	j.logger.InfoContext(ctx, "Loan active-flag refresh job finished.",
		slog.Int64("rows_changed", changed),
		slog.Duration("duration", time.Since(startTime)))
	return nil
}
