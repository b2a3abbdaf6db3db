package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

const loanColumns = `loan_id, customer_id, loan_amount, interest_rate, tenure_months, monthly_installment, emis_paid_on_time, start_date, end_date, is_active, created_at, updated_at`

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	if db == nil {
		panic("DBPool cannot be nil for LoanRepository")
	}
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

// CreateLoan inserts an approved loan inside a transaction that first
// locks the owning customer row. Concurrent approvals for one customer
// therefore commit one at a time, and each sees the previous insert.
func (r *LoanRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	if newLoan == nil {
		return nil, fmt.Errorf("%w: loan cannot be nil", apperrors.ErrInvalidArgument)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer r.rollback(ctx, tx)

	lockSQL := `SELECT customer_id FROM customers WHERE customer_id = $1 FOR UPDATE`
	var lockedID int64
	if err := tx.QueryRow(ctx, lockSQL, newLoan.CustomerID).Scan(&lockedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrNotFound, newLoan.CustomerID)
		}
		r.logger.ErrorContext(ctx, "Failed to lock customer row", slog.Int64("customerID", newLoan.CustomerID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to lock customer row: %w", apperrors.ErrDatabase, err)
	}

	insertSQL := `
        INSERT INTO loans (customer_id, loan_amount, interest_rate, tenure_months, monthly_installment, emis_paid_on_time, start_date, end_date, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        RETURNING ` + loanColumns

	var created loan.Loan
	err = tx.QueryRow(ctx, insertSQL,
		newLoan.CustomerID,
		newLoan.LoanAmount,
		newLoan.InterestRate,
		newLoan.TenureMonths,
		newLoan.MonthlyInstallment,
		newLoan.EMIsPaidOnTime,
		newLoan.StartDate,
		newLoan.EndDate,
		newLoan.IsActive,
	).Scan(
		&created.LoanID,
		&created.CustomerID,
		&created.LoanAmount,
		&created.InterestRate,
		&created.TenureMonths,
		&created.MonthlyInstallment,
		&created.EMIsPaidOnTime,
		&created.StartDate,
		&created.EndDate,
		&created.IsActive,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit loan transaction", slog.Any("error", err))
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Loan created in DB", slog.Int64("loanID", created.LoanID), slog.Int64("customerID", created.CustomerID))
	return &created, nil
}

func (r *LoanRepository) rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", slog.Any("error", err))
	}
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	startTime := time.Now()
	status := "success"
	defer func() {
		monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))
	}()

	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE loan_id = $1`

	l, err := r.scanLoanRow(r.db.QueryRow(ctx, query, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			status = "not_found"
			r.logger.WarnContext(ctx, "Loan not found", slog.Int64("loanID", loanID))
			return nil, apperrors.ErrNotFound
		}
		status = "error"
		r.logger.ErrorContext(ctx, "Failed to query/scan loan by ID", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get loan by ID: %w", apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) FindByCustomerID(ctx context.Context, customerID int64) ([]*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE customer_id = $1
        ORDER BY loan_id ASC`

	return r.queryLoans(ctx, "FindByCustomerID", query, customerID)
}

// FindActiveByCustomerID derives activity from the end date, not the
// stored flag; the flag can lag a day behind until the batch refresh.
func (r *LoanRepository) FindActiveByCustomerID(ctx context.Context, customerID int64) ([]*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE customer_id = $1 AND end_date >= CURRENT_DATE
        ORDER BY loan_id ASC`

	return r.queryLoans(ctx, "FindActiveByCustomerID", query, customerID)
}

func (r *LoanRepository) queryLoans(ctx context.Context, queryName, query string, args ...any) ([]*loan.Loan, error) {
	startTime := time.Now()
	status := "success"
	defer func() {
		monitoring.RecordDBQuery(queryName, status, time.Since(startTime))
	}()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		status = "error"
		r.logger.ErrorContext(ctx, "Failed to query loans", slog.String("query", queryName), slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query loans: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]*loan.Loan, 0)
	for rows.Next() {
		l, err := r.scanLoanRow(rows)
		if err != nil {
			status = "error"
			r.logger.ErrorContext(ctx, "Failed to scan loan row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed to scan loan row: %w", apperrors.ErrDatabase, err)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		status = "error"
		r.logger.ErrorContext(ctx, "Error iterating loan rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating loan rows: %w", apperrors.ErrDatabase, err)
	}

	return loans, nil
}

func (r *LoanRepository) scanLoanRow(row pgx.Row) (*loan.Loan, error) {
	var l loan.Loan
	err := row.Scan(
		&l.LoanID,
		&l.CustomerID,
		&l.LoanAmount,
		&l.InterestRate,
		&l.TenureMonths,
		&l.MonthlyInstallment,
		&l.EMIsPaidOnTime,
		&l.StartDate,
		&l.EndDate,
		&l.IsActive,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Upsert writes a loan row with its ID fixed, leaving existing rows
// alone. Bulk import is the only caller.
func (r *LoanRepository) Upsert(ctx context.Context, newLoan *loan.Loan) error {
	if newLoan == nil {
		return fmt.Errorf("%w: loan cannot be nil", apperrors.ErrInvalidArgument)
	}
	if newLoan.LoanID <= 0 {
		return fmt.Errorf("%w: upsert requires an explicit loan ID", apperrors.ErrInvalidArgument)
	}

	query := `
        INSERT INTO loans (loan_id, customer_id, loan_amount, interest_rate, tenure_months, monthly_installment, emis_paid_on_time, start_date, end_date, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        ON CONFLICT (loan_id) DO NOTHING`

	cmdTag, err := r.db.Exec(ctx, query,
		newLoan.LoanID,
		newLoan.CustomerID,
		newLoan.LoanAmount,
		newLoan.InterestRate,
		newLoan.TenureMonths,
		newLoan.MonthlyInstallment,
		newLoan.EMIsPaidOnTime,
		newLoan.StartDate,
		newLoan.EndDate,
		newLoan.IsActive,
	)
	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		r.logger.ErrorContext(ctx, "Failed to upsert loan", slog.Int64("loanID", newLoan.LoanID), slog.Any("error", err))
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			return translatedErr
		}
		return fmt.Errorf("%w: failed to upsert loan %d: %w", apperrors.ErrDatabase, newLoan.LoanID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.DebugContext(ctx, "Loan already present, upsert skipped", slog.Int64("loanID", newLoan.LoanID))
	}
	return nil
}

// RefreshActiveFlags re-derives is_active from the end date for every
// row where the two disagree and reports how many rows changed.
func (r *LoanRepository) RefreshActiveFlags(ctx context.Context) (int64, error) {
	startTime := time.Now()
	status := "success"
	defer func() {
		monitoring.RecordDBQuery("RefreshActiveFlags", status, time.Since(startTime))
	}()

	query := `
        UPDATE loans
        SET is_active = (end_date >= CURRENT_DATE), updated_at = NOW()
        WHERE is_active IS DISTINCT FROM (end_date >= CURRENT_DATE)`

	cmdTag, err := r.db.Exec(ctx, query)
	if err != nil {
		status = "error"
		r.logger.ErrorContext(ctx, "Failed to refresh loan active flags", slog.Any("error", err))
		return 0, fmt.Errorf("%w: failed to refresh loan active flags: %w", apperrors.ErrDatabase, err)
	}

	return cmdTag.RowsAffected(), nil
}

func (r *LoanRepository) ResetIDSequence(ctx context.Context) error {
	query := `SELECT setval(pg_get_serial_sequence('loans', 'loan_id'), COALESCE(MAX(loan_id), 0) + 1, false) FROM loans`

	if _, err := r.db.Exec(ctx, query); err != nil {
		r.logger.ErrorContext(ctx, "Failed to reset loan ID sequence", slog.Any("error", err))
		return fmt.Errorf("%w: failed to reset loan ID sequence: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Loan ID sequence reset")
	return nil
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		}
		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}
	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
