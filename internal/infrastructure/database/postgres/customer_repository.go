package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const customerColumns = `customer_id, first_name, last_name, age, phone_number, monthly_income, approved_limit, current_debt, created_at, updated_at`

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

func (r *CustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	r.logger.InfoContext(ctx, "Attempting to insert new customer",
		slog.String("firstName", cust.FirstName), slog.String("lastName", cust.LastName))

	query := `
        INSERT INTO customers (first_name, last_name, age, phone_number, monthly_income, approved_limit, current_debt, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING customer_id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlyIncome,
		cust.ApprovedLimit,
		cust.CurrentDebt,
	).Scan(
		&cust.CustomerID,
		&cust.CreatedAt,
		&cust.UpdatedAt,
	)

	if err != nil {
		translatedErr := translateDBError(err, r.logger)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			r.logger.WarnContext(ctx, "Failed to insert customer due to unique constraint violation",
				slog.String("phoneNumber", cust.PhoneNumber))
			return translatedErr
		}
		r.logger.ErrorContext(ctx, "Failed to insert customer", slog.Any("error", err))
		return fmt.Errorf("%w: failed to insert customer: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Customer inserted successfully", slog.Int64("customerID", cust.CustomerID))
	return nil
}

// Upsert writes a row with its ID fixed, leaving existing rows alone.
// Bulk import is the only caller; interactive code goes through Save.
func (r *CustomerRepository) Upsert(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}
	if cust.CustomerID <= 0 {
		return fmt.Errorf("%w: upsert requires an explicit customer ID", apperrors.ErrInvalidArgument)
	}

	query := `
        INSERT INTO customers (customer_id, first_name, last_name, age, phone_number, monthly_income, approved_limit, current_debt, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
        ON CONFLICT (customer_id) DO NOTHING`

	cmdTag, err := r.db.Exec(ctx, query,
		cust.CustomerID,
		cust.FirstName,
		cust.LastName,
		cust.Age,
		cust.PhoneNumber,
		cust.MonthlyIncome,
		cust.ApprovedLimit,
		cust.CurrentDebt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to upsert customer", slog.Int64("customerID", cust.CustomerID), slog.Any("error", err))
		return fmt.Errorf("%w: failed to upsert customer %d: %w", apperrors.ErrDatabase, cust.CustomerID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.DebugContext(ctx, "Customer already present, upsert skipped", slog.Int64("customerID", cust.CustomerID))
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	r.logger.DebugContext(ctx, "Attempting to find customer by ID", slog.Int64("customerID", customerID))

	query := `
        SELECT ` + customerColumns + `
        FROM customers
        WHERE customer_id = $1`

	var cust customer.Customer
	err := r.db.QueryRow(ctx, query, customerID).Scan(
		&cust.CustomerID,
		&cust.FirstName,
		&cust.LastName,
		&cust.Age,
		&cust.PhoneNumber,
		&cust.MonthlyIncome,
		&cust.ApprovedLimit,
		&cust.CurrentDebt,
		&cust.CreatedAt,
		&cust.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found", slog.Int64("customerID", customerID))
			return nil, customer.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query/scan customer by ID", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get customer by ID: %w", apperrors.ErrDatabase, err)
	}

	return &cust, nil
}

// ResetIDSequence moves the serial past the highest imported ID so the
// next Save does not collide with bulk-loaded rows.
func (r *CustomerRepository) ResetIDSequence(ctx context.Context) error {
	query := `SELECT setval(pg_get_serial_sequence('customers', 'customer_id'), COALESCE(MAX(customer_id), 0) + 1, false) FROM customers`

	if _, err := r.db.Exec(ctx, query); err != nil {
		r.logger.ErrorContext(ctx, "Failed to reset customer ID sequence", slog.Any("error", err))
		return fmt.Errorf("%w: failed to reset customer ID sequence: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Customer ID sequence reset")
	return nil
}
