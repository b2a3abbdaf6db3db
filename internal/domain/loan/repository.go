package loan

import (
	"context"
)

type Repository interface {
	// CreateLoan persists an approved loan. The insert runs in a
	// transaction that locks the owning customer row, so concurrent
	// approvals for the same customer serialize through the EMI gate.
	CreateLoan(ctx context.Context, newLoan *Loan) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	// FindByCustomerID returns the customer's full loan history.
	FindByCustomerID(ctx context.Context, customerID int64) ([]*Loan, error)

	// FindActiveByCustomerID returns loans whose end date has not
	// passed as of the query.
	FindActiveByCustomerID(ctx context.Context, customerID int64) ([]*Loan, error)

	// Upsert writes a loan row with an explicit ID, skipping rows that
	// already exist. Used by bulk import only.
	Upsert(ctx context.Context, newLoan *Loan) error

	// RefreshActiveFlags re-derives the stored is_active flag from the
	// end date and returns the number of rows changed.
	RefreshActiveFlags(ctx context.Context) (int64, error)

	ResetIDSequence(ctx context.Context) error
}
