package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/pkg/apperrors"
)

type LoanService interface {
	// GetLoan returns a loan with its owning customer's details.
	GetLoan(ctx context.Context, loanID int64) (*Loan, *customer.Customer, error)

	// ListCustomerLoans returns the customer's currently active loans.
	ListCustomerLoans(ctx context.Context, customerID int64) ([]*Loan, error)
}

type loanServiceImpl struct {
	repo            Repository
	customerService customer.CustomerService
	logger          *slog.Logger
}

func NewLoanService(r Repository, cs customer.CustomerService, logger *slog.Logger) LoanService {
	return &loanServiceImpl{repo: r, customerService: cs, logger: logger.With("component", "loanService")}
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, *customer.Customer, error) {
	s.logger.InfoContext(ctx, "Getting loan details", "loanID", loanID)

	ln, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Loan not found", "loanID", loanID)
			return nil, nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.ErrorContext(ctx, "Failed to get loan", "loanID", loanID, "error", err)
		return nil, nil, fmt.Errorf("%w: failed to get loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}

	cust, err := s.customerService.GetCustomer(ctx, ln.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			s.logger.ErrorContext(ctx, "Loan references missing customer", "loanID", loanID, "customerID", ln.CustomerID)
			return nil, nil, fmt.Errorf("%w: customer %d for loan %d not found", apperrors.ErrNotFound, ln.CustomerID, loanID)
		}
		return nil, nil, fmt.Errorf("failed to resolve customer for loan %d: %w", loanID, err)
	}

	return ln, cust, nil
}

func (s *loanServiceImpl) ListCustomerLoans(ctx context.Context, customerID int64) ([]*Loan, error) {
	s.logger.InfoContext(ctx, "Listing active loans for customer", "customerID", customerID)

	if _, err := s.customerService.GetCustomer(ctx, customerID); err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrNotFound, customerID)
		}
		return nil, fmt.Errorf("failed to verify customer %d: %w", customerID, err)
	}

	loans, err := s.repo.FindActiveByCustomerID(ctx, customerID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list active loans", "customerID", customerID, "error", err)
		return nil, fmt.Errorf("%w: failed to list loans for customer %d: %v", apperrors.ErrInternalServer, customerID, err)
	}

	return loans, nil
}
