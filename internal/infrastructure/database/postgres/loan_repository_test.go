package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var loanColumnNames = []string{
	"loan_id", "customer_id", "loan_amount", "interest_rate", "tenure_months",
	"monthly_installment", "emis_paid_on_time", "start_date", "end_date",
	"is_active", "created_at", "updated_at",
}

func testLoan() *loan.Loan {
	start := time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC)
	return &loan.Loan{
		LoanID:             11,
		CustomerID:         1,
		LoanAmount:         decimal.NewFromInt(100000),
		InterestRate:       decimal.NewFromFloat(10),
		TenureMonths:       12,
		MonthlyInstallment: decimal.RequireFromString("8791.59"),
		EMIsPaidOnTime:     3,
		StartDate:          start,
		EndDate:            start.AddDate(0, 0, 360),
		IsActive:           true,
		CreatedAt:          testTime,
		UpdatedAt:          testTime,
	}
}

func loanRow(l *loan.Loan) *pgxmock.Rows {
	return pgxmock.NewRows(loanColumnNames).AddRow(
		l.LoanID, l.CustomerID, l.LoanAmount, l.InterestRate, l.TenureMonths,
		l.MonthlyInstallment, l.EMIsPaidOnTime, l.StartDate, l.EndDate,
		l.IsActive, l.CreatedAt, l.UpdatedAt,
	)
}

func setupLoanRepo(t *testing.T) (context.Context, *LoanRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to open a stub database connection: %v", err)
	}

	ctx := context.Background()
	repo := NewLoanRepository(mockPool, logger)

	return ctx, repo, mockPool
}

func TestCreateLoanLocksCustomerAndInserts(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	newLoan := testLoan()
	newLoan.LoanID = 0

	mockPool.ExpectBegin()
	mockPool.ExpectQuery("SELECT customer_id FROM customers WHERE customer_id = \\$1 FOR UPDATE").
		WithArgs(newLoan.CustomerID).
		WillReturnRows(pgxmock.NewRows([]string{"customer_id"}).AddRow(newLoan.CustomerID))
	persisted := testLoan()
	mockPool.ExpectQuery("INSERT INTO loans").WithArgs(
		newLoan.CustomerID,
		newLoan.LoanAmount,
		newLoan.InterestRate,
		newLoan.TenureMonths,
		newLoan.MonthlyInstallment,
		newLoan.EMIsPaidOnTime,
		newLoan.StartDate,
		newLoan.EndDate,
		newLoan.IsActive,
	).WillReturnRows(loanRow(persisted))
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	created, err := repo.CreateLoan(ctx, newLoan)
	assert.NoError(t, err)
	assert.Equal(t, int64(11), created.LoanID)
	assert.True(t, newLoan.MonthlyInstallment.Equal(created.MonthlyInstallment))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCreateLoanUnknownCustomer(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	newLoan := testLoan()
	newLoan.LoanID = 0
	newLoan.CustomerID = 404

	mockPool.ExpectBegin()
	mockPool.ExpectQuery("SELECT customer_id FROM customers WHERE customer_id = \\$1 FOR UPDATE").
		WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectRollback()

	created, err := repo.CreateLoan(ctx, newLoan)
	assert.Nil(t, created)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetLoanByIDReturnsOne(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	expected := testLoan()
	mockPool.ExpectQuery("SELECT (.+) FROM loans").WithArgs(expected.LoanID).
		WillReturnRows(loanRow(expected))

	found, err := repo.GetLoanByID(ctx, expected.LoanID)
	assert.NoError(t, err)
	assert.Equal(t, expected.CustomerID, found.CustomerID)
	assert.True(t, expected.LoanAmount.Equal(found.LoanAmount))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestGetLoanByIDNotFound(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery("SELECT (.+) FROM loans").WithArgs(int64(404)).
		WillReturnError(pgx.ErrNoRows)

	found, err := repo.GetLoanByID(ctx, 404)
	assert.Nil(t, found)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindByCustomerIDReturnsHistory(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	first := testLoan()
	second := testLoan()
	second.LoanID = 12
	second.IsActive = false
	rows := loanRow(first).AddRow(
		second.LoanID, second.CustomerID, second.LoanAmount, second.InterestRate, second.TenureMonths,
		second.MonthlyInstallment, second.EMIsPaidOnTime, second.StartDate, second.EndDate,
		second.IsActive, second.CreatedAt, second.UpdatedAt,
	)
	mockPool.ExpectQuery("SELECT (.+) FROM loans").WithArgs(first.CustomerID).
		WillReturnRows(rows)

	loans, err := repo.FindByCustomerID(ctx, first.CustomerID)
	assert.NoError(t, err)
	assert.Len(t, loans, 2)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindActiveByCustomerIDFiltersOnEndDate(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	active := testLoan()
	mockPool.ExpectQuery("SELECT (.+) FROM loans\\s+WHERE customer_id = \\$1 AND end_date >= CURRENT_DATE").
		WithArgs(active.CustomerID).
		WillReturnRows(loanRow(active))

	loans, err := repo.FindActiveByCustomerID(ctx, active.CustomerID)
	assert.NoError(t, err)
	assert.Len(t, loans, 1)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestFindByCustomerIDQueryFailure(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	mockPool.ExpectQuery("SELECT (.+) FROM loans").WithArgs(int64(1)).
		WillReturnError(errors.New("connection reset"))

	loans, err := repo.FindByCustomerID(ctx, 1)
	assert.Nil(t, loans)
	assert.ErrorIs(t, err, apperrors.ErrDatabase)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanUpsertInsertsRow(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	l := testLoan()
	mockPool.ExpectExec("INSERT INTO loans").WithArgs(
		l.LoanID,
		l.CustomerID,
		l.LoanAmount,
		l.InterestRate,
		l.TenureMonths,
		l.MonthlyInstallment,
		l.EMIsPaidOnTime,
		l.StartDate,
		l.EndDate,
		l.IsActive,
	).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Upsert(ctx, l)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanUpsertRequiresExplicitID(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	l := testLoan()
	l.LoanID = 0

	err := repo.Upsert(ctx, l)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestRefreshActiveFlagsReportsChangedRows(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec("UPDATE loans").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	changed, err := repo.RefreshActiveFlags(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), changed)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestLoanResetIDSequence(t *testing.T) {
	ctx, repo, mockPool := setupLoanRepo(t)
	defer mockPool.Close()

	mockPool.ExpectExec("SELECT setval").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err := repo.ResetIDSequence(ctx)
	assert.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}
