package eligibility

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/event"
	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	args := m.Called(ctx, cust)
	return args.Error(0)
}

func (m *MockCustomerRepository) Upsert(ctx context.Context, cust *customer.Customer) error {
	args := m.Called(ctx, cust)
	return args.Error(0)
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	var cust *customer.Customer
	if args.Get(0) != nil {
		cust = args.Get(0).(*customer.Customer)
	}
	return cust, args.Error(1)
}

func (m *MockCustomerRepository) ResetIDSequence(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	args := m.Called(ctx, newLoan)
	var created *loan.Loan
	if args.Get(0) != nil {
		created = args.Get(0).(*loan.Loan)
	}
	return created, args.Error(1)
}

func (m *MockLoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	var l *loan.Loan
	if args.Get(0) != nil {
		l = args.Get(0).(*loan.Loan)
	}
	return l, args.Error(1)
}

func (m *MockLoanRepository) FindByCustomerID(ctx context.Context, customerID int64) ([]*loan.Loan, error) {
	args := m.Called(ctx, customerID)
	var loans []*loan.Loan
	if args.Get(0) != nil {
		loans = args.Get(0).([]*loan.Loan)
	}
	return loans, args.Error(1)
}

func (m *MockLoanRepository) FindActiveByCustomerID(ctx context.Context, customerID int64) ([]*loan.Loan, error) {
	args := m.Called(ctx, customerID)
	var loans []*loan.Loan
	if args.Get(0) != nil {
		loans = args.Get(0).([]*loan.Loan)
	}
	return loans, args.Error(1)
}

func (m *MockLoanRepository) Upsert(ctx context.Context, newLoan *loan.Loan) error {
	args := m.Called(ctx, newLoan)
	return args.Error(0)
}

func (m *MockLoanRepository) RefreshActiveFlags(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLoanRepository) ResetIDSequence(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishCustomerRegistered(ctx context.Context, ev event.CustomerRegisteredEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishLoanApproved(ctx context.Context, ev event.LoanApprovedEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func newTestService(t *testing.T) (Service, *MockCustomerRepository, *MockLoanRepository, *MockEventPublisher) {
	t.Helper()
	customerRepo := new(MockCustomerRepository)
	loanRepo := new(MockLoanRepository)
	publisher := new(MockEventPublisher)
	svc := NewService(customerRepo, loanRepo, publisher, testLogger)
	return svc, customerRepo, loanRepo, publisher
}

func eligCustomer(id int64, income, limit float64) *customer.Customer {
	return &customer.Customer{
		CustomerID:    id,
		FirstName:     "Meera",
		LastName:      "Iyer",
		Age:           34,
		MonthlyIncome: decimal.NewFromFloat(income),
		ApprovedLimit: decimal.NewFromFloat(limit),
	}
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCheckEligibility_NewCustomerApproved(t *testing.T) {
	svc, customerRepo, loanRepo, _ := newTestService(t)
	ctx := context.Background()

	// No history scores the default 50, which lands in the 12% slab;
	// the requested 12.5% already clears the floor.
	cust := eligCustomer(1, 50000, 1800000)
	customerRepo.On("FindByID", ctx, int64(1)).Return(cust, nil)
	loanRepo.On("FindByCustomerID", ctx, int64(1)).Return([]*loan.Loan{}, nil)
	loanRepo.On("FindActiveByCustomerID", ctx, int64(1)).Return([]*loan.Loan{}, nil)

	result, err := svc.CheckEligibility(ctx, Request{
		CustomerID:   1,
		LoanAmount:   d("100000"),
		InterestRate: d("12.5"),
		TenureMonths: 36,
	})

	assert.NoError(t, err)
	assert.True(t, result.Approved)
	assert.True(t, d("12.5").Equal(result.CorrectedInterestRate))
	assert.Equal(t, "3345.36", result.MonthlyInstallment.StringFixed(2))
	assert.Equal(t, 36, result.TenureMonths)
}

func TestCheckEligibility_NewCustomerRateRaisedToSlabFloor(t *testing.T) {
	svc, customerRepo, loanRepo, _ := newTestService(t)
	ctx := context.Background()

	cust := eligCustomer(1, 50000, 1800000)
	customerRepo.On("FindByID", ctx, int64(1)).Return(cust, nil)
	loanRepo.On("FindByCustomerID", ctx, int64(1)).Return([]*loan.Loan{}, nil)
	loanRepo.On("FindActiveByCustomerID", ctx, int64(1)).Return([]*loan.Loan{}, nil)

	result, err := svc.CheckEligibility(ctx, Request{
		CustomerID:   1,
		LoanAmount:   d("100000"),
		InterestRate: d("10"),
		TenureMonths: 12,
	})

	assert.NoError(t, err)
	assert.True(t, result.Approved)
	assert.True(t, d("10").Equal(result.InterestRate))
	assert.True(t, d("12").Equal(result.CorrectedInterestRate))
}

func TestCheckEligibility_LowScoreRejected(t *testing.T) {
	svc, customerRepo, loanRepo, _ := newTestService(t)
	ctx := context.Background()

	// Active principal above the approved limit forces the score to 0.
	cust := eligCustomer(2, 50000, 100000)
	start := time.Now().AddDate(0, -1, 0)
	history := []*loan.Loan{{
		CustomerID:         2,
		LoanAmount:         d("150000"),
		TenureMonths:       24,
		EMIsPaidOnTime:     1,
		MonthlyInstallment: d("7000"),
		StartDate:          start,
		EndDate:            start.AddDate(0, 0, 24*30),
	}}
	customerRepo.On("FindByID", ctx, int64(2)).Return(cust, nil)
	loanRepo.On("FindByCustomerID", ctx, int64(2)).Return(history, nil)

	result, err := svc.CheckEligibility(ctx, Request{
		CustomerID:   2,
		LoanAmount:   d("100000"),
		InterestRate: d("10"),
		TenureMonths: 12,
	})

	assert.NoError(t, err)
	assert.False(t, result.Approved)
	// On rejection the corrected rate echoes the request, and the
	// installment is still quoted at that rate.
	assert.True(t, d("10").Equal(result.CorrectedInterestRate))
	assert.Equal(t, "8791.59", result.MonthlyInstallment.StringFixed(2))
	loanRepo.AssertNotCalled(t, "FindActiveByCustomerID", mock.Anything, mock.Anything)
}

func TestCheckEligibility_EMIBurdenRejected(t *testing.T) {
	svc, customerRepo, loanRepo, _ := newTestService(t)
	ctx := context.Background()

	cust := eligCustomer(3, 50000, 1800000)
	old := time.Now().AddDate(-3, 0, 0)
	current := time.Now().AddDate(0, -2, 0)
	activeLoan := &loan.Loan{
		CustomerID:         3,
		LoanAmount:         d("500000"),
		TenureMonths:       36,
		EMIsPaidOnTime:     2,
		MonthlyInstallment: d("20000"),
		StartDate:          current,
		EndDate:            current.AddDate(0, 0, 36*30),
	}
	history := []*loan.Loan{
		{
			CustomerID:         3,
			LoanAmount:         d("200000"),
			TenureMonths:       12,
			EMIsPaidOnTime:     12,
			MonthlyInstallment: d("17583.18"),
			StartDate:          old,
			EndDate:            old.AddDate(0, 0, 12*30),
		},
		activeLoan,
	}
	customerRepo.On("FindByID", ctx, int64(3)).Return(cust, nil)
	loanRepo.On("FindByCustomerID", ctx, int64(3)).Return(history, nil)
	loanRepo.On("FindActiveByCustomerID", ctx, int64(3)).Return([]*loan.Loan{activeLoan}, nil)

	// Candidate EMI 8791.59 plus the active 20000 exceeds half of the
	// 50000 income.
	result, err := svc.CheckEligibility(ctx, Request{
		CustomerID:   3,
		LoanAmount:   d("100000"),
		InterestRate: d("10"),
		TenureMonths: 12,
	})

	assert.NoError(t, err)
	assert.False(t, result.Approved)
	// An EMI rejection keeps the slab-corrected rate in the response.
	assert.True(t, d("10").Equal(result.CorrectedInterestRate))
}

func TestCheckEligibility_CustomerNotFound(t *testing.T) {
	svc, customerRepo, _, _ := newTestService(t)
	ctx := context.Background()

	customerRepo.On("FindByID", ctx, int64(99)).Return(nil, customer.ErrNotFound)

	result, err := svc.CheckEligibility(ctx, Request{
		CustomerID:   99,
		LoanAmount:   d("100000"),
		InterestRate: d("10"),
		TenureMonths: 12,
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCheckEligibility_InvalidRequest(t *testing.T) {
	svc, customerRepo, _, _ := newTestService(t)

	result, err := svc.CheckEligibility(context.Background(), Request{
		CustomerID:   1,
		LoanAmount:   d("-5"),
		InterestRate: d("10"),
		TenureMonths: 12,
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	customerRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestCreateLoan_ApprovedPersistsAndPublishes(t *testing.T) {
	svc, customerRepo, loanRepo, publisher := newTestService(t)
	ctx := context.Background()

	cust := eligCustomer(1, 50000, 1800000)
	customerRepo.On("FindByID", ctx, int64(1)).Return(cust, nil)
	loanRepo.On("FindByCustomerID", ctx, int64(1)).Return([]*loan.Loan{}, nil)
	loanRepo.On("FindActiveByCustomerID", ctx, int64(1)).Return([]*loan.Loan{}, nil)

	persisted := &loan.Loan{
		LoanID:             77,
		CustomerID:         1,
		LoanAmount:         d("100000"),
		InterestRate:       d("12.5"),
		TenureMonths:       36,
		MonthlyInstallment: d("3345.36"),
		StartDate:          time.Now().Truncate(24 * time.Hour),
		EndDate:            time.Now().Truncate(24 * time.Hour).AddDate(0, 0, 36*30),
		IsActive:           true,
	}
	loanRepo.On("CreateLoan", ctx, mock.MatchedBy(func(l *loan.Loan) bool {
		return l.CustomerID == 1 &&
			l.InterestRate.Equal(d("12.5")) &&
			l.MonthlyInstallment.Equal(d("3345.36")) &&
			l.TenureMonths == 36
	})).Return(persisted, nil)
	publisher.On("PublishLoanApproved", ctx, mock.MatchedBy(func(ev event.LoanApprovedEvent) bool {
		return ev.Payload.LoanID == 77 && ev.Payload.MonthlyInstallment == "3345.36"
	})).Return(nil)

	result, err := svc.CreateLoan(ctx, Request{
		CustomerID:   1,
		LoanAmount:   d("100000"),
		InterestRate: d("12.5"),
		TenureMonths: 36,
	})

	assert.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, MessageApproved, result.Message)
	if assert.NotNil(t, result.LoanID) {
		assert.Equal(t, int64(77), *result.LoanID)
	}
	assert.Equal(t, "3345.36", result.MonthlyInstallment.StringFixed(2))
	loanRepo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestCreateLoan_PublishFailureDoesNotFailApproval(t *testing.T) {
	svc, customerRepo, loanRepo, publisher := newTestService(t)
	ctx := context.Background()

	cust := eligCustomer(1, 50000, 1800000)
	customerRepo.On("FindByID", ctx, int64(1)).Return(cust, nil)
	loanRepo.On("FindByCustomerID", ctx, int64(1)).Return([]*loan.Loan{}, nil)
	loanRepo.On("FindActiveByCustomerID", ctx, int64(1)).Return([]*loan.Loan{}, nil)
	loanRepo.On("CreateLoan", ctx, mock.Anything).Return(&loan.Loan{LoanID: 5, CustomerID: 1, LoanAmount: d("100000"), InterestRate: d("12.5"), TenureMonths: 36, MonthlyInstallment: d("3345.36")}, nil)
	publisher.On("PublishLoanApproved", ctx, mock.Anything).Return(errors.New("broker down"))

	result, err := svc.CreateLoan(ctx, Request{
		CustomerID:   1,
		LoanAmount:   d("100000"),
		InterestRate: d("12.5"),
		TenureMonths: 36,
	})

	assert.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, MessageApproved, result.Message)
}

func TestCreateLoan_LowScoreDoesNotPersist(t *testing.T) {
	svc, customerRepo, loanRepo, publisher := newTestService(t)
	ctx := context.Background()

	cust := eligCustomer(2, 50000, 100000)
	start := time.Now().AddDate(0, -1, 0)
	history := []*loan.Loan{{
		CustomerID:         2,
		LoanAmount:         d("150000"),
		TenureMonths:       24,
		EMIsPaidOnTime:     1,
		MonthlyInstallment: d("7000"),
		StartDate:          start,
		EndDate:            start.AddDate(0, 0, 24*30),
	}}
	customerRepo.On("FindByID", ctx, int64(2)).Return(cust, nil)
	loanRepo.On("FindByCustomerID", ctx, int64(2)).Return(history, nil)

	result, err := svc.CreateLoan(ctx, Request{
		CustomerID:   2,
		LoanAmount:   d("100000"),
		InterestRate: d("10"),
		TenureMonths: 12,
	})

	assert.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Nil(t, result.LoanID)
	assert.Equal(t, MessageLowScore, result.Message)
	assert.Equal(t, "8791.59", result.MonthlyInstallment.StringFixed(2))
	loanRepo.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishLoanApproved", mock.Anything, mock.Anything)
}

func TestCreateLoan_EMIBurdenDoesNotPersist(t *testing.T) {
	svc, customerRepo, loanRepo, publisher := newTestService(t)
	ctx := context.Background()

	cust := eligCustomer(3, 50000, 1800000)
	current := time.Now().AddDate(0, -2, 0)
	activeLoan := &loan.Loan{
		CustomerID:         3,
		LoanAmount:         d("500000"),
		TenureMonths:       36,
		EMIsPaidOnTime:     2,
		MonthlyInstallment: d("20000"),
		StartDate:          current,
		EndDate:            current.AddDate(0, 0, 36*30),
	}
	customerRepo.On("FindByID", ctx, int64(3)).Return(cust, nil)
	loanRepo.On("FindByCustomerID", ctx, int64(3)).Return([]*loan.Loan{activeLoan}, nil)
	loanRepo.On("FindActiveByCustomerID", ctx, int64(3)).Return([]*loan.Loan{activeLoan}, nil)

	result, err := svc.CreateLoan(ctx, Request{
		CustomerID:   3,
		LoanAmount:   d("100000"),
		InterestRate: d("10"),
		TenureMonths: 12,
	})

	assert.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Nil(t, result.LoanID)
	assert.Equal(t, MessageEMIBurden, result.Message)
	loanRepo.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishLoanApproved", mock.Anything, mock.Anything)
}

func TestCreateLoan_ExactlyHalfIncomeIsApproved(t *testing.T) {
	svc, customerRepo, loanRepo, publisher := newTestService(t)
	ctx := context.Background()

	// Existing 16208.41 plus candidate 8791.59 is exactly 25000, half
	// of the 50000 income. The bound is inclusive.
	cust := eligCustomer(4, 50000, 1800000)
	old := time.Now().AddDate(-3, 0, 0)
	current := time.Now().AddDate(0, -2, 0)
	activeLoan := &loan.Loan{
		CustomerID:         4,
		LoanAmount:         d("400000"),
		TenureMonths:       36,
		EMIsPaidOnTime:     2,
		MonthlyInstallment: d("16208.41"),
		StartDate:          current,
		EndDate:            current.AddDate(0, 0, 36*30),
	}
	history := []*loan.Loan{
		{
			CustomerID:         4,
			LoanAmount:         d("200000"),
			TenureMonths:       12,
			EMIsPaidOnTime:     12,
			MonthlyInstallment: d("17583.18"),
			StartDate:          old,
			EndDate:            old.AddDate(0, 0, 12*30),
		},
		activeLoan,
	}
	customerRepo.On("FindByID", ctx, int64(4)).Return(cust, nil)
	loanRepo.On("FindByCustomerID", ctx, int64(4)).Return(history, nil)
	loanRepo.On("FindActiveByCustomerID", ctx, int64(4)).Return([]*loan.Loan{activeLoan}, nil)
	loanRepo.On("CreateLoan", ctx, mock.Anything).Return(&loan.Loan{LoanID: 9, CustomerID: 4, LoanAmount: d("100000"), InterestRate: d("10"), TenureMonths: 12, MonthlyInstallment: d("8791.59")}, nil)
	publisher.On("PublishLoanApproved", ctx, mock.Anything).Return(nil)

	result, err := svc.CreateLoan(ctx, Request{
		CustomerID:   4,
		LoanAmount:   d("100000"),
		InterestRate: d("10"),
		TenureMonths: 12,
	})

	assert.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, MessageApproved, result.Message)
}

func TestCreateLoan_RepositoryFailureSurfaces(t *testing.T) {
	svc, customerRepo, loanRepo, _ := newTestService(t)
	ctx := context.Background()

	cust := eligCustomer(1, 50000, 1800000)
	customerRepo.On("FindByID", ctx, int64(1)).Return(cust, nil)
	loanRepo.On("FindByCustomerID", ctx, int64(1)).Return([]*loan.Loan{}, nil)
	loanRepo.On("FindActiveByCustomerID", ctx, int64(1)).Return([]*loan.Loan{}, nil)
	loanRepo.On("CreateLoan", ctx, mock.Anything).Return(nil, errors.New("connection reset"))

	result, err := svc.CreateLoan(ctx, Request{
		CustomerID:   1,
		LoanAmount:   d("100000"),
		InterestRate: d("12.5"),
		TenureMonths: 36,
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrInternalServer)
}

func TestCreditScore_UnknownCustomerIsZero(t *testing.T) {
	svc, customerRepo, loanRepo, _ := newTestService(t)
	ctx := context.Background()

	customerRepo.On("FindByID", ctx, int64(404)).Return(nil, customer.ErrNotFound)

	score, err := svc.CreditScore(ctx, 404)

	assert.NoError(t, err)
	assert.Equal(t, 0, score)
	loanRepo.AssertNotCalled(t, "FindByCustomerID", mock.Anything, mock.Anything)
}

func TestCreditScore_NewCustomerGetsDefault(t *testing.T) {
	svc, customerRepo, loanRepo, _ := newTestService(t)
	ctx := context.Background()

	customerRepo.On("FindByID", ctx, int64(1)).Return(eligCustomer(1, 50000, 1800000), nil)
	loanRepo.On("FindByCustomerID", ctx, int64(1)).Return([]*loan.Loan{}, nil)

	score, err := svc.CreditScore(ctx, 1)

	assert.NoError(t, err)
	assert.Equal(t, DefaultScore, score)
}

func TestWithinEMIBudget_UnknownCustomerFailsClosed(t *testing.T) {
	svc, customerRepo, loanRepo, _ := newTestService(t)
	ctx := context.Background()

	customerRepo.On("FindByID", ctx, int64(404)).Return(nil, customer.ErrNotFound)

	within, err := svc.WithinEMIBudget(ctx, 404, d("1"))

	assert.NoError(t, err)
	assert.False(t, within)
	loanRepo.AssertNotCalled(t, "FindActiveByCustomerID", mock.Anything, mock.Anything)
}
