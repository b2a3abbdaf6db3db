package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"credit-engine/internal/api/handler"
	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/ingest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	return m.Called(ctx, cust).Error(0)
}

func (m *MockCustomerRepository) Upsert(ctx context.Context, cust *customer.Customer) error {
	return m.Called(ctx, cust).Error(0)
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
	return m.Called(ctx).Error(0)
}

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	args := m.Called(ctx, newLoan)
	var l *loan.Loan
	if args.Get(0) != nil {
		l = args.Get(0).(*loan.Loan)
	}
	return l, args.Error(1)
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
	return m.Called(ctx, newLoan).Error(0)
}

func (m *MockLoanRepository) RefreshActiveFlags(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLoanRepository) ResetIDSequence(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestImportCustomersHandler(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	loanRepo := new(MockLoanRepository)
	importer := ingest.NewImporter(customerRepo, loanRepo, testLogger)
	h := handler.NewImportHandler(importer, testLogger)

	customerRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(cust *customer.Customer) bool {
		return cust.CustomerID == 1 && cust.FirstName == "Asha"
	})).Return(nil)
	customerRepo.On("ResetIDSequence", mock.Anything).Return(nil)

	body := "customer_id,first_name,last_name,age,phone_number,monthly_salary,approved_limit,current_debt\n" +
		"1,Asha,Rao,30,9876543210,50000,1800000,0\n"
	req := httptest.NewRequest(http.MethodPost, "/admin/import/customers", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ImportCustomers(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result ingest.Result
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Imported)
	assert.Empty(t, result.Errors)
	customerRepo.AssertExpectations(t)
}

func TestImportCustomersHandlerBadHeader(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	importer := ingest.NewImporter(customerRepo, new(MockLoanRepository), testLogger)
	h := handler.NewImportHandler(importer, testLogger)

	req := httptest.NewRequest(http.MethodPost, "/admin/import/customers",
		bytes.NewBufferString("wrong,header\n1,2\n"))
	rec := httptest.NewRecorder()
	h.ImportCustomers(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result ingest.Result
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Zero(t, result.Imported)
	assert.NotEmpty(t, result.Errors)
	customerRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestImportLoansHandler(t *testing.T) {
	customerRepo := new(MockCustomerRepository)
	loanRepo := new(MockLoanRepository)
	importer := ingest.NewImporter(customerRepo, loanRepo, testLogger)
	h := handler.NewImportHandler(importer, testLogger)

	customerRepo.On("FindByID", mock.Anything, int64(1)).Return(&customer.Customer{CustomerID: 1}, nil)
	loanRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(l *loan.Loan) bool {
		return l.LoanID == 11 && l.CustomerID == 1 && l.TenureMonths == 12
	})).Return(nil)
	loanRepo.On("ResetIDSequence", mock.Anything).Return(nil)

	body := "customer_id,loan_id,loan_amount,tenure,interest_rate,monthly_repayment,emis_paid_on_time,start_date,end_date\n" +
		"1,11,100000,12,10,8791.59,4,2026-01-10,2027-01-10\n"
	req := httptest.NewRequest(http.MethodPost, "/admin/import/loans", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ImportLoans(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result ingest.Result
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Imported)
	loanRepo.AssertExpectations(t)
}
