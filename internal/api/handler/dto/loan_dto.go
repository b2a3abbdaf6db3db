package dto

import (
	"fmt"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/eligibility"
	"credit-engine/internal/domain/loan"

	"github.com/shopspring/decimal"
)

type LoanApplicationRequest struct {
	CustomerID   int64           `json:"customerId"`
	LoanAmount   decimal.Decimal `json:"loanAmount"`
	InterestRate decimal.Decimal `json:"interestRate"`
	TenureMonths int             `json:"tenureMonths"`
}

func (r *LoanApplicationRequest) Validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("customerId must be a positive number")
	}
	if !r.LoanAmount.IsPositive() {
		return fmt.Errorf("loanAmount must be greater than zero")
	}
	if r.InterestRate.IsNegative() {
		return fmt.Errorf("interestRate cannot be negative")
	}
	if r.TenureMonths <= 0 {
		return fmt.Errorf("tenureMonths must be a positive number")
	}
	return nil
}

func (r *LoanApplicationRequest) ToEligibilityRequest() eligibility.Request {
	return eligibility.Request{
		CustomerID:   r.CustomerID,
		LoanAmount:   r.LoanAmount,
		InterestRate: r.InterestRate,
		TenureMonths: r.TenureMonths,
	}
}

type EligibilityResponse struct {
	CustomerID            int64  `json:"customerId"`
	Approval              bool   `json:"approval"`
	InterestRate          string `json:"interestRate"`
	CorrectedInterestRate string `json:"correctedInterestRate"`
	TenureMonths          int    `json:"tenureMonths"`
	MonthlyInstallment    string `json:"monthlyInstallment"`
}

func NewEligibilityResponse(result *eligibility.CheckResult) EligibilityResponse {
	return EligibilityResponse{
		CustomerID:            result.CustomerID,
		Approval:              result.Approved,
		InterestRate:          result.InterestRate.String(),
		CorrectedInterestRate: result.CorrectedInterestRate.String(),
		TenureMonths:          result.TenureMonths,
		MonthlyInstallment:    result.MonthlyInstallment.StringFixed(2),
	}
}

type CreateLoanResponse struct {
	LoanID             *int64 `json:"loanId"`
	CustomerID         int64  `json:"customerId"`
	LoanApproved       bool   `json:"loanApproved"`
	Message            string `json:"message"`
	MonthlyInstallment string `json:"monthlyInstallment"`
}

func NewCreateLoanResponse(result *eligibility.CreateResult) CreateLoanResponse {
	return CreateLoanResponse{
		LoanID:             result.LoanID,
		CustomerID:         result.CustomerID,
		LoanApproved:       result.Approved,
		Message:            result.Message,
		MonthlyInstallment: result.MonthlyInstallment.StringFixed(2),
	}
}

type LoanCustomerResponse struct {
	CustomerID  int64  `json:"customerId"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	Age         int    `json:"age"`
}

type LoanDetailResponse struct {
	LoanID             int64                `json:"loanId"`
	Customer           LoanCustomerResponse `json:"customer"`
	LoanAmount         string               `json:"loanAmount"`
	InterestRate       string               `json:"interestRate"`
	MonthlyInstallment string               `json:"monthlyInstallment"`
	TenureMonths       int                  `json:"tenureMonths"`
	StartDate          string               `json:"startDate"`
	EndDate            string               `json:"endDate"`
}

func NewLoanDetailResponse(l *loan.Loan, cust *customer.Customer) LoanDetailResponse {
	return LoanDetailResponse{
		LoanID: l.LoanID,
		Customer: LoanCustomerResponse{
			CustomerID:  cust.CustomerID,
			FirstName:   cust.FirstName,
			LastName:    cust.LastName,
			PhoneNumber: cust.PhoneNumber,
			Age:         cust.Age,
		},
		LoanAmount:         l.LoanAmount.StringFixed(2),
		InterestRate:       l.InterestRate.String(),
		MonthlyInstallment: l.MonthlyInstallment.StringFixed(2),
		TenureMonths:       l.TenureMonths,
		StartDate:          l.StartDate.Format(time.DateOnly),
		EndDate:            l.EndDate.Format(time.DateOnly),
	}
}

type CustomerLoanItemResponse struct {
	LoanID             int64  `json:"loanId"`
	LoanAmount         string `json:"loanAmount"`
	InterestRate       string `json:"interestRate"`
	MonthlyInstallment string `json:"monthlyInstallment"`
	RepaymentsLeft     int    `json:"repaymentsLeft"`
}

func NewCustomerLoanItemResponse(l *loan.Loan) CustomerLoanItemResponse {
	return CustomerLoanItemResponse{
		LoanID:             l.LoanID,
		LoanAmount:         l.LoanAmount.StringFixed(2),
		InterestRate:       l.InterestRate.String(),
		MonthlyInstallment: l.MonthlyInstallment.StringFixed(2),
		RepaymentsLeft:     l.RepaymentsLeft(),
	}
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

type TokenResponse struct {
	Token string `json:"token"`
}
