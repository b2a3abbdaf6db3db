package dto

import (
	"fmt"
	"strings"

	"credit-engine/internal/domain/customer"

	"github.com/shopspring/decimal"
)

type RegisterCustomerRequest struct {
	FirstName     string          `json:"firstName"`
	LastName      string          `json:"lastName"`
	Age           int             `json:"age"`
	MonthlyIncome decimal.Decimal `json:"monthlyIncome"`
	PhoneNumber   string          `json:"phoneNumber"`
}

func (r *RegisterCustomerRequest) Validate() error {
	if strings.TrimSpace(r.FirstName) == "" {
		return fmt.Errorf("firstName cannot be empty")
	}
	if strings.TrimSpace(r.LastName) == "" {
		return fmt.Errorf("lastName cannot be empty")
	}
	if r.Age < 18 || r.Age > 100 {
		return fmt.Errorf("age must be between 18 and 100")
	}
	if !r.MonthlyIncome.IsPositive() {
		return fmt.Errorf("monthlyIncome must be greater than zero")
	}
	if strings.TrimSpace(r.PhoneNumber) == "" {
		return fmt.Errorf("phoneNumber cannot be empty")
	}
	return nil
}

type CustomerResponse struct {
	CustomerID    int64  `json:"customerId"`
	Name          string `json:"name"`
	Age           int    `json:"age"`
	MonthlyIncome string `json:"monthlyIncome"`
	ApprovedLimit string `json:"approvedLimit"`
	PhoneNumber   string `json:"phoneNumber"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	return CustomerResponse{
		CustomerID:    cust.CustomerID,
		Name:          cust.FirstName + " " + cust.LastName,
		Age:           cust.Age,
		MonthlyIncome: cust.MonthlyIncome.StringFixed(2),
		ApprovedLimit: cust.ApprovedLimit.StringFixed(2),
		PhoneNumber:   cust.PhoneNumber,
	}
}
