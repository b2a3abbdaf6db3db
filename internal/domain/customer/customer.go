package customer

import (
	"credit-engine/internal/pkg/apperrors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinAge = 18
	MaxAge = 100
)

// lakh is the rounding unit for approved limits (100,000 in the minor
// currency's major unit).
var lakh = decimal.NewFromInt(100_000)

var incomeMultiplier = decimal.NewFromInt(36)

type Customer struct {
	CustomerID    int64
	FirstName     string
	LastName      string
	Age           int
	PhoneNumber   string
	MonthlyIncome decimal.Decimal
	ApprovedLimit decimal.Decimal
	CurrentDebt   decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// CalculateApprovedLimit derives the credit ceiling from monthly income:
// 36x income, rounded half-up to the nearest lakh. The limit is computed
// once at registration and never recomputed afterwards.
func CalculateApprovedLimit(monthlyIncome decimal.Decimal) decimal.Decimal {
	limit := monthlyIncome.Mul(incomeMultiplier)
	return limit.Div(lakh).Round(0).Mul(lakh)
}

func NewCustomer(firstName, lastName string, age int, phoneNumber string, monthlyIncome decimal.Decimal) (*Customer, error) {
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("%w: first and last name cannot be empty", apperrors.ErrValidation)
	}
	if age < MinAge || age > MaxAge {
		return nil, fmt.Errorf("%w: age must be between %d and %d", apperrors.ErrValidation, MinAge, MaxAge)
	}
	if monthlyIncome.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: monthly income must be positive", apperrors.ErrValidation)
	}

	return &Customer{
		FirstName:     firstName,
		LastName:      lastName,
		Age:           age,
		PhoneNumber:   phoneNumber,
		MonthlyIncome: monthlyIncome,
		ApprovedLimit: CalculateApprovedLimit(monthlyIncome),
		CurrentDebt:   decimal.Zero,
	}, nil
}
