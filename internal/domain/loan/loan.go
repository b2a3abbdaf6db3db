package loan

import (
	"credit-engine/internal/pkg/apperrors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// endDateDays approximates a month as 30 days when deriving a loan's
// end date from its tenure. Deliberately not calendar-month arithmetic.
const endDateDays = 30

var (
	one = decimal.NewFromInt(1)

	// monthsRateDivisor converts an annual percentage rate to a monthly
	// fraction: rate / 100 / 12.
	monthlyRateDivisor = decimal.NewFromInt(1200)
)

type Loan struct {
	LoanID             int64
	CustomerID         int64
	LoanAmount         decimal.Decimal
	InterestRate       decimal.Decimal
	TenureMonths       int
	MonthlyInstallment decimal.Decimal
	EMIsPaidOnTime     int
	StartDate          time.Time
	EndDate            time.Time
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ActiveAsOf reports whether the loan counts as active at the given
// time: its end date has not yet passed. This is a point-in-time read,
// not the stored IsActive flag.
func (l *Loan) ActiveAsOf(t time.Time) bool {
	return !l.EndDate.Before(t.Truncate(24 * time.Hour))
}

func (l *Loan) RepaymentsLeft() int {
	left := l.TenureMonths - l.EMIsPaidOnTime
	if left < 0 {
		return 0
	}
	return left
}

// CalculateMonthlyInstallment computes the compound-interest EMI for an
// amortizing loan, rounded half-up to 2 decimals. A zero rate falls back
// to straight division with the same rounding.
func CalculateMonthlyInstallment(principal, annualRate decimal.Decimal, tenureMonths int) (decimal.Decimal, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: loan amount must be positive", apperrors.ErrValidation)
	}
	if annualRate.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: interest rate cannot be negative", apperrors.ErrValidation)
	}
	if tenureMonths <= 0 {
		return decimal.Zero, fmt.Errorf("%w: tenure must be a positive number of months", apperrors.ErrValidation)
	}

	n := decimal.NewFromInt(int64(tenureMonths))
	if annualRate.IsZero() {
		return principal.DivRound(n, 2), nil
	}

	monthlyRate := annualRate.Div(monthlyRateDivisor)
	growth := one.Add(monthlyRate).Pow(n)
	emi := principal.Mul(monthlyRate).Mul(growth).Div(growth.Sub(one))
	return emi.Round(2), nil
}

// NewLoan builds a loan starting at startDate with its installment fixed
// from (amount, rate, tenure) at creation time.
func NewLoan(customerID int64, amount, annualRate decimal.Decimal, tenureMonths int, startDate time.Time) (*Loan, error) {
	if customerID <= 0 {
		return nil, fmt.Errorf("%w: customer ID must be positive", apperrors.ErrValidation)
	}
	installment, err := CalculateMonthlyInstallment(amount, annualRate, tenureMonths)
	if err != nil {
		return nil, err
	}
	if startDate.IsZero() {
		startDate = time.Now().Truncate(24 * time.Hour)
	}

	return &Loan{
		CustomerID:         customerID,
		LoanAmount:         amount,
		InterestRate:       annualRate,
		TenureMonths:       tenureMonths,
		MonthlyInstallment: installment,
		StartDate:          startDate,
		EndDate:            startDate.AddDate(0, 0, tenureMonths*endDateDays),
		IsActive:           true,
	}, nil
}
