package eligibility

import (
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"

	"github.com/shopspring/decimal"
)

const (
	// DefaultScore is assigned to customers with no loan history.
	DefaultScore = 50

	// MinApprovableScore is the terminal floor: at or below it no rate
	// slab applies and the application is rejected outright.
	MinApprovableScore = 10

	maxScore = 100
)

// scoreInput is a snapshot of everything the scoring rules may read:
// the customer record and the full loan history, fixed at one instant.
type scoreInput struct {
	customer *customer.Customer
	loans    []*loan.Loan
	now      time.Time
}

// A scoreRule returns one weighted contribution to the credit score.
// Rules are independent; the engine sums them in order.
type scoreRule func(in scoreInput) float64

var scoreRules = []scoreRule{
	onTimeRepaymentRule,
	loanCountRule,
	currentYearActivityRule,
	approvedVolumeRule,
}

// band maps an inclusive upper bound to a contribution. Band tables are
// ordered ascending; the last entry's points apply past every bound.
type band struct {
	upTo   int64
	points float64
}

func bandedPoints(bands []band, value int64, fallback float64) float64 {
	for _, b := range bands {
		if value <= b.upTo {
			return b.points
		}
	}
	return fallback
}

// onTimeRepaymentRule: ratio of installments paid on schedule to total
// tenure across the entire history, weighted 40.
func onTimeRepaymentRule(in scoreInput) float64 {
	totalEMIs := 0
	paidOnTime := 0
	for _, l := range in.loans {
		totalEMIs += l.TenureMonths
		paidOnTime += l.EMIsPaidOnTime
	}
	if totalEMIs == 0 {
		return 0
	}
	return float64(paidOnTime) / float64(totalEMIs) * 40
}

var loanCountBands = []band{
	{upTo: 2, points: 20},
	{upTo: 5, points: 15},
	{upTo: 8, points: 10},
}

func loanCountRule(in scoreInput) float64 {
	return bandedPoints(loanCountBands, int64(len(in.loans)), 5)
}

var currentYearBands = []band{
	{upTo: 2, points: 20},
	{upTo: 4, points: 15},
}

func currentYearActivityRule(in scoreInput) float64 {
	year := in.now.Year()
	count := int64(0)
	for _, l := range in.loans {
		if l.StartDate.Year() == year {
			count++
		}
	}
	return bandedPoints(currentYearBands, count, 10)
}

// approvedVolumeRule: total historical principal relative to the
// approved limit, weighted 20. Half the limit or less scores full
// points; exceeding the limit scores 5.
func approvedVolumeRule(in scoreInput) float64 {
	total := decimal.Zero
	for _, l := range in.loans {
		total = total.Add(l.LoanAmount)
	}
	half := in.customer.ApprovedLimit.Div(decimal.NewFromInt(2))
	switch {
	case total.LessThanOrEqual(half):
		return 20
	case total.LessThanOrEqual(in.customer.ApprovedLimit):
		return 15
	default:
		return 5
	}
}

// computeScore runs the scoring pipeline over a resolved customer and
// their full loan history.
//
// The active-debt hard gate overrides every rule: when the principal of
// currently active loans exceeds the approved limit the score is 0, no
// matter how clean the history is.
func computeScore(in scoreInput) int {
	if len(in.loans) == 0 {
		return DefaultScore
	}

	activeDebt := decimal.Zero
	for _, l := range in.loans {
		if l.ActiveAsOf(in.now) {
			activeDebt = activeDebt.Add(l.LoanAmount)
		}
	}
	if activeDebt.GreaterThan(in.customer.ApprovedLimit) {
		return 0
	}

	score := 0.0
	for _, rule := range scoreRules {
		score += rule(in)
	}

	truncated := int(score)
	if truncated > maxScore {
		return maxScore
	}
	if truncated < 0 {
		return 0
	}
	return truncated
}
