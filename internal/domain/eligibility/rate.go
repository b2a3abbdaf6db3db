package eligibility

import "github.com/shopspring/decimal"

// rateSlab grants a minimum rate floor to scores strictly above
// minScore. Slabs are ordered best-score-first; the first match wins.
type rateSlab struct {
	minScore int
	floor    decimal.Decimal
}

var rateSlabs = []rateSlab{
	{minScore: 50, floor: decimal.NewFromFloat(8.0)},
	{minScore: 30, floor: decimal.NewFromFloat(12.0)},
	{minScore: 10, floor: decimal.NewFromFloat(16.0)},
}

// ResolveInterestRate maps a credit score and a requested annual rate
// to the rate the score permits. The resolver never lowers a requested
// rate, it only raises it to the slab's floor. Scores at or below 10
// get no slab at all: ok is false and the rate is meaningless.
func ResolveInterestRate(score int, requestedRate decimal.Decimal) (corrected decimal.Decimal, ok bool) {
	for _, slab := range rateSlabs {
		if score > slab.minScore {
			if requestedRate.GreaterThanOrEqual(slab.floor) {
				return requestedRate, true
			}
			return slab.floor, true
		}
	}
	return decimal.Zero, false
}
