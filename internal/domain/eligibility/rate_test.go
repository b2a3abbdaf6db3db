package eligibility

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestResolveInterestRate(t *testing.T) {
	tests := []struct {
		name          string
		score         int
		requestedRate float64
		expectedRate  float64
		expectedOK    bool
	}{
		{name: "high score below floor is raised", score: 80, requestedRate: 6, expectedRate: 8, expectedOK: true},
		{name: "high score above floor keeps requested", score: 80, requestedRate: 10.5, expectedRate: 10.5, expectedOK: true},
		{name: "score 51 is in the top slab", score: 51, requestedRate: 8, expectedRate: 8, expectedOK: true},
		{name: "score 50 falls to the middle slab", score: 50, requestedRate: 5, expectedRate: 12, expectedOK: true},
		{name: "middle slab below floor is raised", score: 40, requestedRate: 10, expectedRate: 12, expectedOK: true},
		{name: "middle slab above floor keeps requested", score: 40, requestedRate: 14, expectedRate: 14, expectedOK: true},
		{name: "score 30 falls to the bottom slab", score: 30, requestedRate: 5, expectedRate: 16, expectedOK: true},
		{name: "bottom slab below floor is raised", score: 11, requestedRate: 12, expectedRate: 16, expectedOK: true},
		{name: "bottom slab above floor keeps requested", score: 11, requestedRate: 18, expectedRate: 18, expectedOK: true},
		{name: "score 10 gets no slab", score: 10, requestedRate: 20, expectedOK: false},
		{name: "score 0 gets no slab", score: 0, requestedRate: 20, expectedOK: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			corrected, ok := ResolveInterestRate(tc.score, decimal.NewFromFloat(tc.requestedRate))
			assert.Equal(t, tc.expectedOK, ok)
			if tc.expectedOK {
				assert.True(t, decimal.NewFromFloat(tc.expectedRate).Equal(corrected),
					"expected %v, got %s", tc.expectedRate, corrected)
			}
		})
	}
}

func TestResolveInterestRate_NeverLowersRequestedRate(t *testing.T) {
	for score := MinApprovableScore + 1; score <= 100; score++ {
		for _, rate := range []float64{0, 4, 8, 12, 16, 24} {
			requested := decimal.NewFromFloat(rate)
			corrected, ok := ResolveInterestRate(score, requested)
			assert.True(t, ok, "score %d should be approvable", score)
			assert.True(t, corrected.GreaterThanOrEqual(requested),
				"score %d: corrected %s below requested %s", score, corrected, requested)
		}
	}
}
