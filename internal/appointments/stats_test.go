package appointments

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func statsFixture() []Appointment {
	a, b := "closer-a", "closer-b"
	conv, noAns, follow := OutcomeConverted, OutcomeNoAnswer, OutcomeNeedsFollowUp
	return []Appointment{
		{ID: "1", CloserID: &a, Outcome: &conv, SaleValue: decimal.NewNullDecimal(decimal.RequireFromString("1000.50"))},
		{ID: "2", CloserID: &a, Outcome: &conv},
		{ID: "3", CloserID: &a, Outcome: &noAns},
		{ID: "4", CloserID: &a},
		{ID: "5", CloserID: &b, Outcome: &follow},
		{ID: "6"},
	}
}

func TestComputeCloserStats(t *testing.T) {
	stats := ComputeCloserStats("closer-a", statsFixture())

	assert.Equal(t, "closer-a", stats.CloserID)
	assert.Equal(t, 4, stats.TotalCalls)
	assert.Equal(t, 2, stats.TotalConversions)
	assert.Equal(t, "1000.50", stats.TotalRevenue.StringFixed(2), "null sale value counts as zero")
	assert.InDelta(t, 0.5, stats.ConversionRate, 1e-9)
}

func TestComputeCloserStatsNoCalls(t *testing.T) {
	stats := ComputeCloserStats("closer-z", statsFixture())

	assert.Zero(t, stats.TotalCalls)
	assert.Zero(t, stats.ConversionRate)
	assert.True(t, stats.TotalRevenue.IsZero())
}

func TestStatsByCloserMatchesCompute(t *testing.T) {
	appts := statsFixture()
	all := StatsByCloser(appts)

	assert.Len(t, all, 2)
	for id, got := range all {
		want := ComputeCloserStats(id, appts)
		assert.Equal(t, want.TotalCalls, got.TotalCalls, id)
		assert.Equal(t, want.TotalConversions, got.TotalConversions, id)
		assert.True(t, want.TotalRevenue.Equal(got.TotalRevenue), id)
		assert.InDelta(t, want.ConversionRate, got.ConversionRate, 1e-9, id)
		if got.TotalCalls > 0 {
			assert.InDelta(t, float64(got.TotalConversions)/float64(got.TotalCalls), got.ConversionRate, 1e-9)
		}
	}
}
