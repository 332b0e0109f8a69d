package settlement

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanTransfers(t *testing.T) {
	tests := []struct {
		name string
		sum  Summary
		unit float64
		want []Transfer
	}{
		{
			name: "single winner single loser",
			sum: Summary{Results: []Result{
				{PlayerID: "p1", AdjustedProfit: 50},
				{PlayerID: "p3", AdjustedProfit: 0},
				{PlayerID: "p2", AdjustedProfit: -50},
			}},
			unit: 1,
			want: []Transfer{{FromID: "p2", ToID: "p1", Amount: 50}},
		},
		{
			name: "one loser pays two winners",
			sum: Summary{Results: []Result{
				{PlayerID: "a", AdjustedProfit: 120},
				{PlayerID: "b", AdjustedProfit: 80},
				{PlayerID: "c", AdjustedProfit: -200},
			}},
			unit: 1,
			want: []Transfer{
				{FromID: "c", ToID: "a", Amount: 120},
				{FromID: "c", ToID: "b", Amount: 80},
			},
		},
		{
			name: "fractional amounts rounded to unit",
			sum: Summary{Results: []Result{
				{PlayerID: "a", AdjustedProfit: 133.34},
				{PlayerID: "b", AdjustedProfit: -66.67},
				{PlayerID: "c", AdjustedProfit: -66.67},
			}},
			unit: 10,
			want: []Transfer{
				{FromID: "b", ToID: "a", Amount: 70},
				{FromID: "c", ToID: "a", Amount: 70},
			},
		},
		{
			name: "loser pays exactly what is owed",
			sum: Summary{Results: []Result{
				{PlayerID: "a", AdjustedProfit: 50.5},
				{PlayerID: "b", AdjustedProfit: 49.5},
				{PlayerID: "c", AdjustedProfit: -100},
			}},
			unit: 1,
			want: []Transfer{
				{FromID: "c", ToID: "a", Amount: 51},
				{FromID: "c", ToID: "b", Amount: 49},
			},
		},
		{
			name: "dust is dropped",
			sum: Summary{Results: []Result{
				{PlayerID: "a", AdjustedProfit: 0.3},
				{PlayerID: "b", AdjustedProfit: -0.3},
			}},
			unit: 1,
			want: nil,
		},
		{
			name: "nothing to pay",
			sum:  Summary{Results: []Result{{PlayerID: "a"}, {PlayerID: "b"}}},
			unit: 1,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanTransfers(tt.sum, tt.unit))
		})
	}
}

func TestPlanTransfers_TotalsMatchRoundedNets(t *testing.T) {
	tests := []struct {
		name string
		nets []float64
		unit float64
	}{
		{"half units", []float64{50.5, 49.5, -100}, 1},
		{"thirds", []float64{100, -33.33, -33.33, -33.34}, 1},
		{"many fractional", []float64{61.7, 38.6, 12.2, -37.4, -37.4, -37.7}, 1},
		{"coarse unit", []float64{133.34, -66.67, -66.67}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sum Summary
			for i, n := range tt.nets {
				sum.Results = append(sum.Results, Result{PlayerID: string(rune('a' + i)), AdjustedProfit: n})
			}
			rounded := RoundNets(sum.Results, tt.unit)

			var total int64
			for _, n := range rounded {
				total += n
			}
			require.Zero(t, total)

			flow := make(map[string]int64)
			var paid, received int64
			for _, tr := range PlanTransfers(sum, tt.unit) {
				require.Positive(t, tr.Amount)
				flow[tr.FromID] -= tr.Amount
				flow[tr.ToID] += tr.Amount
				paid += tr.Amount
				received += tr.Amount
			}
			assert.Equal(t, paid, received)
			for i, r := range sum.Results {
				assert.Equal(t, rounded[i], flow[r.PlayerID], r.PlayerID)
			}
		})
	}
}

func TestPlanTransfers_FromComputedSettlement(t *testing.T) {
	sum := Compute(session(100,
		player("p1", 1, 0, 300),
		player("p2", 1, 0, 50),
		player("p3", 1, 0, 100),
	), names)

	transfers := PlanTransfers(sum, 1)
	require.Len(t, transfers, 1)
	assert.Equal(t, Transfer{FromID: "p2", ToID: "p1", Amount: 50}, transfers[0])
}

func TestSummaryText(t *testing.T) {
	sum := Compute(session(100,
		player("p1", 1, 0, 300),
		player("p2", 1, 0, 50),
		player("p3", 1, 0, 100),
	), names)

	text := sum.Text(nil)
	assert.Contains(t, text, "Total buy-in: 300 / Total cash-out: 450")
	assert.Contains(t, text, "Shortage +150 (winners share)")
	assert.Contains(t, text, "1. Alice net +50 (raw +200, split -150, ratio 100%)")
	assert.Contains(t, text, "3. Bob net -50\n")
	assert.NotContains(t, text, "Unresolved")

	balanced := Compute(session(100, player("p1", 1, 0, 100)), names)
	assert.Contains(t, balanced.Text(nil), "Ledger: Perfect balance")
}

func TestTransfersText(t *testing.T) {
	assert.Equal(t, "No transfers needed", TransfersText(nil, strings.ToUpper))

	text := TransfersText([]Transfer{
		{FromID: "b", ToID: "a", Amount: 70},
		{FromID: "c", ToID: "a", Amount: 30, Completed: true},
	}, strings.ToUpper)
	assert.Equal(t, "Transfers:\nB → A: 70\nC → A: 30 (paid)\n", text)
}
