package settlement

import (
	"sort"

	"github.com/shopspring/decimal"
)

type Transfer struct {
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	Amount    int64  `json:"amount"`
	Completed bool   `json:"completed"`
}

// PlanTransfers rounds every adjusted profit with RoundNets, then pairs the
// largest debtor with the largest creditor until the rounded nets are paid
// out. What a player pays or receives in total equals their rounded net.
func PlanTransfers(sum Summary, unit float64) []Transfer {
	nets := RoundNets(sum.Results, unit)

	type bal struct {
		id  string
		net int64
	}
	var pos, neg []bal
	for i, r := range sum.Results {
		if nets[i] > 0 {
			pos = append(pos, bal{id: r.PlayerID, net: nets[i]})
		} else if nets[i] < 0 {
			neg = append(neg, bal{id: r.PlayerID, net: -nets[i]})
		}
	}
	sort.SliceStable(pos, func(i, j int) bool { return pos[i].net > pos[j].net })
	sort.SliceStable(neg, func(i, j int) bool { return neg[i].net > neg[j].net })

	var transfers []Transfer
	i, j := 0, 0
	for i < len(pos) && j < len(neg) {
		amt := min(pos[i].net, neg[j].net)
		transfers = append(transfers, Transfer{FromID: neg[j].id, ToID: pos[i].id, Amount: amt})
		pos[i].net -= amt
		neg[j].net -= amt
		if pos[i].net == 0 {
			i++
		}
		if neg[j].net == 0 {
			j++
		}
	}
	return transfers
}

// RoundNets rounds each adjusted profit to a multiple of unit using the
// largest remainder method: every net is floored, then the units lost to
// flooring go one each to the largest remainders. The rounded nets add up to
// the rounded total of the originals, which is zero for a resolved ledger.
// Ties go to the earlier result. unit should be a whole amount.
func RoundNets(results []Result, unit float64) []int64 {
	if unit <= 0 {
		unit = 1
	}
	u := decimal.NewFromFloat(unit)
	floors := make([]int64, len(results))
	rems := make([]decimal.Decimal, len(results))
	total := decimal.Zero
	var floorSum int64
	for i, r := range results {
		// Round(9) keeps float noise such as 49.999999999 from losing a unit.
		q := decimal.NewFromFloat(r.AdjustedProfit).Div(u).Round(9)
		f := q.Floor()
		floors[i] = f.IntPart()
		rems[i] = q.Sub(f)
		floorSum += floors[i]
		total = total.Add(q)
	}

	order := make([]int, len(results))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rems[order[a]].GreaterThan(rems[order[b]]) })
	extra := total.Round(0).IntPart() - floorSum
	for k := 0; k < len(order) && int64(k) < extra; k++ {
		floors[order[k]]++
	}

	out := make([]int64, len(results))
	for i, f := range floors {
		out[i] = decimal.NewFromInt(f).Mul(u).Round(0).IntPart()
	}
	return out
}
