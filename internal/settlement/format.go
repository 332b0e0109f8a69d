package settlement

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money formats an amount rounded to whole units with an explicit sign.
func Money(v float64) string {
	d := decimal.NewFromFloat(v).Round(0)
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}

func Percent(ratio float64) string {
	return decimal.NewFromFloat(ratio * 100).Round(0).String() + "%"
}

// LedgerLabel describes the state of the books in one line.
func (s Summary) LedgerLabel() string {
	switch {
	case s.Balanced():
		return "Perfect balance"
	case s.Shortage():
		return fmt.Sprintf("Shortage %s (winners share)", Money(s.Discrepancy))
	default:
		return fmt.Sprintf("Surplus %s (losers share)", Money(s.Discrepancy))
	}
}

// Text renders the summary as a plain-text report. Names are rendered through name.
func (s Summary) Text(name func(Result) string) string {
	if name == nil {
		name = func(r Result) string { return r.PlayerName }
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total buy-in: %s / Total cash-out: %s\n",
		decimal.NewFromFloat(s.TotalBuyIn).Round(0), decimal.NewFromFloat(s.TotalCashOut).Round(0))
	fmt.Fprintf(&b, "Ledger: %s\n", s.LedgerLabel())
	if s.Unresolved != 0 {
		fmt.Fprintf(&b, "Unresolved: %s (no pool to absorb it)\n", Money(s.Unresolved))
	}
	for idx, r := range s.Results {
		fmt.Fprintf(&b, "%d. %s net %s", idx+1, name(r), Money(r.AdjustedProfit))
		if r.Adjustment != 0 {
			fmt.Fprintf(&b, " (raw %s, split %s, ratio %s)", Money(r.RawProfit), Money(r.Adjustment), Percent(r.ShareRatio))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// TransfersText renders the payment instructions, one per line.
func TransfersText(transfers []Transfer, name func(id string) string) string {
	if len(transfers) == 0 {
		return "No transfers needed"
	}
	var b strings.Builder
	b.WriteString("Transfers:\n")
	for _, t := range transfers {
		mark := ""
		if t.Completed {
			mark = " (paid)"
		}
		fmt.Fprintf(&b, "%s → %s: %d%s\n", name(t.FromID), name(t.ToID), t.Amount, mark)
	}
	return b.String()
}
