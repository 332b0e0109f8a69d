// Command settle prints the settlement of a poker session described in a
// YAML or JSON file, without a database or Discord.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pterm/pterm"

	"github.com/susu3304/pokerledger/internal/ledger"
	"github.com/susu3304/pokerledger/internal/settlement"
)

func main() {
	policyFlag := flag.String("policy", "", "unresolved discrepancy policy: report or split (overrides the file)")
	unitFlag := flag.Float64("unit", 0, "rounding unit for transfers (overrides the file)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [OPTIONS] <session.yaml|session.json>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}

	f, err := loadFile(flag.Arg(0))
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	if *policyFlag != "" {
		f.Policy = *policyFlag
	}
	if *unitFlag > 0 {
		f.RoundingUnit = *unitFlag
	}

	out, err := settle(context.Background(), f)
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	render(out)
}

// settle runs the file through an in-memory ledger.
func settle(ctx context.Context, f *sessionFile) (*ledger.Outcome, error) {
	policy, ok := settlement.ParsePolicy(f.Policy)
	if !ok {
		return nil, fmt.Errorf("unknown policy %q", f.Policy)
	}
	store := ledger.NewMemoryStore(f.Players...)
	if err := store.SaveSession(ctx, f.Session); err != nil {
		return nil, err
	}
	svc := ledger.NewService(store, ledger.Options{Policy: policy, RoundingUnit: f.RoundingUnit})
	return svc.Settlement(ctx, f.Session.ID)
}

func render(out *ledger.Outcome) {
	sum := out.Summary
	pterm.DefaultSection.Println("Settlement")
	pterm.Printfln("Total buy-in: %s  Total cash-out: %s", settlement.Money(sum.TotalBuyIn), settlement.Money(sum.TotalCashOut))
	switch {
	case sum.Balanced():
		pterm.Success.Println(sum.LedgerLabel())
	default:
		pterm.Warning.Println(sum.LedgerLabel())
	}
	if sum.Unresolved != 0 {
		pterm.Error.Printfln("Unresolved: %s", settlement.Money(sum.Unresolved))
	}

	data := pterm.TableData{{"#", "Player", "Buy-in", "Cash-out", "Raw", "Adjustment", "Share", "Net"}}
	for idx, r := range sum.Results {
		data = append(data, []string{
			fmt.Sprint(idx + 1),
			r.PlayerName,
			settlement.Money(r.TotalBuyIn),
			settlement.Money(r.CashOut),
			settlement.Money(r.RawProfit),
			settlement.Money(r.Adjustment),
			settlement.Percent(r.ShareRatio),
			netColor(r.AdjustedProfit),
		})
	}
	pterm.DefaultTable.WithHasHeader().WithData(data).Render()

	names := make(map[string]string, len(sum.Results))
	for _, r := range sum.Results {
		names[r.PlayerID] = r.PlayerName
	}
	pterm.DefaultSection.Println("Transfers")
	pterm.Println(settlement.TransfersText(out.Transfers, func(id string) string { return names[id] }))
}

func netColor(v float64) string {
	s := settlement.Money(v)
	switch {
	case v > 0:
		return pterm.LightGreen(s)
	case v < 0:
		return pterm.LightRed(s)
	}
	return s
}
