package settlement

import (
	"math"
	"sort"

	"github.com/susu3304/pokerledger/internal/model"
)

// Epsilon is the tolerance below which a discrepancy is treated as rounding noise.
const Epsilon = 0.01

const UnknownPlayerName = "Unknown"

// UnresolvedPolicy decides what happens to a discrepancy that has no winner
// (shortage) or loser (surplus) pool to absorb it.
type UnresolvedPolicy string

const (
	// PolicyReport leaves profits unadjusted and reports the gap in Summary.Unresolved.
	PolicyReport UnresolvedPolicy = "report"
	// PolicySplitEven spreads the gap evenly over every player in the session.
	PolicySplitEven UnresolvedPolicy = "split"
)

func ParsePolicy(s string) (UnresolvedPolicy, bool) {
	switch UnresolvedPolicy(s) {
	case PolicyReport, "":
		return PolicyReport, true
	case PolicySplitEven:
		return PolicySplitEven, true
	}
	return "", false
}

// Directory resolves player IDs to display names.
type Directory interface {
	Name(playerID string) (string, bool)
}

// MapDirectory is a Directory backed by a map of player ID to name.
type MapDirectory map[string]string

func (d MapDirectory) Name(playerID string) (string, bool) {
	name, ok := d[playerID]
	return name, ok
}

func DirectoryOf(players []model.Player) MapDirectory {
	d := make(MapDirectory, len(players))
	for _, p := range players {
		d[p.ID] = p.Name
	}
	return d
}

type Result struct {
	PlayerID       string  `json:"player_id"`
	PlayerName     string  `json:"player_name"`
	TotalBuyIn     float64 `json:"total_buy_in"`
	CashOut        float64 `json:"cash_out"`
	RawProfit      float64 `json:"raw_profit"`
	Adjustment     float64 `json:"adjustment"`
	AdjustedProfit float64 `json:"adjusted_profit"`
	ShareRatio     float64 `json:"share_ratio"`
}

type Summary struct {
	TotalBuyIn   float64          `json:"total_buy_in"`
	TotalCashOut float64          `json:"total_cash_out"`
	Discrepancy  float64          `json:"discrepancy"`
	Unresolved   float64          `json:"unresolved"`
	Policy       UnresolvedPolicy `json:"policy"`
	Results      []Result         `json:"results"`
}

// Balanced reports whether the ledger closed within Epsilon.
func (s Summary) Balanced() bool {
	return math.Abs(s.Discrepancy) <= Epsilon
}

// Shortage reports whether more cash was paid out than collected.
func (s Summary) Shortage() bool {
	return !s.Balanced() && s.Discrepancy > 0
}

// Surplus reports whether less cash was paid out than collected.
func (s Summary) Surplus() bool {
	return !s.Balanced() && s.Discrepancy < 0
}

type Engine struct {
	Policy UnresolvedPolicy
}

var defaultEngine = Engine{Policy: PolicyReport}

// Compute settles a session with the reporting policy.
func Compute(session model.Session, dir Directory) Summary {
	return defaultEngine.Compute(session, dir)
}

// Compute builds the settlement for a session snapshot. It never mutates the
// session and treats an unset cash-out as zero. Adjusted profits sum to zero
// whenever the discrepancy can be absorbed by a winner or loser pool.
func (e Engine) Compute(session model.Session, dir Directory) Summary {
	policy := e.Policy
	if policy == "" {
		policy = PolicyReport
	}
	sum := Summary{
		Policy:  policy,
		Results: make([]Result, 0, len(session.Players)),
	}

	for _, p := range session.Players {
		invested := p.Invested(session.Config.BuyInAmount)
		out := p.CashOutOrZero()
		sum.TotalBuyIn += invested
		sum.TotalCashOut += out
		sum.Results = append(sum.Results, Result{
			PlayerID:       p.PlayerID,
			PlayerName:     lookupName(dir, p.PlayerID),
			TotalBuyIn:     invested,
			CashOut:        out,
			RawProfit:      out - invested,
			AdjustedProfit: out - invested,
		})
	}

	sum.Discrepancy = sum.TotalCashOut - sum.TotalBuyIn
	if !sum.Balanced() {
		var absorbed bool
		if sum.Discrepancy > 0 {
			absorbed = absorbShortage(sum.Results, sum.Discrepancy)
		} else {
			absorbed = refundSurplus(sum.Results, sum.Discrepancy)
		}
		if !absorbed {
			if policy == PolicySplitEven && len(sum.Results) > 0 {
				splitEven(sum.Results, sum.Discrepancy)
			} else {
				sum.Unresolved = sum.Discrepancy
			}
		}
	}

	sort.SliceStable(sum.Results, func(i, j int) bool {
		return sum.Results[i].AdjustedProfit > sum.Results[j].AdjustedProfit
	})
	return sum
}

// absorbShortage charges winners in proportion to their winnings.
func absorbShortage(results []Result, discrepancy float64) bool {
	var totalWinnings float64
	for _, r := range results {
		if r.RawProfit > 0 {
			totalWinnings += r.RawProfit
		}
	}
	if totalWinnings <= 0 {
		return false
	}
	gap := math.Abs(discrepancy)
	for i := range results {
		r := &results[i]
		if r.RawProfit <= 0 {
			continue
		}
		ratio := r.RawProfit / totalWinnings
		share := gap * ratio
		r.Adjustment = -share
		r.AdjustedProfit = r.RawProfit - share
		r.ShareRatio = ratio
	}
	return true
}

// refundSurplus pays losers back in proportion to their losses.
func refundSurplus(results []Result, discrepancy float64) bool {
	var totalLosses float64
	for _, r := range results {
		if r.RawProfit < 0 {
			totalLosses += math.Abs(r.RawProfit)
		}
	}
	if totalLosses <= 0 {
		return false
	}
	gap := math.Abs(discrepancy)
	for i := range results {
		r := &results[i]
		if r.RawProfit >= 0 {
			continue
		}
		ratio := math.Abs(r.RawProfit) / totalLosses
		share := gap * ratio
		r.Adjustment = share
		r.AdjustedProfit = r.RawProfit + share
		r.ShareRatio = ratio
	}
	return true
}

func splitEven(results []Result, discrepancy float64) {
	n := float64(len(results))
	share := discrepancy / n
	for i := range results {
		results[i].Adjustment = -share
		results[i].AdjustedProfit = results[i].RawProfit - share
		results[i].ShareRatio = 1 / n
	}
}

func lookupName(dir Directory, playerID string) string {
	if dir == nil {
		return UnknownPlayerName
	}
	if name, ok := dir.Name(playerID); ok && name != "" {
		return name
	}
	return UnknownPlayerName
}
