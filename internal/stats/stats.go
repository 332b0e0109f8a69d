package stats

import (
	"sort"
	"time"

	"github.com/susu3304/pokerledger/internal/model"
)

type PlayerStats struct {
	PlayerID           string  `json:"player_id"`
	LastSessionProfit  float64 `json:"last_session_profit"`
	CurrentMonthProfit float64 `json:"current_month_profit"`
	TotalProfit        float64 `json:"total_profit"`
	TotalGames         int     `json:"total_games"`
}

// ForPlayer aggregates raw profits over closed sessions in which the player
// has a cash-out. The current month is taken from now; the last session is
// the one that ended most recently.
func ForPlayer(playerID string, sessions []model.Session, now time.Time) PlayerStats {
	st := PlayerStats{PlayerID: playerID}

	closed := make([]model.Session, 0, len(sessions))
	for _, s := range sessions {
		if !s.Active {
			closed = append(closed, s)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		return endTime(closed[i]).After(endTime(closed[j]))
	})

	seenLast := false
	for _, s := range closed {
		p, ok := s.Player(playerID)
		if !ok || !p.CashedOut() {
			continue
		}
		profit := *p.CashOut - p.Invested(s.Config.BuyInAmount)

		st.TotalGames++
		st.TotalProfit += profit
		if sameMonth(s.StartTime, now) {
			st.CurrentMonthProfit += profit
		}
		if !seenLast {
			st.LastSessionProfit = profit
			seenLast = true
		}
	}
	return st
}

func endTime(s model.Session) time.Time {
	if s.EndTime == nil {
		return time.Time{}
	}
	return *s.EndTime
}

func sameMonth(a, b time.Time) bool {
	b = b.In(a.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}
