package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/susu3304/pokerledger/internal/model"
)

func closedSession(id string, start time.Time, buyIn float64, players ...model.SessionPlayer) model.Session {
	end := start.Add(4 * time.Hour)
	return model.Session{
		ID:        id,
		Config:    model.GameConfig{BuyInAmount: buyIn, ChipRatio: 1},
		StartTime: start,
		EndTime:   &end,
		Players:   players,
	}
}

func TestForPlayer(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, 9, 3, 20, 0, 0, 0, time.UTC)
	thisMonth := time.Date(2026, 10, 2, 20, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC)

	sessions := []model.Session{
		closedSession("old", lastMonth, 100,
			model.SessionPlayer{PlayerID: "alice", BuyInCount: 2, CashOut: model.Float(500)},
			model.SessionPlayer{PlayerID: "bob", BuyInCount: 1, CashOut: model.Float(0)},
		),
		closedSession("recent", recent, 50,
			model.SessionPlayer{PlayerID: "alice", BuyInCount: 1, ExtraBuyIn: 25, CashOut: model.Float(0)},
		),
		closedSession("mid", thisMonth, 100,
			model.SessionPlayer{PlayerID: "alice", BuyInCount: 1, CashOut: model.Float(160)},
		),
		{
			ID:        "live",
			Active:    true,
			Config:    model.GameConfig{BuyInAmount: 100, ChipRatio: 1},
			StartTime: now,
			Players:   []model.SessionPlayer{{PlayerID: "alice", BuyInCount: 5, CashOut: model.Float(0)}},
		},
	}

	got := ForPlayer("alice", sessions, now)
	assert.Equal(t, PlayerStats{
		PlayerID:           "alice",
		LastSessionProfit:  -75,
		CurrentMonthProfit: -15,
		TotalProfit:        285,
		TotalGames:         3,
	}, got)

	bob := ForPlayer("bob", sessions, now)
	assert.Equal(t, 1, bob.TotalGames)
	assert.Equal(t, -100.0, bob.TotalProfit)
	assert.Equal(t, -100.0, bob.LastSessionProfit)
	assert.Zero(t, bob.CurrentMonthProfit)
}

func TestForPlayer_SkipsRowsWithoutCashOut(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	sessions := []model.Session{
		closedSession("s", now.Add(-time.Hour*24), 100,
			model.SessionPlayer{PlayerID: "alice", BuyInCount: 1},
		),
	}
	assert.Equal(t, PlayerStats{PlayerID: "alice"}, ForPlayer("alice", sessions, now))
	assert.Equal(t, PlayerStats{PlayerID: "nobody"}, ForPlayer("nobody", nil, now))
}
