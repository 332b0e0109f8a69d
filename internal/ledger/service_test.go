package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/pokerledger/internal/model"
	"github.com/susu3304/pokerledger/internal/settlement"
)

var stakes = model.GameConfig{BuyInAmount: 100, ChipRatio: 0.5}

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(
		model.Player{ID: "p1", Name: "Alice"},
		model.Player{ID: "p2", Name: "Bob"},
		model.Player{ID: "p3", Name: "Carol"},
	)
	svc := NewService(store, Options{})
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 21, 0, 0, 0, time.UTC) }
	return svc, store
}

func TestStartSession(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	sess, err := svc.StartSession(ctx, "table", stakes, []string{"p1", "p2", "p1", ""})
	require.NoError(t, err)
	assert.True(t, sess.Active)
	assert.NotEmpty(t, sess.ID)
	assert.NotEmpty(t, sess.Config.ID)
	require.Len(t, sess.Players, 2)
	for _, p := range sess.Players {
		assert.Equal(t, 1, p.BuyInCount)
		assert.Zero(t, p.ExtraBuyIn)
		assert.Nil(t, p.CashOut)
	}
	assert.Len(t, store.configs, 1)

	_, err = svc.StartSession(ctx, "table", stakes, nil)
	assert.ErrorIs(t, err, ErrSessionExists)

	_, err = svc.StartSession(ctx, "other", model.GameConfig{BuyInAmount: 0, ChipRatio: 1}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	// Same stakes at another table reuse the stored config.
	other, err := svc.StartSession(ctx, "other", stakes, nil)
	require.NoError(t, err)
	assert.Equal(t, sess.Config.ID, other.Config.ID)
	assert.Len(t, store.configs, 1)
}

func TestBuyInsAndCashOut(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.StartSession(ctx, "table", stakes, []string{"p1", "p2"})
	require.NoError(t, err)

	p, err := svc.AddBuyIn(ctx, "table", "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, p.BuyInCount)

	p, err = svc.AddBuyIn(ctx, "table", "p2", -5)
	require.NoError(t, err)
	assert.Equal(t, 0, p.BuyInCount)

	p, err = svc.AddExtraBuyIn(ctx, "table", "p2", 40)
	require.NoError(t, err)
	assert.Equal(t, 40.0, p.ExtraBuyIn)

	_, err = svc.AddExtraBuyIn(ctx, "table", "p2", -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	p, err = svc.CashOut(ctx, "table", "p1", 250)
	require.NoError(t, err)
	require.NotNil(t, p.CashOut)
	assert.Equal(t, 250.0, *p.CashOut)

	_, err = svc.AddBuyIn(ctx, "table", "p1", 1)
	assert.ErrorIs(t, err, ErrAlreadyCashedOut)

	// Cash-outs can be corrected.
	p, err = svc.CashOutChips(ctx, "table", "p1", 600)
	require.NoError(t, err)
	assert.Equal(t, 300.0, *p.CashOut)

	_, err = svc.CashOut(ctx, "table", "ghost", 10)
	assert.ErrorIs(t, err, ErrPlayerNotInSession)

	_, err = svc.CashOut(ctx, "nowhere", "p1", 10)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	sess, err := svc.Status(ctx, "table")
	require.NoError(t, err)
	assert.Equal(t, 340.0, sess.TotalPot())
	assert.Equal(t, []string{"p2"}, sess.StillPlaying())
}

func TestJoin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.StartSession(ctx, "table", stakes, []string{"p1"})
	require.NoError(t, err)

	joined, err := svc.Join(ctx, "table", "p2")
	require.NoError(t, err)
	assert.True(t, joined)

	joined, err = svc.Join(ctx, "table", "p2")
	require.NoError(t, err)
	assert.False(t, joined)

	sess, err := svc.Status(ctx, "table")
	require.NoError(t, err)
	assert.Len(t, sess.Players, 2)
}

func TestEnd(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	sess, err := svc.StartSession(ctx, "table", stakes, []string{"p1", "p2", "p3"})
	require.NoError(t, err)

	_, err = svc.CashOut(ctx, "table", "p1", 300)
	require.NoError(t, err)
	_, err = svc.CashOut(ctx, "table", "p2", 50)
	require.NoError(t, err)

	_, err = svc.End(ctx, "table", false)
	require.ErrorIs(t, err, ErrPlayersStillPlaying)
	assert.Contains(t, err.Error(), "p3")

	_, err = svc.CashOut(ctx, "table", "p3", 100)
	require.NoError(t, err)

	out, err := svc.End(ctx, "table", false)
	require.NoError(t, err)
	assert.False(t, out.Session.Active)
	require.NotNil(t, out.Session.EndTime)
	assert.Equal(t, 150.0, out.Summary.Discrepancy)
	assert.Equal(t, "Alice", out.Summary.Results[0].PlayerName)
	assert.InDelta(t, 50, out.Summary.Results[0].AdjustedProfit, 1e-9)
	assert.Equal(t, []settlement.Transfer{{FromID: "p2", ToID: "p1", Amount: 50}}, out.Transfers)
	assert.Equal(t, out.Transfers, store.transfers[sess.ID])

	// Only Carol broke even, so only she has nothing left to settle.
	for _, p := range out.Session.Players {
		assert.Equal(t, p.PlayerID == "p3", p.Settled, p.PlayerID)
	}

	_, err = svc.Status(ctx, "table")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	// The table is free again.
	_, err = svc.StartSession(ctx, "table", stakes, nil)
	assert.NoError(t, err)
}

func TestEnd_ForceFinalizesToZero(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.StartSession(ctx, "table", stakes, []string{"p1", "p2"})
	require.NoError(t, err)
	_, err = svc.CashOut(ctx, "table", "p1", 200)
	require.NoError(t, err)

	out, err := svc.End(ctx, "table", true)
	require.NoError(t, err)
	for _, p := range out.Session.Players {
		require.NotNil(t, p.CashOut)
	}
	assert.True(t, out.Summary.Balanced())
	assert.Equal(t, []settlement.Transfer{{FromID: "p2", ToID: "p1", Amount: 100}}, out.Transfers)
}

func TestEnd_NeedsTwoPlayers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.StartSession(ctx, "table", stakes, []string{"p1"})
	require.NoError(t, err)

	_, err = svc.End(ctx, "table", true)
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)
}

func TestFailedSaveKeepsCachedSession(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.StartSession(ctx, "table", stakes, []string{"p1", "p2"})
	require.NoError(t, err)

	store.failSave = errors.New("disk full")
	_, err = svc.AddBuyIn(ctx, "table", "p1", 3)
	require.Error(t, err)

	store.failSave = nil
	sess, err := svc.Status(ctx, "table")
	require.NoError(t, err)
	p, _ := sess.Player("p1")
	assert.Equal(t, 1, p.BuyInCount)
}

func TestEnd_FailedCloseCanBeRetried(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	sess, err := svc.StartSession(ctx, "table", stakes, []string{"p1", "p2"})
	require.NoError(t, err)
	_, err = svc.CashOut(ctx, "table", "p1", 150)
	require.NoError(t, err)
	_, err = svc.CashOut(ctx, "table", "p2", 50)
	require.NoError(t, err)

	store.failClose = errors.New("db down")
	_, err = svc.End(ctx, "table", false)
	require.Error(t, err)

	// Nothing was closed, so the session is still running everywhere.
	running, err := svc.Status(ctx, "table")
	require.NoError(t, err)
	assert.True(t, running.Active)
	stored, err := store.ActiveSession(ctx, "table")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Empty(t, store.transfers[sess.ID])

	store.failClose = nil
	out, err := svc.End(ctx, "table", false)
	require.NoError(t, err)
	assert.Equal(t, []settlement.Transfer{{FromID: "p2", ToID: "p1", Amount: 50}}, out.Transfers)
	assert.Equal(t, out.Transfers, store.transfers[sess.ID])

	_, err = svc.CompleteTransfer(ctx, sess.ID, "p2", "p1")
	assert.NoError(t, err)
}

func TestLastSettlement_IgnoresRunningSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	first, err := svc.StartSession(ctx, "table", stakes, []string{"p1", "p2"})
	require.NoError(t, err)
	_, err = svc.CashOut(ctx, "table", "p1", 160)
	require.NoError(t, err)
	_, err = svc.CashOut(ctx, "table", "p2", 40)
	require.NoError(t, err)
	_, err = svc.End(ctx, "table", false)
	require.NoError(t, err)

	_, err = svc.LastSettlement(ctx, "other")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	svc.now = func() time.Time { return time.Date(2026, 10, 20, 21, 0, 0, 0, time.UTC) }
	_, err = svc.StartSession(ctx, "table", stakes, []string{"p1", "p3"})
	require.NoError(t, err)

	last, err := svc.LastSettlement(ctx, "table")
	require.NoError(t, err)
	assert.Equal(t, first.ID, last.Session.ID)
	assert.False(t, last.Session.Active)
	assert.Equal(t, []settlement.Transfer{{FromID: "p2", ToID: "p1", Amount: 60}}, last.Transfers)

	tr, err := svc.CompleteTransfer(ctx, last.Session.ID, "p1", "p2")
	require.NoError(t, err)
	assert.Equal(t, int64(60), tr.Amount)
}

func TestSettlementAndTransfers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, err := svc.StartSession(ctx, "table", stakes, []string{"p1", "p2"})
	require.NoError(t, err)
	_, err = svc.CashOut(ctx, "table", "p1", 150)
	require.NoError(t, err)
	_, err = svc.CashOut(ctx, "table", "p2", 30)
	require.NoError(t, err)
	_, err = svc.End(ctx, "table", false)
	require.NoError(t, err)

	out, err := svc.Settlement(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, -20.0, out.Summary.Discrepancy)
	assert.Equal(t, []settlement.Transfer{{FromID: "p2", ToID: "p1", Amount: 50}}, out.Transfers)

	last, err := svc.LastSettlement(ctx, "table")
	require.NoError(t, err)
	assert.Equal(t, out.Summary, last.Summary)

	text, err := svc.PendingTransfersText(ctx, sess.ID, func(id string) string { return id })
	require.NoError(t, err)
	assert.Equal(t, "Transfers:\np2 → p1: 50\n", text)

	closed, err := svc.Settlement(ctx, sess.ID)
	require.NoError(t, err)
	for _, p := range closed.Session.Players {
		assert.False(t, p.Settled, p.PlayerID)
	}

	tr, err := svc.CompleteTransfer(ctx, sess.ID, "p1", "p2")
	require.NoError(t, err)
	assert.True(t, tr.Completed)

	paid, err := svc.Settlement(ctx, sess.ID)
	require.NoError(t, err)
	for _, p := range paid.Session.Players {
		assert.True(t, p.Settled, p.PlayerID)
	}

	_, err = svc.CompleteTransfer(ctx, sess.ID, "p1", "p2")
	assert.ErrorIs(t, err, ErrTransferNotFound)

	text, err = svc.PendingTransfersText(ctx, sess.ID, func(id string) string { return id })
	require.NoError(t, err)
	assert.Empty(t, text)

	out, err = svc.Settlement(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, out.Transfers[0].Completed)

	_, err = svc.Settlement(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestHistoryAndStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.StartSession(ctx, "a", stakes, []string{"p1", "p2"})
	require.NoError(t, err)
	_, err = svc.CashOut(ctx, "a", "p1", 180)
	require.NoError(t, err)
	_, err = svc.CashOut(ctx, "a", "p2", 20)
	require.NoError(t, err)
	_, err = svc.End(ctx, "a", false)
	require.NoError(t, err)
	_, err = svc.StartSession(ctx, "b", stakes, []string{"p1", "p2"})
	require.NoError(t, err)

	history, err := svc.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	st, err := svc.PlayerStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalGames)
	assert.Equal(t, 80.0, st.TotalProfit)
	assert.Equal(t, 80.0, st.CurrentMonthProfit)
}

func TestConcurrentBuyIns(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.StartSession(ctx, "table", stakes, []string{"p1", "p2"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.AddBuyIn(ctx, "table", "p1", 1)
		}()
	}
	wg.Wait()

	sess, err := svc.Status(ctx, "table")
	require.NoError(t, err)
	p, _ := sess.Player("p1")
	assert.Equal(t, 21, p.BuyInCount)
}
