package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/susu3304/pokerledger/internal/model"
	"github.com/susu3304/pokerledger/internal/settlement"
	"github.com/susu3304/pokerledger/internal/stats"
)

var (
	ErrNoActiveSession     = errors.New("no active session at this table")
	ErrSessionExists       = errors.New("a session is already running at this table")
	ErrSessionNotFound     = errors.New("session not found")
	ErrPlayerNotInSession  = errors.New("player is not in this session")
	ErrAlreadyCashedOut    = errors.New("player has already cashed out")
	ErrInvalidAmount       = errors.New("amount must be a non-negative number")
	ErrNotEnoughPlayers    = errors.New("at least two players are needed to settle")
	ErrPlayersStillPlaying = errors.New("some players have not cashed out yet")
	ErrTransferNotFound    = errors.New("no pending transfer between these players")
)

type Options struct {
	Policy       settlement.UnresolvedPolicy
	RoundingUnit float64
}

// Service runs poker sessions, one active session per table. Updates to a
// session are serialised and written through to the store.
type Service struct {
	mu     sync.Mutex
	store  Store
	engine settlement.Engine
	unit   float64
	now    func() time.Time
	active map[string]*model.Session
}

func NewService(store Store, opts Options) *Service {
	unit := opts.RoundingUnit
	if unit <= 0 {
		unit = 1
	}
	return &Service{
		store:  store,
		engine: settlement.Engine{Policy: opts.Policy},
		unit:   unit,
		now:    time.Now,
		active: make(map[string]*model.Session),
	}
}

// Outcome is a settled session together with its payment plan.
type Outcome struct {
	Session   model.Session         `json:"session"`
	Summary   settlement.Summary    `json:"summary"`
	Transfers []settlement.Transfer `json:"transfers"`
}

func (s *Service) StartSession(ctx context.Context, tableID string, cfg model.GameConfig, playerIDs []string) (model.Session, error) {
	if err := cfg.Validate(); err != nil {
		return model.Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.loadActive(ctx, tableID); err == nil {
		return model.Session{}, ErrSessionExists
	} else if !errors.Is(err, ErrNoActiveSession) {
		return model.Session{}, err
	}

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = s.now()
	}
	stored, err := s.store.SaveConfig(ctx, cfg)
	if err != nil {
		return model.Session{}, fmt.Errorf("save config: %w", err)
	}

	sess := model.Session{
		ID:        uuid.NewString(),
		TableID:   tableID,
		Config:    stored,
		StartTime: s.now(),
		Active:    true,
	}
	for _, id := range unique(playerIDs) {
		sess.Players = append(sess.Players, model.NewSessionPlayer(id))
	}
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return model.Session{}, fmt.Errorf("save session: %w", err)
	}
	s.active[tableID] = &sess
	return sess.Clone(), nil
}

// Join adds a player to the running session. It reports false if the player was already seated.
func (s *Service) Join(ctx context.Context, tableID, playerID string) (bool, error) {
	joined := false
	_, err := s.mutate(ctx, tableID, func(sess *model.Session) error {
		if _, ok := sess.Player(playerID); ok {
			return nil
		}
		sess.Players = append(sess.Players, model.NewSessionPlayer(playerID))
		joined = true
		return nil
	})
	return joined, err
}

// AddBuyIn changes a player's buy-in count by delta, never going below zero.
func (s *Service) AddBuyIn(ctx context.Context, tableID, playerID string, delta int) (model.SessionPlayer, error) {
	return s.mutatePlayer(ctx, tableID, playerID, func(_ *model.Session, p *model.SessionPlayer) error {
		if p.CashedOut() {
			return ErrAlreadyCashedOut
		}
		p.BuyInCount += delta
		if p.BuyInCount < 0 {
			p.BuyInCount = 0
		}
		return nil
	})
}

// AddExtraBuyIn records a non-standard amount of cash put in by a player.
func (s *Service) AddExtraBuyIn(ctx context.Context, tableID, playerID string, amount float64) (model.SessionPlayer, error) {
	if !validAmount(amount) || amount == 0 {
		return model.SessionPlayer{}, ErrInvalidAmount
	}
	return s.mutatePlayer(ctx, tableID, playerID, func(_ *model.Session, p *model.SessionPlayer) error {
		if p.CashedOut() {
			return ErrAlreadyCashedOut
		}
		p.ExtraBuyIn += amount
		return nil
	})
}

// CashOut sets (or corrects) the cash a player leaves the table with.
func (s *Service) CashOut(ctx context.Context, tableID, playerID string, amount float64) (model.SessionPlayer, error) {
	if !validAmount(amount) {
		return model.SessionPlayer{}, ErrInvalidAmount
	}
	return s.mutatePlayer(ctx, tableID, playerID, func(_ *model.Session, p *model.SessionPlayer) error {
		p.CashOut = model.Float(amount)
		return nil
	})
}

// CashOutChips converts a chip count to cash with the session's chip ratio.
func (s *Service) CashOutChips(ctx context.Context, tableID, playerID string, chips float64) (model.SessionPlayer, error) {
	if !validAmount(chips) {
		return model.SessionPlayer{}, ErrInvalidAmount
	}
	return s.mutatePlayer(ctx, tableID, playerID, func(sess *model.Session, p *model.SessionPlayer) error {
		p.CashOut = model.Float(chips * sess.Config.ChipRatio)
		return nil
	})
}

func (s *Service) Status(ctx context.Context, tableID string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.loadActive(ctx, tableID)
	if err != nil {
		return model.Session{}, err
	}
	return sess.Clone(), nil
}

// End closes the running session and settles it. Unless force is set it
// refuses while a player is still playing; forced ends count them as cashing out zero.
func (s *Service) End(ctx context.Context, tableID string, force bool) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadActive(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if len(cur.Players) < 2 {
		return nil, ErrNotEnoughPlayers
	}
	if still := cur.StillPlaying(); len(still) > 0 && !force {
		return nil, fmt.Errorf("%w: %s", ErrPlayersStillPlaying, strings.Join(still, ", "))
	}

	sess := cur.Clone()
	sess.Finalize(s.now())
	out, err := s.settle(ctx, sess)
	if err != nil {
		return nil, err
	}
	markSettled(&sess, out.Transfers)
	out.Session = sess

	// The cached session stays active until the session and its plan are stored.
	if err := s.store.CloseSession(ctx, sess, out.Transfers); err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	delete(s.active, tableID)
	return out, nil
}

// Settlement recomputes the settlement of a stored session. Transfers already
// recorded for the session are returned as stored.
func (s *Service) Settlement(ctx context.Context, sessionID string) (*Outcome, error) {
	sess, err := s.store.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return s.settleStored(ctx, *sess)
}

// LastSettlement settles the most recently closed session at a table. A
// session running at the table is ignored.
func (s *Service) LastSettlement(ctx context.Context, tableID string) (*Outcome, error) {
	sess, err := s.store.LatestSession(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return s.settleStored(ctx, *sess)
}

func (s *Service) settleStored(ctx context.Context, sess model.Session) (*Outcome, error) {
	out, err := s.settle(ctx, sess)
	if err != nil {
		return nil, err
	}
	if sess.Active {
		return out, nil
	}
	stored, err := s.store.Transfers(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		out.Transfers = stored
	}
	return out, nil
}

func (s *Service) settle(ctx context.Context, sess model.Session) (*Outcome, error) {
	dir, err := s.Directory(ctx)
	if err != nil {
		return nil, err
	}
	sum := s.engine.Compute(sess, dir)
	return &Outcome{
		Session:   sess,
		Summary:   sum,
		Transfers: settlement.PlanTransfers(sum, s.unit),
	}, nil
}

// CompleteTransfer marks the pending transfer between two players of a
// session as paid. Players left with nothing to pay or receive become settled.
func (s *Service) CompleteTransfer(ctx context.Context, sessionID, a, b string) (settlement.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.store.CompleteTransfer(ctx, sessionID, a, b)
	if err != nil {
		return settlement.Transfer{}, err
	}
	if t == nil {
		return settlement.Transfer{}, ErrTransferNotFound
	}
	if err := s.refreshSettled(ctx, sessionID); err != nil {
		return settlement.Transfer{}, fmt.Errorf("mark settled: %w", err)
	}
	return *t, nil
}

func (s *Service) refreshSettled(ctx context.Context, sessionID string) error {
	sess, err := s.store.Session(ctx, sessionID)
	if err != nil || sess == nil {
		return err
	}
	transfers, err := s.store.Transfers(ctx, sessionID)
	if err != nil {
		return err
	}
	if !markSettled(sess, transfers) {
		return nil
	}
	return s.store.SaveSession(ctx, *sess)
}

// markSettled flags every player with no unpaid transfer as settled and
// reports whether any flag changed.
func markSettled(sess *model.Session, transfers []settlement.Transfer) bool {
	open := make(map[string]bool)
	for _, t := range transfers {
		if !t.Completed {
			open[t.FromID] = true
			open[t.ToID] = true
		}
	}
	changed := false
	for i := range sess.Players {
		p := &sess.Players[i]
		settled := !open[p.PlayerID]
		if p.Settled != settled {
			p.Settled = settled
			changed = true
		}
	}
	return changed
}

// PendingTransfersText lists unpaid transfers of a session, or "" when everything is paid.
func (s *Service) PendingTransfersText(ctx context.Context, sessionID string, name func(id string) string) (string, error) {
	transfers, err := s.store.Transfers(ctx, sessionID)
	if err != nil {
		return "", err
	}
	var pending []settlement.Transfer
	for _, t := range transfers {
		if !t.Completed {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return "", nil
	}
	return settlement.TransfersText(pending, name), nil
}

func (s *Service) History(ctx context.Context) ([]model.Session, error) {
	sessions, err := s.store.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	var closed []model.Session
	for _, sess := range sessions {
		if !sess.Active {
			closed = append(closed, sess)
		}
	}
	return closed, nil
}

func (s *Service) PlayerStats(ctx context.Context, playerID string) (stats.PlayerStats, error) {
	sessions, err := s.store.Sessions(ctx)
	if err != nil {
		return stats.PlayerStats{}, err
	}
	return stats.ForPlayer(playerID, sessions, s.now()), nil
}

// Directory resolves player names from the store.
func (s *Service) Directory(ctx context.Context) (settlement.MapDirectory, error) {
	players, err := s.store.Players(ctx)
	if err != nil {
		return nil, fmt.Errorf("load players: %w", err)
	}
	return settlement.DirectoryOf(players), nil
}

func (s *Service) loadActive(ctx context.Context, tableID string) (*model.Session, error) {
	if sess, ok := s.active[tableID]; ok {
		return sess, nil
	}
	sess, err := s.store.ActiveSession(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoActiveSession
	}
	s.active[tableID] = sess
	return sess, nil
}

// mutate applies fn to a copy of the table's session and stores the copy.
// The cached session is replaced only when both fn and the store succeed.
func (s *Service) mutate(ctx context.Context, tableID string, fn func(*model.Session) error) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.loadActive(ctx, tableID)
	if err != nil {
		return model.Session{}, err
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return model.Session{}, err
	}
	if err := s.store.SaveSession(ctx, next); err != nil {
		return model.Session{}, fmt.Errorf("save session: %w", err)
	}
	s.active[tableID] = &next
	return next.Clone(), nil
}

func (s *Service) mutatePlayer(ctx context.Context, tableID, playerID string, fn func(*model.Session, *model.SessionPlayer) error) (model.SessionPlayer, error) {
	var out model.SessionPlayer
	_, err := s.mutate(ctx, tableID, func(sess *model.Session) error {
		p, ok := sess.Player(playerID)
		if !ok {
			return ErrPlayerNotInSession
		}
		if err := fn(sess, p); err != nil {
			return err
		}
		out = *p
		if p.CashOut != nil {
			out.CashOut = model.Float(*p.CashOut)
		}
		return nil
	})
	return out, err
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
