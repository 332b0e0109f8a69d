package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrInvalidConfig  = errors.New("invalid game config")
	ErrInvalidPlayer  = errors.New("invalid session player")
	ErrPlayerNotFound = errors.New("player not found")
)

type Player struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Avatar      string    `json:"avatar" yaml:"avatar"`
	AvatarColor string    `json:"avatar_color" yaml:"avatar_color"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// GameConfig holds the per-session constants. ChipRatio is cash per chip and
// only matters when a cash-out is entered as a chip count.
type GameConfig struct {
	ID          string    `json:"id" yaml:"id"`
	BuyInAmount float64   `json:"buy_in_amount" yaml:"buy_in_amount"`
	ChipRatio   float64   `json:"chip_ratio" yaml:"chip_ratio"`
	BlindLevel  string    `json:"blind_level,omitempty" yaml:"blind_level"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

func (c GameConfig) Validate() error {
	if err := c.ValidateBuyIn(); err != nil {
		return err
	}
	if !positive(c.ChipRatio) {
		return fmt.Errorf("%w: chip ratio must be positive, got %v", ErrInvalidConfig, c.ChipRatio)
	}
	return nil
}

// ValidateBuyIn checks only the buy-in amount, which is all settlement needs.
func (c GameConfig) ValidateBuyIn() error {
	if !positive(c.BuyInAmount) {
		return fmt.Errorf("%w: buy-in amount must be positive, got %v", ErrInvalidConfig, c.BuyInAmount)
	}
	return nil
}

// SameStakes reports whether two configs describe the same game.
func (c GameConfig) SameStakes(o GameConfig) bool {
	return c.BuyInAmount == o.BuyInAmount && c.ChipRatio == o.ChipRatio
}

type SessionPlayer struct {
	PlayerID   string   `json:"player_id" yaml:"player_id"`
	BuyInCount int      `json:"buy_in_count" yaml:"buy_in_count"`
	ExtraBuyIn float64  `json:"extra_buy_in" yaml:"extra_buy_in"`
	CashOut    *float64 `json:"cash_out" yaml:"cash_out"` // nil while still playing
	Settled    bool     `json:"settled" yaml:"settled"`
}

// NewSessionPlayer returns the record a player starts a session with: one buy-in, still playing.
func NewSessionPlayer(playerID string) SessionPlayer {
	return SessionPlayer{PlayerID: playerID, BuyInCount: 1}
}

// Validate rejects records no ledger operation could have produced.
func (p SessionPlayer) Validate() error {
	switch {
	case p.PlayerID == "":
		return fmt.Errorf("%w: missing player id", ErrInvalidPlayer)
	case p.BuyInCount < 0:
		return fmt.Errorf("%w: %s has negative buy-in count %d", ErrInvalidPlayer, p.PlayerID, p.BuyInCount)
	case !nonNegative(p.ExtraBuyIn):
		return fmt.Errorf("%w: %s has invalid extra buy-in %v", ErrInvalidPlayer, p.PlayerID, p.ExtraBuyIn)
	case p.CashOut != nil && !nonNegative(*p.CashOut):
		return fmt.Errorf("%w: %s has invalid cash-out %v", ErrInvalidPlayer, p.PlayerID, *p.CashOut)
	}
	return nil
}

func (p SessionPlayer) Invested(buyInAmount float64) float64 {
	return float64(p.BuyInCount)*buyInAmount + p.ExtraBuyIn
}

func (p SessionPlayer) CashedOut() bool {
	return p.CashOut != nil
}

// CashOutOrZero treats an unset cash-out as zero.
func (p SessionPlayer) CashOutOrZero() float64 {
	if p.CashOut == nil {
		return 0
	}
	return *p.CashOut
}

type Session struct {
	ID        string          `json:"id" yaml:"id"`
	TableID   string          `json:"table_id" yaml:"table_id"`
	Config    GameConfig      `json:"config" yaml:"config"`
	StartTime time.Time       `json:"start_time" yaml:"start_time"`
	EndTime   *time.Time      `json:"end_time,omitempty" yaml:"end_time"`
	Players   []SessionPlayer `json:"players" yaml:"players"`
	Active    bool            `json:"active" yaml:"active"`
}

// Clone returns a deep copy so callers can hand out snapshots without sharing the player slice.
func (s Session) Clone() Session {
	out := s
	out.Players = make([]SessionPlayer, len(s.Players))
	for i, p := range s.Players {
		if p.CashOut != nil {
			v := *p.CashOut
			p.CashOut = &v
		}
		out.Players[i] = p
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return out
}

func (s *Session) Player(playerID string) (*SessionPlayer, bool) {
	for i := range s.Players {
		if s.Players[i].PlayerID == playerID {
			return &s.Players[i], true
		}
	}
	return nil, false
}

// TotalPot is the sum of everything bought in so far.
func (s Session) TotalPot() float64 {
	var total float64
	for _, p := range s.Players {
		total += p.Invested(s.Config.BuyInAmount)
	}
	return total
}

// StillPlaying returns the IDs of players without a cash-out.
func (s Session) StillPlaying() []string {
	var ids []string
	for _, p := range s.Players {
		if !p.CashedOut() {
			ids = append(ids, p.PlayerID)
		}
	}
	return ids
}

// Finalize closes the session, forcing unset cash-outs to zero.
func (s *Session) Finalize(at time.Time) {
	for i := range s.Players {
		if s.Players[i].CashOut == nil {
			zero := 0.0
			s.Players[i].CashOut = &zero
		}
	}
	s.Active = false
	s.EndTime = &at
}

func Float(v float64) *float64 {
	return &v
}

func positive(v float64) bool {
	return nonNegative(v) && v > 0
}

func nonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
