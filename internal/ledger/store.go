package ledger

import (
	"context"

	"github.com/susu3304/pokerledger/internal/model"
	"github.com/susu3304/pokerledger/internal/settlement"
)

// Store persists sessions and their settlement transfers. Lookups return
// (nil, nil) when nothing matches.
type Store interface {
	ActiveSession(ctx context.Context, tableID string) (*model.Session, error)
	// LatestSession returns the most recently closed session at a table.
	LatestSession(ctx context.Context, tableID string) (*model.Session, error)
	Session(ctx context.Context, sessionID string) (*model.Session, error)
	Sessions(ctx context.Context) ([]model.Session, error)
	SaveSession(ctx context.Context, s model.Session) error

	// SaveConfig records cfg in the recent-config list and returns the stored
	// config, reusing an existing one with the same stakes.
	SaveConfig(ctx context.Context, cfg model.GameConfig) (model.GameConfig, error)

	Players(ctx context.Context) ([]model.Player, error)

	// CloseSession stores a finished session and its transfer plan together.
	// On error neither is written.
	CloseSession(ctx context.Context, s model.Session, transfers []settlement.Transfer) error
	Transfers(ctx context.Context, sessionID string) ([]settlement.Transfer, error)
	// CompleteTransfer marks the pending transfer between a and b (either direction) as paid.
	CompleteTransfer(ctx context.Context, sessionID, a, b string) (*settlement.Transfer, error)
}
