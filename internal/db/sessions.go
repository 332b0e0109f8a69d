package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/susu3304/pokerledger/internal/model"
	"github.com/susu3304/pokerledger/internal/settlement"
)

const sessionColumns = `id, table_id, config_id, buy_in_amount, chip_ratio, blind_level, start_time, end_time, active`

// SaveSession upserts a session together with all of its player rows.
func (db *DB) SaveSession(ctx context.Context, s model.Session) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := saveSession(ctx, tx, s); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CloseSession stores a finished session and its transfer plan in one
// transaction, so a session is never closed without its plan.
func (db *DB) CloseSession(ctx context.Context, s model.Session, transfers []settlement.Transfer) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := saveSession(ctx, tx, s); err != nil {
		return err
	}
	if err := replaceTransfers(ctx, tx, s.ID, transfers); err != nil {
		return fmt.Errorf("save transfers: %w", err)
	}
	return tx.Commit(ctx)
}

func saveSession(ctx context.Context, tx pgx.Tx, s model.Session) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE
		 SET end_time = EXCLUDED.end_time,
			 active = EXCLUDED.active`,
		s.ID, s.TableID, s.Config.ID, s.Config.BuyInAmount, s.Config.ChipRatio, s.Config.BlindLevel,
		s.StartTime, s.EndTime, s.Active,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM session_players WHERE session_id = $1`, s.ID); err != nil {
		return err
	}
	for seat, p := range s.Players {
		if _, err := tx.Exec(ctx,
			`INSERT INTO session_players (session_id, player_id, seat, buy_in_count, extra_buy_in, cash_out, settled)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.ID, p.PlayerID, seat, p.BuyInCount, p.ExtraBuyIn, p.CashOut, p.Settled,
		); err != nil {
			return fmt.Errorf("save player %s: %w", p.PlayerID, err)
		}
	}
	return nil
}

// ActiveSession returns the running session at a table, or nil.
func (db *DB) ActiveSession(ctx context.Context, tableID string) (*model.Session, error) {
	return db.oneSession(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE table_id = $1 AND active LIMIT 1`, tableID)
}

// LatestSession returns the most recently closed session at a table, or nil.
// A running session at the same table is never returned.
func (db *DB) LatestSession(ctx context.Context, tableID string) (*model.Session, error) {
	return db.oneSession(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE table_id = $1 AND NOT active
		 ORDER BY end_time DESC NULLS LAST, start_time DESC
		 LIMIT 1`, tableID)
}

func (db *DB) Session(ctx context.Context, id string) (*model.Session, error) {
	return db.oneSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

// Sessions returns every session with its players, oldest first.
func (db *DB) Sessions(ctx context.Context) ([]model.Session, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY start_time, id`)
	if err != nil {
		return nil, err
	}
	var out []model.Session
	index := make(map[string]int)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[s.ID] = len(out)
		out = append(out, *s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prow, err := db.pool.Query(ctx,
		`SELECT session_id, player_id, buy_in_count, extra_buy_in, cash_out, settled
		 FROM session_players ORDER BY session_id, seat`)
	if err != nil {
		return nil, err
	}
	defer prow.Close()
	for prow.Next() {
		var sessionID string
		var p model.SessionPlayer
		if err := prow.Scan(&sessionID, &p.PlayerID, &p.BuyInCount, &p.ExtraBuyIn, &p.CashOut, &p.Settled); err != nil {
			return nil, err
		}
		if i, ok := index[sessionID]; ok {
			out[i].Players = append(out[i].Players, p)
		}
	}
	return out, prow.Err()
}

func (db *DB) oneSession(ctx context.Context, query string, args ...any) (*model.Session, error) {
	s, err := scanSession(db.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	players, err := db.sessionPlayers(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Players = players
	return s, nil
}

func (db *DB) sessionPlayers(ctx context.Context, sessionID string) ([]model.SessionPlayer, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT player_id, buy_in_count, extra_buy_in, cash_out, settled
		 FROM session_players WHERE session_id = $1 ORDER BY seat`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SessionPlayer
	for rows.Next() {
		var p model.SessionPlayer
		if err := rows.Scan(&p.PlayerID, &p.BuyInCount, &p.ExtraBuyIn, &p.CashOut, &p.Settled); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	if err := row.Scan(
		&s.ID, &s.TableID, &s.Config.ID, &s.Config.BuyInAmount, &s.Config.ChipRatio, &s.Config.BlindLevel,
		&s.StartTime, &s.EndTime, &s.Active,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
