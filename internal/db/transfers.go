package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/susu3304/pokerledger/internal/settlement"
)

// replaceTransfers replaces the transfer plan of a session inside tx.
func replaceTransfers(ctx context.Context, tx pgx.Tx, sessionID string, transfers []settlement.Transfer) error {
	if _, err := tx.Exec(ctx, `DELETE FROM settlement_transfers WHERE session_id = $1`, sessionID); err != nil {
		return err
	}
	for _, t := range transfers {
		if t.Amount <= 0 || t.FromID == "" || t.ToID == "" {
			continue
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO settlement_transfers (session_id, payer_id, payee_id, amount, completed)
			 VALUES ($1, $2, $3, $4, $5)`,
			sessionID, t.FromID, t.ToID, t.Amount, t.Completed,
		); err != nil {
			return err
		}
	}
	return nil
}

// Transfers returns the transfer plan of a session in creation order.
func (db *DB) Transfers(ctx context.Context, sessionID string) ([]settlement.Transfer, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT payer_id, payee_id, amount, completed
		 FROM settlement_transfers
		 WHERE session_id = $1
		 ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []settlement.Transfer
	for rows.Next() {
		var t settlement.Transfer
		if err := rows.Scan(&t.FromID, &t.ToID, &t.Amount, &t.Completed); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CompleteTransfer marks the oldest pending transfer between a and b, in
// either direction, as paid. It returns nil when there is none.
func (db *DB) CompleteTransfer(ctx context.Context, sessionID, a, b string) (*settlement.Transfer, error) {
	var t settlement.Transfer
	err := db.pool.QueryRow(ctx,
		`UPDATE settlement_transfers
		 SET completed = TRUE, completed_at = CURRENT_TIMESTAMP
		 WHERE id = (
			 SELECT id FROM settlement_transfers
			 WHERE session_id = $1 AND completed = FALSE
			   AND ((payer_id = $2 AND payee_id = $3) OR (payer_id = $3 AND payee_id = $2))
			 ORDER BY id
			 LIMIT 1
			 FOR UPDATE
		 )
		 RETURNING payer_id, payee_id, amount, completed`,
		sessionID, a, b,
	).Scan(&t.FromID, &t.ToID, &t.Amount, &t.Completed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
