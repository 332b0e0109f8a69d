package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/susu3304/pokerledger/internal/model"
)

// CreatePlayer inserts a new player. It returns ErrConflict if the ID is taken.
func (db *DB) CreatePlayer(ctx context.Context, p model.Player) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO players (id, name, avatar, avatar_color, created_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Avatar, p.AvatarColor, p.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// EnsurePlayer creates the player if missing and keeps the display name current.
// Avatar fields are only written on first insert.
func (db *DB) EnsurePlayer(ctx context.Context, p model.Player) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO players (id, name, avatar, avatar_color)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		p.ID, p.Name, p.Avatar, p.AvatarColor,
	)
	return err
}

// Player returns a single player, or model.ErrPlayerNotFound.
func (db *DB) Player(ctx context.Context, id string) (*model.Player, error) {
	var p model.Player
	err := db.pool.QueryRow(ctx,
		`SELECT id, name, avatar, avatar_color, created_at FROM players WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Avatar, &p.AvatarColor, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Players returns every player ordered by creation time.
func (db *DB) Players(ctx context.Context) ([]model.Player, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, name, avatar, avatar_color, created_at FROM players ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Player
	for rows.Next() {
		var p model.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.Avatar, &p.AvatarColor, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
