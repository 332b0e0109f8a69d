package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/susu3304/pokerledger/internal/model"
)

// RecentConfigLimit is how many distinct configs are kept for quick reuse.
const RecentConfigLimit = 5

// SaveConfig stores cfg unless a config with the same stakes exists, in which
// case the existing one is returned. Only the newest RecentConfigLimit configs are kept.
func (db *DB) SaveConfig(ctx context.Context, cfg model.GameConfig) (model.GameConfig, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.GameConfig{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var existing model.GameConfig
	err = tx.QueryRow(ctx,
		`SELECT id, buy_in_amount, chip_ratio, blind_level, created_at
		 FROM game_configs
		 WHERE buy_in_amount = $1 AND chip_ratio = $2
		 LIMIT 1`,
		cfg.BuyInAmount, cfg.ChipRatio,
	).Scan(&existing.ID, &existing.BuyInAmount, &existing.ChipRatio, &existing.BlindLevel, &existing.CreatedAt)
	switch {
	case err == nil:
		return existing, tx.Commit(ctx)
	case !errors.Is(err, pgx.ErrNoRows):
		return model.GameConfig{}, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO game_configs (id, buy_in_amount, chip_ratio, blind_level, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		cfg.ID, cfg.BuyInAmount, cfg.ChipRatio, cfg.BlindLevel, cfg.CreatedAt,
	); err != nil {
		return model.GameConfig{}, err
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM game_configs
		 WHERE id NOT IN (SELECT id FROM game_configs ORDER BY created_at DESC, id LIMIT $1)`,
		RecentConfigLimit,
	); err != nil {
		return model.GameConfig{}, err
	}
	return cfg, tx.Commit(ctx)
}

// RecentConfigs returns the kept configs, newest first.
func (db *DB) RecentConfigs(ctx context.Context) ([]model.GameConfig, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, buy_in_amount, chip_ratio, blind_level, created_at
		 FROM game_configs ORDER BY created_at DESC, id LIMIT $1`,
		RecentConfigLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GameConfig
	for rows.Next() {
		var c model.GameConfig
		if err := rows.Scan(&c.ID, &c.BuyInAmount, &c.ChipRatio, &c.BlindLevel, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
