package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type ReminderConfig struct {
	Enabled         bool
	IntervalMinutes int
	NextDueAt       *time.Time
}

type ReminderDue struct {
	SessionID       string
	TableID         string
	IntervalMinutes int
}

// UpsertReminder configures reminders for a session and optionally schedules the next due time.
func (db *DB) UpsertReminder(ctx context.Context, sessionID string, enabled bool, intervalMinutes int, nextDueAt *time.Time) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO transfer_reminders (session_id, enabled, interval_minutes, next_due_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO UPDATE
		 SET enabled = EXCLUDED.enabled,
			 interval_minutes = EXCLUDED.interval_minutes,
			 next_due_at = COALESCE(EXCLUDED.next_due_at, transfer_reminders.next_due_at)`,
		sessionID, enabled, intervalMinutes, nextDueAt,
	)
	return err
}

func (db *DB) ReminderConfig(ctx context.Context, sessionID string) (*ReminderConfig, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT enabled, interval_minutes, next_due_at
		 FROM transfer_reminders
		 WHERE session_id = $1`,
		sessionID,
	)
	var cfg ReminderConfig
	if err := row.Scan(&cfg.Enabled, &cfg.IntervalMinutes, &cfg.NextDueAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// DueReminders returns reminder targets that are due and still have unpaid transfers.
func (db *DB) DueReminders(ctx context.Context, now time.Time) ([]ReminderDue, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT r.session_id, s.table_id, r.interval_minutes
		 FROM transfer_reminders r
		 JOIN sessions s ON s.id = r.session_id
		 WHERE r.enabled = TRUE
		   AND (r.next_due_at IS NULL OR r.next_due_at <= $1)
		   AND EXISTS (
			 SELECT 1 FROM settlement_transfers t
			 WHERE t.session_id = r.session_id AND t.completed = FALSE
		   )`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []ReminderDue
	for rows.Next() {
		var r ReminderDue
		if err := rows.Scan(&r.SessionID, &r.TableID, &r.IntervalMinutes); err != nil {
			return nil, err
		}
		targets = append(targets, r)
	}
	return targets, rows.Err()
}

// MarkReminderSent updates reminder schedule timestamps.
func (db *DB) MarkReminderSent(ctx context.Context, sessionID string, sentAt time.Time, nextDue time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE transfer_reminders
		 SET last_sent_at = $2, next_due_at = $3
		 WHERE session_id = $1`,
		sessionID, sentAt, nextDue,
	)
	return err
}

// DelayReminder updates next_due_at without touching last_sent_at.
func (db *DB) DelayReminder(ctx context.Context, sessionID string, nextDue time.Time) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE transfer_reminders
		 SET next_due_at = $2
		 WHERE session_id = $1`,
		sessionID, nextDue,
	)
	return err
}
