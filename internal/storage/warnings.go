package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// IncrementWarning records a warning against a member and returns the new
// count. Counts older than forgiveAfter are reset before incrementing;
// a zero forgiveAfter disables forgiveness.
func (s *Store) IncrementWarning(ctx context.Context, guildID, userID, reason string, forgiveAfter time.Duration) (count int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	var total int
	var lastAt int64
	row := tx.QueryRowContext(ctx,
		`SELECT count_total, last_at FROM warnings WHERE guild_id = ? AND user_id = ?`,
		guildID, userID)
	scanErr := row.Scan(&total, &lastAt)
	switch {
	case errors.Is(scanErr, sql.ErrNoRows):
		total = 0
	case scanErr != nil:
		return 0, scanErr
	default:
		if forgiveAfter > 0 && now.Sub(time.Unix(lastAt, 0)) > forgiveAfter {
			total = 0
		}
	}

	total++
	_, err = tx.ExecContext(ctx, `
		INSERT INTO warnings (guild_id, user_id, count_total, last_at, last_reason, reset_at)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(guild_id, user_id) DO UPDATE SET
			count_total = excluded.count_total,
			last_at = excluded.last_at,
			last_reason = excluded.last_reason
	`, guildID, userID, total, now.Unix(), reason)
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

// WarningCount reads the current warning total for a member without
// mutating it.
func (s *Store) WarningCount(ctx context.Context, guildID, userID string) (int, error) {
	var total int
	row := s.db.QueryRowContext(ctx,
		`SELECT count_total FROM warnings WHERE guild_id = ? AND user_id = ?`,
		guildID, userID)
	if err := row.Scan(&total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return total, nil
}
