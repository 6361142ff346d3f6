package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSyncValue returns the value stored under (userID, key) in the Matrix
// sync table, or "" when nothing has been saved yet.
func (s *Store) GetSyncValue(ctx context.Context, userID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM matrix_sync_state WHERE user_id = ? AND key = ?`, userID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: load sync %s/%s: %w", userID, key, err)
	}
	return value, nil
}

// SetSyncValue upserts (userID, key) → value.
func (s *Store) SetSyncValue(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matrix_sync_state (user_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value
	`, userID, key, value)
	if err != nil {
		return fmt.Errorf("store: save sync %s/%s: %w", userID, key, err)
	}
	return nil
}
