package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bdobrica/Shiori/common/retry"
	"github.com/bdobrica/Shiori/internal/shiori/channelstate"
)

// Compile-time assertion that Store can back the channel state cache.
var _ channelstate.Persister = (*Store)(nil)

// Load returns the stored record for channelID, or channelstate.ErrNotFound.
func (s *Store) Load(ctx context.Context, channelID string) (*channelstate.ChannelState, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM channel_state WHERE channel_id = ?`, channelID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, channelstate.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load channel %s: %w", channelID, err)
	}

	var st channelstate.ChannelState
	if err := json.Unmarshal([]byte(blob), &st); err != nil {
		return nil, fmt.Errorf("store: decode channel %s: %w", channelID, err)
	}
	st.ChannelID = channelID
	return &st, nil
}

// Save upserts the record for channelID. Writing the same state twice is
// harmless. Encoding failures are marked permanent: retrying cannot fix them.
func (s *Store) Save(ctx context.Context, channelID string, state *channelstate.ChannelState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return retry.Permanent(fmt.Errorf("store: encode channel %s: %w", channelID, err))
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO channel_state (channel_id, guild_id, state_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(channel_id) DO UPDATE SET
			guild_id   = excluded.guild_id,
			state_json = excluded.state_json,
			updated_at = excluded.updated_at
	`, channelID, state.GuildID, string(blob), now)
	if err != nil {
		return fmt.Errorf("store: save channel %s: %w", channelID, err)
	}
	return nil
}

// ChannelCount returns the number of persisted channel records.
func (s *Store) ChannelCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channel_state`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count channels: %w", err)
	}
	return n, nil
}
