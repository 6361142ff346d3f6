// Package channelstate holds the per-channel state cache shared by all
// feature modules, and the guild-affinity rule that protects it.
//
// The Store is an explicit object handed to the host at construction. It
// loads records lazily through a Persister, keeps them cached, and writes
// them back on Save. Callers serialise access to a single channel's record
// themselves (the host holds a per-channel lock around every dispatch); the
// Store only guards its own map.
package channelstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bdobrica/Shiori/common/observability"
	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

// ErrNotFound is returned by Persister.Load when no record exists yet.
var ErrNotFound = errors.New("channelstate: not found")

// Persister is the durable backend behind the Store: a single latest value
// per channel.
type Persister interface {
	Load(ctx context.Context, channelID string) (*ChannelState, error)
	Save(ctx context.Context, channelID string, state *ChannelState) error
}

// Store caches ChannelState records keyed by channel id.
type Store struct {
	persister Persister
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]*ChannelState
}

// New creates a Store backed by p. A nil logger means slog.Default().
func New(p Persister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		persister: p,
		logger:    logger,
		cache:     make(map[string]*ChannelState),
	}
}

// GetOrCreate returns the cached record for channelID, loading it from the
// persister on first reference. When nothing is stored an empty record is
// created and cached. It never fails: when loading fails it returns an
// empty, uncached record marked Unavailable, and the next call tries the
// persister again.
func (s *Store) GetOrCreate(ctx context.Context, channelID string) *ChannelState {
	s.mu.Lock()
	if st, ok := s.cache[channelID]; ok {
		s.mu.Unlock()
		return st
	}
	s.mu.Unlock()

	loaded, err := s.persister.Load(ctx, channelID)
	switch {
	case err == nil && loaded != nil:
		loaded.ChannelID = channelID
	case err == nil, errors.Is(err, ErrNotFound):
		loaded = &ChannelState{ChannelID: channelID}
	default:
		observability.WithTrace(ctx, s.logger).Error("channelstate: load failed; record unavailable",
			"channel", channelID, "err", err)
		return &ChannelState{ChannelID: channelID, unavailable: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.cache[channelID]; ok {
		return st
	}
	s.cache[channelID] = loaded
	return loaded
}

// EnsureMetadata seeds state.GuildID from ref on first use. It reports
// whether the record changed. Unavailable records are left alone.
func (s *Store) EnsureMetadata(state *ChannelState, ref platform.ChannelRef) bool {
	if state.Unavailable() || state.GuildID != "" || ref.GuildID == "" {
		return false
	}
	state.GuildID = ref.GuildID
	return true
}

// IsGuildMatch reports whether state was built under the guild ref now
// belongs to. An absent guild only matches another absent guild. Callers
// must refuse to act on state when this returns false.
func (s *Store) IsGuildMatch(state *ChannelState, ref platform.ChannelRef) bool {
	return state.GuildID == ref.GuildID
}

// Rebind moves state to the guild ref now belongs to, for channels whose
// guild legitimately changed. It reports whether the record changed.
func (s *Store) Rebind(state *ChannelState, ref platform.ChannelRef) bool {
	if state.Unavailable() || state.GuildID == ref.GuildID {
		return false
	}
	state.GuildID = ref.GuildID
	return true
}

// Put replaces the cached record for state.ChannelID with state. The host
// uses it to commit a module's working copy. Unavailable records are
// ignored.
func (s *Store) Put(state *ChannelState) {
	if state.Unavailable() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[state.ChannelID] = state
}

// Save writes the current cached record for channelID to the persister.
// Saving an uncached channel is a no-op.
func (s *Store) Save(ctx context.Context, channelID string) error {
	s.mu.Lock()
	st, ok := s.cache[channelID]
	var snapshot *ChannelState
	if ok {
		snapshot = st.Clone()
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := s.persister.Save(ctx, channelID, snapshot); err != nil {
		return fmt.Errorf("channelstate: save %s: %w", channelID, err)
	}
	return nil
}

// Len returns the number of cached channels.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}
