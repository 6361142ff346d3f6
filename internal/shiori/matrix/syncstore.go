package matrix

import (
	"context"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

var _ mautrix.SyncStore = (*SyncStore)(nil)

// SyncValues is the key/value table a SyncStore persists into.
// *store.Store implements it.
type SyncValues interface {
	GetSyncValue(ctx context.Context, userID, key string) (string, error)
	SetSyncValue(ctx context.Context, userID, key, value string) error
}

const (
	keyFilterID  = "filter_id"
	keyNextBatch = "next_batch"
)

// SyncStore keeps the /sync position across restarts so old "!pin"
// commands in room history are not executed again.
type SyncStore struct {
	values SyncValues
}

// NewSyncStore returns a SyncStore writing through values.
func NewSyncStore(values SyncValues) *SyncStore {
	return &SyncStore{values: values}
}

func (s *SyncStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	return s.values.SetSyncValue(ctx, userID.String(), keyFilterID, filterID)
}

func (s *SyncStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	return s.values.GetSyncValue(ctx, userID.String(), keyFilterID)
}

func (s *SyncStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	return s.values.SetSyncValue(ctx, userID.String(), keyNextBatch, nextBatchToken)
}

func (s *SyncStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	return s.values.GetSyncValue(ctx, userID.String(), keyNextBatch)
}
