package metadata

import (
	"context"
	"time"
)

// Well-known keys.
const (
	KeyCurrentUserID  = "current_user_id"
	KeyAuthToken      = "auth_token"
	KeyFormsSyncedAt  = "forms_synced_at"
	KeySitesSyncedAt  = "sites_synced_at"
	KeyRemoteFetchAt  = "remote_fetched_at"
	KeyLastSyncResult = "last_sync_result"
)

// Repository is a small key/value store for client state that does not
// belong to any entity: the signed-in user, the access token, sync marks.
type Repository interface {
	// Get returns common.ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	GetString(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte) error
	SetString(ctx context.Context, key, value string) error
	// GetTime parses a value stored by SetTime.
	GetTime(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
