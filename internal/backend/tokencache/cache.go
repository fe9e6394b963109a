// Package tokencache stores backend auth tokens keyed by tenant. Tokens are
// short-lived; every entry carries the expiry taken from the token itself.
package tokencache

import (
	"context"
	"time"
)

// Cache is the token store shared by all connections of a tenant.
type Cache interface {
	// Get returns the cached token for the tenant, or ok=false when absent
	// or expired.
	Get(ctx context.Context, tenant string) (token string, ok bool, err error)
	// Set stores the token until expiresAt.
	Set(ctx context.Context, tenant, token string, expiresAt time.Time) error
}
