package refresh

import (
	"time"
)

// StoredRefreshToken is the server-side record behind an opaque refresh token.
// Only TokenHash is kept; the raw token exists solely in the client's session record.
type StoredRefreshToken struct {
	TokenHash  string    `json:"token_hash"`  // blake2b-256 digest of the raw token, hex encoded
	UserID     string    `json:"user_id"`     // Owner of the session
	TenantID   string    `json:"tenant_id"`   // Tenant the session is scoped to
	TenantSlug string    `json:"tenant_slug"` // Slug the client addresses the tenant by
	AccessJTI  string    `json:"access_jti"`  // jti of the most recent access token minted from this refresh token
	AccessExp  time.Time `json:"access_exp"`  // Expiry of that access token (for revocation bookkeeping)
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Repo manages server-side storage of refresh token metadata keyed by token hash.
// At most one token exists per (user, tenant) pair.
type Repo interface {
	Upsert(refreshToken *StoredRefreshToken) error
	Delete(tokenHash string) error
	Get(tokenHash string) (*StoredRefreshToken, error)
	GetByUserTenant(userID, tenantID string) (*StoredRefreshToken, error)
	ListByUser(userID string) ([]*StoredRefreshToken, error)
}
