package sessionapi

// SessionRecord is one user's session on one tenant, exactly as exchanged with the identity
// backend and as persisted by clients in their long-lived store.
// Times are epoch milliseconds.
type SessionRecord struct {
	// TenantID is the stable identifier of the tenant.
	// Example: "6f1c0a4e-3b7d-4c7e-9a58-1f0f5a3c2b11"
	TenantID string `json:"tenantId"`

	// TenantSlug is the URL-safe tenant name used in routes.
	// Example: "acme"
	TenantSlug string `json:"tenantSlug"`

	// UserID and UserEmail bind the record to an identity.
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`

	// RefreshToken is an opaque long-lived credential.
	// Usage: Send to /api/v1/sessions/refresh to mint a new access token
	// Lifespan: Until ExpiresAt (30 days by default)
	RefreshToken string `json:"refreshToken"`

	// AccessToken is a short-lived JWT.
	// Usage: Include in Authorization header: "Bearer <accessToken>"
	// Lifespan: Treated as stale one renewal window after LastAccess
	AccessToken string `json:"accessToken"`

	// ExpiresAt is the absolute expiry of the refresh credential.
	// Once passed, the record is unusable and must be purged.
	ExpiresAt int64 `json:"expiresAt"`

	// LastAccess is updated on each activation and renewal.
	// Drives access-token staleness and LRU eviction.
	LastAccess int64 `json:"lastAccess"`
}

// CreateSessionRequest asks the identity backend to mint a brand-new session.
type CreateSessionRequest struct {
	TenantID   string `json:"tenantId"`
	TenantSlug string `json:"tenantSlug" validate:"required"`
	UserID     string `json:"userId" validate:"required"`
	UserEmail  string `json:"userEmail" validate:"omitempty,email"`
}

// RefreshRequest asks the identity backend for a new access token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
	TenantSlug   string `json:"tenantSlug" validate:"required"`
}

// RevokeRequest invalidates a refresh token server-side.
type RevokeRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	// Error is a machine readable code, one of the Code* constants.
	Error string `json:"error"`

	// ErrorDescription is a human readable explanation, safe to show to users.
	ErrorDescription string `json:"error_description,omitempty"`
}
