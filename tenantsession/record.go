package tenantsession

import (
	"context"
	"time"

	"github.com/jrsteele09/go-tenant-session/sessionapi"
)

// SessionRecord is one user's session on one tenant. Times are epoch milliseconds.
type SessionRecord = sessionapi.SessionRecord

// Backend is the identity service that mints and renews sessions.
// Both calls are the only points where the store blocks on the network.
type Backend interface {
	CreateSession(ctx context.Context, req sessionapi.CreateSessionRequest) (*SessionRecord, error)
	RefreshToken(ctx context.Context, req sessionapi.RefreshRequest) (*SessionRecord, error)
}

// Revoker is implemented by backends that can invalidate a refresh token server-side.
type Revoker interface {
	Revoke(ctx context.Context, refreshToken string) error
}

// IsExpired reports whether now is past expiresAt minus margin.
// The same check serves refresh-token expiry (margin 0) and pre-emptive renewal windows.
func IsExpired(now time.Time, expiresAt int64, margin time.Duration) bool {
	return now.UnixMilli() > expiresAt-margin.Milliseconds()
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
