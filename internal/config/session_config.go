package config

import "time"

const (
	DefaultMaxSessionsPerUser = 10
	DefaultRenewalWindow      = 1 * time.Hour
	DefaultRefreshExpiry      = 30 * 24 * time.Hour
	DefaultAccessTokenExpiry  = 1 * time.Hour
	DefaultRefreshTokenLength = 32
)

type SessionConfig interface {
	GetMaxSessionsPerUser() int
	GetRenewalWindow() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenLength() int
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetMaxSessionsPerUser() int {
	return GetEnvInt("SESSION_MAX_PER_USER", DefaultMaxSessionsPerUser)
}

// GetRenewalWindow is how long an access token is trusted after the record's last access.
func (Session) GetRenewalWindow() time.Duration {
	return GetEnvDuration("SESSION_RENEWAL_WINDOW", DefaultRenewalWindow)
}

func (Session) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("SESSION_REFRESH_EXPIRY", DefaultRefreshExpiry)
}

func (Session) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("ACCESS_TOKEN_EXPIRY", DefaultAccessTokenExpiry)
}

func (Session) GetRefreshTokenLength() int {
	return GetEnvInt("REFRESH_TOKEN_LENGTH", DefaultRefreshTokenLength) // bytes, 32 = 256 bits
}
