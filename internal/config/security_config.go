package config

type SecurityConfig interface {
	GetSigningSecret() string
	GetRotateRefreshTokens() bool
}

type Security struct{}

var _ SecurityConfig = Security{}

func (Security) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "dev-signing-secret-change-me")
}

func (Security) GetRotateRefreshTokens() bool {
	return GetEnv("ROTATE_REFRESH_TOKENS", "false") == "true"
}
