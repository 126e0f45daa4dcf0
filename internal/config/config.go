package config

type Config interface {
	EnvConfig
	SessionConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetIdentityBaseURL() string
	GetEnv() string
	GetSystemTenantSlug() string
	GetSystemAdminEmail() string
}

type mainConfig struct {
	EnvVars
	Session
	Security
}

func New() Config {
	return mainConfig{}
}
