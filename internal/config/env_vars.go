package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	portEnvVar      = "PORT"
	appNameVar      = "APP_NAME"
	folderEnvVar    = "DATA_FOLDER"
	identityURLVar  = "IDENTITY_BASE_URL"
	environmentVar  = "ENV"
	defaultDataPath = "./data"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if port[0] != ':' {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Tenant Sessions")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, defaultDataPath)
}

// GetIdentityBaseURL returns the base URL of the identity backend (e.g., "https://id.example.com").
// Session store clients send create/refresh calls there.
func (EnvVars) GetIdentityBaseURL() string {
	return GetEnv(identityURLVar, "http://localhost:8080")
}

func (EnvVars) GetEnv() string {
	return GetEnv(environmentVar, "DEV")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvInt reads an integer env var, falling back to defaultValue when unset or malformed.
func GetEnvInt(envVar string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetEnvDuration reads a time.ParseDuration formatted env var (e.g. "720h").
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// GetSystemTenantSlug names the tenant created on first start.
func (EnvVars) GetSystemTenantSlug() string {
	return GetEnv("SYSTEM_TENANT_SLUG", "system")
}

// GetSystemAdminEmail is the super admin seeded alongside the system tenant.
func (EnvVars) GetSystemAdminEmail() string {
	return GetEnv("SYSTEM_ADMIN_EMAIL", "admin@localhost")
}
