package config

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("GIN_MODE", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DATABASE_DSN", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "admin@example.com", cfg.SuperAdminEmail)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, devAccessSecret, cfg.AccessSecret)
	assert.Equal(t, devRefreshSecret, cfg.RefreshSecret)
	assert.Contains(t, cfg.DatabaseDSN, "@db:5432/")
	assert.Equal(t, "0 7 * * 1", cfg.DigestSchedule)
	assert.False(t, cfg.MailEnabled())
	assert.False(t, cfg.StorageEnabled())
}

func TestBuildDSNEscapesCredentials(t *testing.T) {
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "svc@hokenhub")
	t.Setenv("DB_PASSWORD", "p@ss:w/rd?#")
	t.Setenv("DB_NAME", "directory")
	t.Setenv("DB_SSLMODE", "require")

	parsed, err := url.Parse(buildDSN())
	require.NoError(t, err)
	assert.Equal(t, "db:5432", parsed.Host)
	assert.Equal(t, "svc@hokenhub", parsed.User.Username())
	pw, ok := parsed.User.Password()
	require.True(t, ok)
	assert.Equal(t, "p@ss:w/rd?#", pw)
	assert.Equal(t, "/directory", parsed.Path)
	assert.Equal(t, "require", parsed.Query().Get("sslmode"))
}

func TestFromEnvReleaseRequiresSecrets(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("JWT_REFRESH_SECRET", "")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvReleaseSecureCookie(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("JWT_SECRET", "a-very-long-access-secret-for-release-mode")
	t.Setenv("JWT_REFRESH_SECRET", "a-very-long-refresh-secret-for-release-mode")
	t.Setenv("COOKIE_SECURE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestFromEnvRejectsSharedSecret(t *testing.T) {
	t.Setenv("GIN_MODE", "debug")
	t.Setenv("JWT_SECRET", "same-secret")
	t.Setenv("JWT_REFRESH_SECRET", "same-secret")

	_, err := FromEnv()
	require.Error(t, err)
}
