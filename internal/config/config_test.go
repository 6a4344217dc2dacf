package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "data/agency.db", cfg.Database.Path)
	assert.Equal(t, "agency-site", cfg.Auth.Issuer)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTokenTTL())
	assert.Empty(t, cfg.Auth.AdminEmails)
	assert.Equal(t, "*", cfg.CORS.AllowedOrigin)
	assert.False(t, cfg.Auth.RequireEmailConfirmation)
	assert.Equal(t, 24*time.Hour, cfg.ConfirmationTTL())

	assert.Error(t, cfg.Validate(), "jwt secret is required")
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AGENCY_SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("AGENCY_AUTH_JWTSECRET", "s3cret")
	t.Setenv("AGENCY_AUTH_ADMINEMAILS", "a@x.test, b@x.test")
	t.Setenv("AGENCY_AUTH_ACCESSTOKENTTLMINUTES", "15")
	t.Setenv("AGENCY_STORAGE_BUCKET", "assets")
	t.Setenv("AGENCY_AUTH_REQUIREEMAILCONFIRMATION", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"a@x.test", "b@x.test"}, cfg.Auth.AdminEmails)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL())
	assert.Equal(t, "assets", cfg.Storage.Bucket)
	assert.True(t, cfg.Auth.RequireEmailConfirmation)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(
		"# local overrides\n"+
			"export AGENCY_LOG_LEVEL=\"debug\"\n"+
			"AGENCY_DATABASE_PATH='from-dotenv.db'\n"+
			"not a pair\n",
	), 0o600))
	t.Setenv("AGENCY_DATABASE_PATH", "from-env.db")
	// t.Setenv restores the variable after the test; .env only fills unset keys.
	t.Setenv("AGENCY_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("AGENCY_LOG_LEVEL"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
auth:
  jwtsecret: from-file
  adminemails:
    - owner@x.test
ratelimit:
  perminute: 10
  burst: 2
`), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"owner@x.test"}, cfg.Auth.AdminEmails)
	assert.Equal(t, 10, cfg.RateLimit.PerMinute)
	assert.Equal(t, 2, cfg.RateLimit.Burst)
}
