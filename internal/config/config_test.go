package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: mysql
  port: 3306
jwt:
  secret: file-secret
outbox:
  poll_interval: 2s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 5, cfg.Security.MaxFailedLogins)
	assert.Equal(t, 5*time.Minute, cfg.Security.LockoutDuration)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: file-secret\n")
	t.Setenv("CLINIC_JWT_SECRET", "env-secret")
	t.Setenv("CLINIC_DB_PASSWORD", "s3cret")
	t.Setenv("CLINIC_SERVER_PORT", "9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: memory\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.NoError(t, cfg.Validate())
	assert.EqualError(t, cfg.ValidateAPI(), "jwt.secret is required")

	cfg.Database.Driver = "sqlite"
	assert.EqualError(t, cfg.Validate(), `unsupported database driver "sqlite"`)
}

func TestValidateWorker(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: memory\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Error(t, cfg.ValidateWorker())

	cfg.Database.Driver = "postgres"
	assert.NoError(t, cfg.ValidateWorker())
	assert.Equal(t, "clinic.events", cfg.Redis.ChannelPrefix)
	assert.Equal(t, "0 15 * * * *", cfg.Outbox.CleanupSchedule)
}
