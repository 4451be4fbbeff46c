package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(LicenseKeyEnv, "key-123")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Consumer.LookupRecords)
	assert.Equal(t, []string{"Name", "Phone", "Email"}, cfg.Consumer.Columns)
	assert.Equal(t, 5.0, cfg.Consumer.RateLimit)
	assert.Equal(t, 2*time.Hour, cfg.Explorer.IdleTTL)
	assert.Equal(t, "key-123", cfg.Consumer.LicenseKey)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.MySQL.Enabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canvass.yaml")
	data := []byte(`
server:
  port: 7000
consumer:
  timeout: 3s
  lookupRecords: 50
redis:
  addr: localhost:6379
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	t.Setenv(LicenseKeyEnv, "key")
	t.Setenv("CANVASS_SERVER_PORT", "7100")
	t.Setenv("DB_HOST", "db:3306")
	t.Setenv("CANVASS_EXPLORER_IDLE_TTL", "10m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7100, cfg.Server.Port)
	assert.Equal(t, ":7100", cfg.Server.Addr())
	assert.Equal(t, 3*time.Second, cfg.Consumer.Timeout)
	assert.Equal(t, 50, cfg.Consumer.LookupRecords)
	assert.True(t, cfg.Redis.Enabled())
	assert.True(t, cfg.MySQL.Enabled())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 10*time.Minute, cfg.Explorer.IdleTTL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRequiresLicenseKey(t *testing.T) {
	t.Setenv(LicenseKeyEnv, "")

	cfg, err := Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), LicenseKeyEnv)
}

func TestMySQLDSN(t *testing.T) {
	m := MySQLConfig{User: "u", Password: "p", Host: "h:3306", Name: "canvass"}
	assert.Equal(t, "u:p@tcp(h:3306)/canvass?parseTime=true", m.DSN())
}
