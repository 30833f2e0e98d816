package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrisapx/fif-client-sub000/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func resetLogging(t *testing.T) {
	t.Helper()
	level := logrus.GetLevel()
	t.Cleanup(func() {
		logrus.SetLevel(level)
		logrus.SetOutput(os.Stderr)
		logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5*time.Minute, cfg.Session.SessionDuration)
	assert.Equal(t, 30*time.Second, cfg.Session.InactivityTimeout)
	assert.False(t, cfg.Session.ExtendOnActivity)
	assert.Equal(t, "default", cfg.Fineract.Tenant)
	assert.Equal(t, 30*time.Second, cfg.Fineract.Timeout)
	assert.Equal(t, storage.DriverFile, cfg.Storage.Driver)
	assert.Equal(t, time.Minute, cfg.Shell.RefreshInterval)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Nil(t, cfg.GetLogger())
}

func TestLoad_FromFile(t *testing.T) {
	resetLogging(t)

	path := writeConfig(t, `
fineract:
  endpoint: https://bank.example.com
  tenant: bank
  insecure: true
session:
  duration: PT10M
  inactivity_timeout: 45000
  extend_on_activity: true
navstate:
  secret: s3cret
storage:
  driver: sqlite
shell:
  refresh_interval: 0
logging:
  level: debug
  format: json
  output: none
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://bank.example.com", cfg.Fineract.Endpoint)
	assert.Equal(t, "bank", cfg.Fineract.Tenant)
	assert.True(t, cfg.Fineract.Insecure)
	assert.Equal(t, 10*time.Minute, cfg.Session.SessionDuration)
	assert.Equal(t, 45*time.Second, cfg.Session.InactivityTimeout)
	assert.True(t, cfg.Session.ExtendOnActivity)
	assert.Equal(t, "s3cret", cfg.NavState.Secret)
	assert.Equal(t, storage.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, time.Duration(0), cfg.Shell.RefreshInterval)
	assert.Equal(t, "bank.example.com", cfg.GetStorageNamespace())
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	require.NotNil(t, cfg.GetLogger())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	resetLogging(t)

	path := writeConfig(t, `
fineract:
  endpoint: https://bank.example.com
  tenant: bank
logging:
  output: none
`)

	t.Setenv("FIF_FINERACT_TENANT", "branch")
	t.Setenv("FIF_SESSION_INACTIVITY_TIMEOUT", "15s")
	t.Setenv("FIF_SESSION_DURATION", "120000")
	t.Setenv("FIF_NAVSTATE_SECRET", "from-env")
	t.Setenv("FIF_STORAGE_NAMESPACE", "custom")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "branch", cfg.Fineract.Tenant)
	assert.Equal(t, 15*time.Second, cfg.Session.InactivityTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Session.SessionDuration)
	assert.Equal(t, "from-env", cfg.NavState.Secret)
	assert.Equal(t, "custom", cfg.GetStorageNamespace())
}

func TestLoad_Errors(t *testing.T) {
	resetLogging(t)

	_, err := Load(writeConfig(t, "logging:\n  level: loud\n  output: none\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "session:\n  duration: forever\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "fineract: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate())

	cfg.Fineract.Endpoint = "https://bank.example.com"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingSecret)

	cfg.NavState.Secret = "s3cret"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "redis"
	assert.Error(t, cfg.Validate())
}

func TestGetStorageNamespace(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "default", cfg.GetStorageNamespace())

	cfg.Fineract.Endpoint = "https://demo.fineract.dev:8443/fineract-provider/api/v1"
	assert.Equal(t, "demo.fineract.dev", cfg.GetStorageNamespace())
}
