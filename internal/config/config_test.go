package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "azureform.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
credentials: /etc/azureform/creds.yaml
ledger: /var/lib/azureform/ledger.db
session_limit: 4
ports:
  base: 20000
  limit: 30000
timeouts:
  operation_interval: 5s
  machine_attempts: 500
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/azureform/creds.yaml", cfg.Credentials)
	assert.Equal(t, "/var/lib/azureform/ledger.db", cfg.Ledger)
	assert.Equal(t, 4, cfg.SessionLimit)
	assert.Equal(t, 20000, cfg.Ports.Base)
	assert.Equal(t, 30000, cfg.Ports.Limit)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.OperationInterval)
	assert.Equal(t, 500, cfg.Timeouts.MachineAttempts)
	// Untouched fields keep their defaults.
	assert.Equal(t, 3*time.Second, cfg.Timeouts.DeploymentInterval)
	assert.Equal(t, 100, cfg.Timeouts.OperationAttempts)
}

func TestLoadFileEnvOverrides(t *testing.T) {
	t.Setenv("AZUREFORM_TIMEOUT_OPERATION_INTERVAL", "250ms")
	t.Setenv("AZUREFORM_TIMEOUT_OPERATION_ATTEMPTS", "7")
	t.Setenv("AZUREFORM_SESSION_LIMIT", "2")

	path := writeConfig(t, `
timeouts:
  operation_interval: 10s
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Timeouts.OperationInterval)
	assert.Equal(t, 7, cfg.Timeouts.OperationAttempts)
	assert.Equal(t, 2, cfg.SessionLimit)
}

func TestLoadFileInvalidEnvIgnored(t *testing.T) {
	t.Setenv("AZUREFORM_TIMEOUT_OPERATION_INTERVAL", "not-a-duration")
	t.Setenv("AZUREFORM_TIMEOUT_MACHINE_ATTEMPTS", "many")

	path := writeConfig(t, "")
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Timeouts.OperationInterval)
	assert.Equal(t, 200, cfg.Timeouts.MachineAttempts)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty credentials",
			mutate:  func(c *Config) { c.Credentials = "" },
			wantErr: "credentials",
		},
		{
			name:    "empty ledger",
			mutate:  func(c *Config) { c.Ledger = "" },
			wantErr: "ledger",
		},
		{
			name:    "session limit below 1",
			mutate:  func(c *Config) { c.SessionLimit = 0 },
			wantErr: "session_limit",
		},
		{
			name:    "inverted port range",
			mutate:  func(c *Config) { c.Ports.Limit = c.Ports.Base },
			wantErr: "ports.limit",
		},
		{
			name:    "zero interval",
			mutate:  func(c *Config) { c.Timeouts.MachineInterval = 0 },
			wantErr: "intervals",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Timeouts.OperationAttempts = 0 },
			wantErr: "attempts",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Ports.Base = 15000
	path := filepath.Join(t.TempDir(), "azureform.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 15000, loaded.Ports.Base)
	assert.Equal(t, cfg.Ledger, loaded.Ledger)
}
