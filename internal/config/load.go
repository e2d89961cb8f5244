package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses the configuration from a YAML file, fills in
// defaults, applies environment overrides, and validates the result.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	if rawConfig == nil {
		rawConfig = map[string]interface{}{}
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     cfg,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(rawConfig); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides the poll bounds from environment variables.
//
// Environment Variables:
//   - AZUREFORM_TIMEOUT_OPERATION_INTERVAL
//   - AZUREFORM_TIMEOUT_OPERATION_ATTEMPTS
//   - AZUREFORM_TIMEOUT_DEPLOYMENT_INTERVAL
//   - AZUREFORM_TIMEOUT_DEPLOYMENT_ATTEMPTS
//   - AZUREFORM_TIMEOUT_MACHINE_INTERVAL
//   - AZUREFORM_TIMEOUT_MACHINE_ATTEMPTS
//   - AZUREFORM_SESSION_LIMIT
func applyEnv(cfg *Config) {
	cfg.Timeouts.OperationInterval = parseDuration("AZUREFORM_TIMEOUT_OPERATION_INTERVAL", cfg.Timeouts.OperationInterval)
	cfg.Timeouts.OperationAttempts = parseInt("AZUREFORM_TIMEOUT_OPERATION_ATTEMPTS", cfg.Timeouts.OperationAttempts)
	cfg.Timeouts.DeploymentInterval = parseDuration("AZUREFORM_TIMEOUT_DEPLOYMENT_INTERVAL", cfg.Timeouts.DeploymentInterval)
	cfg.Timeouts.DeploymentAttempts = parseInt("AZUREFORM_TIMEOUT_DEPLOYMENT_ATTEMPTS", cfg.Timeouts.DeploymentAttempts)
	cfg.Timeouts.MachineInterval = parseDuration("AZUREFORM_TIMEOUT_MACHINE_INTERVAL", cfg.Timeouts.MachineInterval)
	cfg.Timeouts.MachineAttempts = parseInt("AZUREFORM_TIMEOUT_MACHINE_ATTEMPTS", cfg.Timeouts.MachineAttempts)
	cfg.SessionLimit = parseInt("AZUREFORM_SESSION_LIMIT", cfg.SessionLimit)
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
