package config

import (
	"fmt"
	"time"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "azureform.yaml"

// Config is the full orchestrator configuration.
type Config struct {
	// Credentials is the path of the YAML credentials file.
	Credentials string `yaml:"credentials" mapstructure:"credentials"`

	// Ledger is the path of the SQLite ledger database.
	Ledger string `yaml:"ledger" mapstructure:"ledger"`

	// SessionLimit bounds how many authenticated sessions are cached at
	// once.
	SessionLimit int `yaml:"session_limit" mapstructure:"session_limit"`

	Ports    Ports    `yaml:"ports" mapstructure:"ports"`
	Timeouts Timeouts `yaml:"timeouts" mapstructure:"timeouts"`
}

// Ports bounds the candidate range for public port assignment. Limit is
// exclusive.
type Ports struct {
	Base  int `yaml:"base" mapstructure:"base"`
	Limit int `yaml:"limit" mapstructure:"limit"`
}

// Timeouts holds the poll loop bounds: the delay between status checks and
// the total number of checks before a chain fails with a timeout.
type Timeouts struct {
	OperationInterval  time.Duration `yaml:"operation_interval" mapstructure:"operation_interval"`
	OperationAttempts  int           `yaml:"operation_attempts" mapstructure:"operation_attempts"`
	DeploymentInterval time.Duration `yaml:"deployment_interval" mapstructure:"deployment_interval"`
	DeploymentAttempts int           `yaml:"deployment_attempts" mapstructure:"deployment_attempts"`
	MachineInterval    time.Duration `yaml:"machine_interval" mapstructure:"machine_interval"`
	MachineAttempts    int           `yaml:"machine_attempts" mapstructure:"machine_attempts"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Credentials:  "credentials.yaml",
		Ledger:       "azureform.db",
		SessionLimit: 8,
		Ports:        Ports{Base: 10000, Limit: 40000},
		Timeouts: Timeouts{
			OperationInterval:  3 * time.Second,
			OperationAttempts:  100,
			DeploymentInterval: 3 * time.Second,
			DeploymentAttempts: 100,
			MachineInterval:    3 * time.Second,
			MachineAttempts:    200,
		},
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Credentials == "" {
		return fmt.Errorf("credentials path must not be empty")
	}
	if c.Ledger == "" {
		return fmt.Errorf("ledger path must not be empty")
	}
	if c.SessionLimit < 1 {
		return fmt.Errorf("session_limit must be at least 1, got %d", c.SessionLimit)
	}
	if c.Ports.Base < 1 || c.Ports.Base > 65535 {
		return fmt.Errorf("ports.base %d out of range", c.Ports.Base)
	}
	if c.Ports.Limit <= c.Ports.Base || c.Ports.Limit > 65536 {
		return fmt.Errorf("ports.limit %d must be in (%d, 65536]", c.Ports.Limit, c.Ports.Base)
	}
	if c.Timeouts.OperationInterval <= 0 || c.Timeouts.DeploymentInterval <= 0 || c.Timeouts.MachineInterval <= 0 {
		return fmt.Errorf("timeout intervals must be positive")
	}
	if c.Timeouts.OperationAttempts < 1 || c.Timeouts.DeploymentAttempts < 1 || c.Timeouts.MachineAttempts < 1 {
		return fmt.Errorf("timeout attempts must be at least 1")
	}
	return nil
}
