package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"gopkg.in/yaml.v3"
)

func validateInt(s string) error {
	if _, err := strconv.Atoi(s); err != nil {
		return fmt.Errorf("must be a number")
	}
	return nil
}

// Wizard interactively builds a configuration, starting from the defaults.
func Wizard() (*Config, error) {
	cfg := Default()
	portBase := strconv.Itoa(cfg.Ports.Base)
	portLimit := strconv.Itoa(cfg.Ports.Limit)
	sessionLimit := strconv.Itoa(cfg.SessionLimit)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Credentials file").
				Description("YAML file holding the subscription credentials").
				Value(&cfg.Credentials),
			huh.NewInput().
				Title("Ledger database").
				Description("SQLite file tracking provisioned resources").
				Value(&cfg.Ledger),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("First public port").
				Description("Lowest public port endpoint assignment may use").
				Value(&portBase).
				Validate(validateInt),
			huh.NewInput().
				Title("Public port limit").
				Description("Exclusive upper bound of the public port range").
				Value(&portLimit).
				Validate(validateInt),
			huh.NewInput().
				Title("Session cache size").
				Description("How many authenticated sessions to keep open").
				Value(&sessionLimit).
				Validate(validateInt),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard aborted: %w", err)
	}

	cfg.Ports.Base, _ = strconv.Atoi(portBase)
	cfg.Ports.Limit, _ = strconv.Atoi(portLimit)
	cfg.SessionLimit, _ = strconv.Atoi(sessionLimit)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
