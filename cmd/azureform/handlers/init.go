package handlers

import (
	"fmt"
	"os"

	"github.com/expcloud/azureform/internal/config"
)

// Init runs the configuration wizard and writes the result to a file.
func Init(configPath string) error {
	if configPath == "" {
		configPath = config.DefaultPath
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Warning: %s already exists and will be overwritten.\n\n", configPath)
	}

	cfg, err := config.Wizard()
	if err != nil {
		return err
	}
	if err := cfg.Save(configPath); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Configuration saved!")
	fmt.Println()
	fmt.Printf("  File:        %s\n", configPath)
	fmt.Printf("  Credentials: %s\n", cfg.Credentials)
	fmt.Printf("  Ledger:      %s\n", cfg.Ledger)
	fmt.Printf("  Ports:       %d-%d\n", cfg.Ports.Base, cfg.Ports.Limit-1)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Put your subscription credentials in %s\n", cfg.Credentials)
	fmt.Println("  2. Check reachability: azureform doctor")
	fmt.Println("  3. Provision a template: azureform provision TEMPLATE -k CREDENTIAL -e EXPERIMENT")
	fmt.Println()
	return nil
}
