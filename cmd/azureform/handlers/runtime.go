// Package handlers implements the execution logic behind the CLI commands.
//
// Commands parse flags and delegate here; handlers wire the configuration,
// the credential source, the ledger, and the orchestrator together and run
// the requested operation.
package handlers

import (
	"fmt"

	"github.com/expcloud/azureform/internal/azure"
	"github.com/expcloud/azureform/internal/config"
	"github.com/expcloud/azureform/internal/ledger"
	"github.com/expcloud/azureform/internal/provisioning"
)

// runtime bundles everything a lifecycle handler needs: the configuration,
// the credential source, the open ledger, and the orchestrator over both.
type runtime struct {
	cfg    *config.Config
	source *azure.FileCredentialSource
	store  *ledger.SQLiteStore
	orch   *provisioning.Orchestrator
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openRuntime builds the full stack from a configuration file.
func openRuntime(configPath string) (*runtime, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	source, err := azure.LoadCredentials(cfg.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	store, err := ledger.OpenSQLite(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	client := azure.NewRealClient(source, cfg.SessionLimit)
	orch := provisioning.New(client, store, provisioning.NewConsoleObserver(), provisioning.Options{
		Timeouts: provisioning.Timeouts{
			OperationInterval:  cfg.Timeouts.OperationInterval,
			OperationAttempts:  cfg.Timeouts.OperationAttempts,
			DeploymentInterval: cfg.Timeouts.DeploymentInterval,
			DeploymentAttempts: cfg.Timeouts.DeploymentAttempts,
			MachineInterval:    cfg.Timeouts.MachineInterval,
			MachineAttempts:    cfg.Timeouts.MachineAttempts,
		},
		PortBase:  cfg.Ports.Base,
		PortLimit: cfg.Ports.Limit,
	})

	return &runtime{cfg: cfg, source: source, store: store, orch: orch}, nil
}

// Close drains in-flight chains and closes the ledger.
func (r *runtime) Close() error {
	r.orch.Close()
	r.orch.Wait()
	return r.store.Close()
}
