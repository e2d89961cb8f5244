package handlers

import (
	"context"
	"fmt"

	"github.com/expcloud/azureform/internal/azure"
)

// Doctor handles the doctor command: it validates the configuration, loads
// the credentials file, and pings the control plane with every credential.
func Doctor(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	source, err := azure.LoadCredentials(cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	ids := source.IDs()
	if len(ids) == 0 {
		return fmt.Errorf("credentials file %s holds no credentials", cfg.Credentials)
	}

	client := azure.NewRealClient(source, cfg.SessionLimit)

	fmt.Printf("Checking %d credential(s) against the control plane\n\n", len(ids))
	unreachable := 0
	for _, id := range ids {
		if err := client.Ping(ctx, id); err != nil {
			unreachable++
			fmt.Printf("  ❌ %s: %v\n", id, err)
			continue
		}
		fmt.Printf("  ✅ %s\n", id)
	}
	fmt.Println()

	if unreachable > 0 {
		return fmt.Errorf("%d of %d credential(s) can not reach the control plane", unreachable, len(ids))
	}
	fmt.Println("All credentials are healthy.")
	return nil
}
