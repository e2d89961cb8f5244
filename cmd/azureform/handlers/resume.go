package handlers

import (
	"context"
	"fmt"
)

// Resume handles the resume command: it re-enters every pending poll chain
// the ledger recorded and blocks until they terminate.
func Resume(ctx context.Context, configPath string) error {
	rt, err := openRuntime(configPath)
	if err != nil {
		return err
	}
	defer rt.Close() //nolint:errcheck

	resumed, err := rt.orch.Resume(ctx)
	if err != nil {
		return fmt.Errorf("failed to resume pending chains: %w", err)
	}
	if resumed == 0 {
		fmt.Println("Nothing to resume.")
		return nil
	}

	fmt.Printf("Resumed %d pending chain(s).\n", resumed)
	rt.orch.Wait()
	return nil
}
