package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/expcloud/azureform/internal/ledger"
)

// Status handles the status command: it prints the experiment's operation
// log, its environments, and any pending poll chains.
func Status(ctx context.Context, configPath string, experimentID int64) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	store, err := ledger.OpenSQLite(cfg.Ledger)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer store.Close() //nolint:errcheck

	return printStatus(ctx, os.Stdout, store, experimentID)
}

func printStatus(ctx context.Context, w io.Writer, store ledger.Store, experimentID int64) error {
	logs, err := store.Logs(ctx, experimentID)
	if err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}
	envs, err := store.Environments(ctx, experimentID)
	if err != nil {
		return fmt.Errorf("failed to read environments: %w", err)
	}
	pending, err := store.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to read pending operations: %w", err)
	}

	fmt.Fprintf(w, "Experiment %d\n\n", experimentID)

	fmt.Fprintln(w, "Operation log")
	if len(logs) == 0 {
		fmt.Fprintln(w, "  (empty)")
	} else {
		tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  TIME\tOPERATION\tPHASE\tCODE\tMESSAGE")
		for _, entry := range logs {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\t%s\n",
				entry.CreatedAt.Format("2006-01-02 15:04:05"),
				entry.Operation, entry.Phase, entry.Subcode, entry.Message)
		}
		tw.Flush()
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environments")
	if len(envs) == 0 {
		fmt.Fprintln(w, "  (none)")
	} else {
		tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  NAME\tSTATUS\tREMOTE")
		for _, env := range envs {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", env.Name, env.Status, env.RemoteKind)
		}
		tw.Flush()
	}

	var stuck []ledger.PendingOperation
	for _, op := range pending {
		if op.ExperimentID == experimentID {
			stuck = append(stuck, op)
		}
	}
	if len(stuck) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Pending chains (%d), run 'azureform resume' to pick them up\n", len(stuck))
		for _, op := range stuck {
			fmt.Fprintf(w, "  #%d %s (attempt %d, updated %s)\n",
				op.ID, op.Stage, op.Attempt, op.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}
