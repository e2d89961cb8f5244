package commands

import (
	"github.com/spf13/cobra"

	"github.com/expcloud/azureform/cmd/azureform/handlers"
)

// Resume returns the command that picks up poll chains a previous process
// left behind.
func Resume() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume interrupted provisioning chains",
		Long: `Resume every poll chain recorded in the ledger.

When a process stops while remote operations are still in flight, the
pending poll loops are persisted. This command rebuilds and re-enters
them, then blocks until every chain has terminated.

Examples:
  azureform resume
  azureform resume -c production.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Resume(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: azureform.yaml)")

	return cmd
}
