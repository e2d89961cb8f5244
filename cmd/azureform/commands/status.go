package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/expcloud/azureform/cmd/azureform/handlers"
)

// Status returns the command that prints an experiment's provisioning log
// and environments.
func Status() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status EXPERIMENT",
		Short: "Show an experiment's provisioning log and environments",
		Long: `Show what the ledger knows about an experiment.

Prints the operation log (start, end, and failure entries with their
subcodes) followed by the experiment's environments and any pending
poll chains.

Examples:
  azureform status 42
  azureform status 42 -c production.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			experimentID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return handlers.Status(cmd.Context(), configPath, experimentID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: azureform.yaml)")

	return cmd
}
