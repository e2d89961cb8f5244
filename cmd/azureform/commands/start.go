package commands

import (
	"github.com/spf13/cobra"

	"github.com/expcloud/azureform/cmd/azureform/handlers"
)

// Start returns the command for starting an experiment's machines.
func Start() *cobra.Command {
	var (
		configPath   string
		credentialID string
		experimentID int64
		unitName     string
	)

	cmd := &cobra.Command{
		Use:   "start TEMPLATE",
		Short: "Start the template's virtual machines",
		Long: `Start every stopped virtual machine of an experiment.

Machines already running are left alone; stale ledger records are
refreshed. The command blocks until every chain has terminated.

Examples:
  azureform start course.yaml -k subscription-a -e 42
  azureform start course.yaml -k subscription-a -e 42 -u web`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Start(cmd.Context(), configPath, credentialID, experimentID, args[0], unitName)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: azureform.yaml)")
	cmd.Flags().StringVarP(&credentialID, "credential", "k", "", "Credential id from the credentials file")
	cmd.Flags().Int64VarP(&experimentID, "experiment", "e", 0, "Experiment the machines belong to")
	cmd.Flags().StringVarP(&unitName, "unit", "u", "", "Only the unit with this machine name")
	_ = cmd.MarkFlagRequired("credential")
	_ = cmd.MarkFlagRequired("experiment")

	return cmd
}
