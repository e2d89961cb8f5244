package commands

import (
	"github.com/spf13/cobra"

	"github.com/expcloud/azureform/cmd/azureform/handlers"
)

// Provision returns the command for provisioning an experiment's virtual
// environments.
//
// Required flags:
//
//	--credential, -k: Credential id from the credentials file
//	--experiment, -e: Experiment the environments belong to
//
// Optional flags:
//
//	--config, -c: Path to configuration YAML file (default: azureform.yaml)
//	--unit, -u:   Provision only the unit with this machine name
func Provision() *cobra.Command {
	var (
		configPath   string
		credentialID string
		experimentID int64
		unitName     string
	)

	cmd := &cobra.Command{
		Use:   "provision TEMPLATE",
		Short: "Provision the template's virtual environments",
		Long: `Provision every virtual environment a template declares.

For each unit the chain creates the storage account, the cloud service,
the deployment, and the virtual machine, then assigns the declared public
endpoints. Resources that already exist and match the ledger are reused.
The command blocks until every chain has terminated.

Examples:
  # Provision every unit of an experiment
  azureform provision course.yaml -k subscription-a -e 42

  # Provision a single unit
  azureform provision course.yaml -k subscription-a -e 42 -u web`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Provision(cmd.Context(), configPath, credentialID, experimentID, args[0], unitName)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: azureform.yaml)")
	cmd.Flags().StringVarP(&credentialID, "credential", "k", "", "Credential id from the credentials file")
	cmd.Flags().Int64VarP(&experimentID, "experiment", "e", 0, "Experiment the environments belong to")
	cmd.Flags().StringVarP(&unitName, "unit", "u", "", "Only the unit with this machine name")
	_ = cmd.MarkFlagRequired("credential")
	_ = cmd.MarkFlagRequired("experiment")

	return cmd
}
