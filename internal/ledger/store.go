package ledger

import "context"

// Store is the persistence boundary of the orchestrator.
//
// Natural keys drive the lookups: storage accounts and cloud services by
// name, deployments by service and slot, machines by deployment and name.
// Upserts are idempotent so re-entrant provisioning never duplicates a
// mirror record.
type Store interface {
	// AppendLog writes one provisioning log entry.
	AppendLog(ctx context.Context, entry LogEntry) error
	// Logs returns the experiment's log entries in insertion order.
	Logs(ctx context.Context, experimentID int64) ([]LogEntry, error)

	UpsertStorageAccount(ctx context.Context, account StorageAccount) (int64, error)
	GetStorageAccount(ctx context.Context, name string) (StorageAccount, bool, error)
	DeleteStorageAccount(ctx context.Context, name string) error

	UpsertCloudService(ctx context.Context, service CloudService) (int64, error)
	GetCloudService(ctx context.Context, name string) (CloudService, bool, error)
	// DeleteCloudService removes the service and cascades to its
	// deployments, machines, and endpoints.
	DeleteCloudService(ctx context.Context, name string) error

	UpsertDeployment(ctx context.Context, deployment Deployment) (int64, error)
	GetDeployment(ctx context.Context, serviceName, slot string) (Deployment, bool, error)
	// DeleteDeployment removes the deployment and cascades to its machines
	// and their endpoints.
	DeleteDeployment(ctx context.Context, serviceName, slot string) error

	UpsertMachine(ctx context.Context, machine Machine) (int64, error)
	GetMachine(ctx context.Context, deploymentID int64, name string) (Machine, bool, error)
	UpdateMachineStatus(ctx context.Context, machineID int64, status string) error
	DeleteMachine(ctx context.Context, deploymentID int64, name string) error

	// ReplaceEndpoints swaps the machine's endpoint set atomically.
	ReplaceEndpoints(ctx context.Context, machineID int64, endpoints []Endpoint) error
	Endpoints(ctx context.Context, machineID int64) ([]Endpoint, error)

	UpsertEnvironment(ctx context.Context, env Environment) (int64, error)
	UpdateEnvironmentStatus(ctx context.Context, envID int64, status string) error
	Environments(ctx context.Context, experimentID int64) ([]Environment, error)

	SavePending(ctx context.Context, op PendingOperation) (int64, error)
	UpdatePending(ctx context.Context, op PendingOperation) error
	DeletePending(ctx context.Context, id int64) error
	// ListPending returns every interrupted poll chain, oldest first.
	ListPending(ctx context.Context) ([]PendingOperation, error)

	Close() error
}
