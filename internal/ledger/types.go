package ledger

import "time"

// Operation names one provisioning operation in the log.
type Operation string

// Logged operations.
const (
	OpCreateStorageAccount Operation = "create_storage_account"
	OpCreateCloudService   Operation = "create_cloud_service"
	OpCreateDeployment     Operation = "create_deployment"
	OpCreateMachine        Operation = "create_virtual_machine"
	OpStartMachine         Operation = "start_virtual_machine"
	OpStopMachine          Operation = "stop_virtual_machine"
)

// Phase marks where in an operation a log entry was written.
type Phase string

// Log phases. Every operation writes START first and exactly one of END or
// FAIL last.
const (
	PhaseStart Phase = "start"
	PhaseEnd   Phase = "end"
	PhaseFail  Phase = "fail"
)

// Subcodes qualifying END and FAIL entries. The same number means different
// things for END and FAIL; callers pick from the right set.
const (
	// FAIL subcodes.
	SubcodeRemoteError     = 0 // the control plane rejected or errored the call
	SubcodeNameUnavailable = 1 // resource name taken outside this subscription
	SubcodeQuotaExceeded   = 2 // subscription quota would be exceeded
	SubcodeAsyncFailed     = 3 // asynchronous operation ended in failure
	SubcodeCreatedAbsent   = 4 // create reported success but resource is absent
	SubcodeBadTransition   = 5 // lifecycle transition not legal from current state

	// END subcodes.
	SubcodeCreated       = 0 // freshly created
	SubcodeReusedHere    = 1 // already existed under this experiment, reused
	SubcodeReusedManaged = 2 // already existed under another experiment, reused
)

// LogEntry is one record of the append-only provisioning log.
type LogEntry struct {
	ID           int64
	ExperimentID int64
	Operation    Operation
	Phase        Phase
	Message      string
	Subcode      int
	CreatedAt    time.Time
}

// StorageAccount mirrors one remote storage account.
type StorageAccount struct {
	ID           int64
	CredentialID string
	Name         string
	Description  string
	Label        string
	Location     string
	CreatedAt    time.Time
}

// CloudService mirrors one remote cloud service.
type CloudService struct {
	ID           int64
	CredentialID string
	Name         string
	Label        string
	Location     string
	CreatedAt    time.Time
}

// Deployment mirrors one deployment slot of a cloud service.
type Deployment struct {
	ID             int64
	CloudServiceID int64
	Name           string
	Slot           string
	Status         string
	DNS            string
	CreatedAt      time.Time
}

// Machine mirrors one remote virtual machine.
type Machine struct {
	ID           int64
	ExperimentID int64
	DeploymentID int64
	Name         string
	Label        string
	Status       string
	DNS          string
	PublicIP     string
	PrivateIP    string
	Size         string
	CreatedAt    time.Time
}

// Endpoint mirrors one endpoint of a machine.
type Endpoint struct {
	ID          int64
	MachineID   int64
	Name        string
	Protocol    string
	PublicPort  int
	PrivatePort int
	CreatedAt   time.Time
}

// Environment statuses.
const (
	EnvironmentInit    = "init"
	EnvironmentRunning = "running"
	EnvironmentStopped = "stopped"
	EnvironmentFailed  = "failed"
)

// Environment is one user-facing virtual environment backed by a machine.
// RemoteParams holds the JSON connection parameters handed to the remote
// gateway (host, port, protocol, credentials).
type Environment struct {
	ID           int64
	ExperimentID int64
	MachineID    int64
	Name         string
	Status       string
	RemoteKind   string
	RemoteParams string
	CreatedAt    time.Time
}

// PendingOperation is a poll chain interrupted by a process stop. Stage
// names the poll loop to rebuild, Unit is the JSON of the provisioning unit
// being worked, and Handle is the JSON of the remote operation handle.
type PendingOperation struct {
	ID           int64
	ExperimentID int64
	CredentialID string
	Stage        string
	Unit         string
	Handle       string
	Attempt      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
