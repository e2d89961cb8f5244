package provisioning

import (
	"time"

	"github.com/expcloud/azureform/internal/azure"
	"github.com/expcloud/azureform/internal/ledger"
	"github.com/expcloud/azureform/internal/template"
)

// StepKind discriminates the step variants a chain can schedule.
type StepKind string

// Step kinds.
const (
	KindProvisionStorage StepKind = "provision-storage"
	KindStorageCreated   StepKind = "storage-created"
	KindProvisionService StepKind = "provision-service"
	KindProvisionMachine StepKind = "provision-machine"
	KindDeploymentCreated StepKind = "deployment-created"
	KindMachineReady      StepKind = "machine-ready"
	KindConfigureNetwork StepKind = "configure-network"
	KindFinalizeMachine  StepKind = "finalize-machine"
	KindStartMachine     StepKind = "start-machine"
	KindFinalizeStart    StepKind = "finalize-start"
	KindStopMachine      StepKind = "stop-machine"
	KindFinalizeStop     StepKind = "finalize-stop"
	KindPollOperation    StepKind = "poll-operation"
	KindPollDeployment   StepKind = "poll-deployment"
	KindPollMachine      StepKind = "poll-machine"
	KindChainFailed      StepKind = "chain-failed"
)

// Step is one schedulable unit of chain work. Each variant is a plain
// struct carrying exactly the fields its handler reads.
type Step interface {
	Kind() StepKind
}

// Scope identifies the chain a step belongs to: the credential it acts
// under, the owning experiment, and the resolved template unit.
type Scope struct {
	CredentialID string        `json:"credential_id"`
	ExperimentID int64         `json:"experiment_id"`
	Unit         template.Unit `json:"unit"`
}

// MachineName is the experiment-scoped machine name of the scope's unit.
func (s Scope) MachineName() string {
	return s.Unit.MachineNameFor(s.ExperimentID)
}

// ProvisionStorageStep enters the chain at storage account provisioning.
type ProvisionStorageStep struct {
	Scope Scope
}

// Kind implements Step.
func (ProvisionStorageStep) Kind() StepKind { return KindProvisionStorage }

// StorageCreatedStep runs once the storage account create operation
// succeeds: it re-verifies remote existence, commits the mirror record, and
// continues to cloud service provisioning.
type StorageCreatedStep struct {
	Scope Scope
}

// Kind implements Step.
func (StorageCreatedStep) Kind() StepKind { return KindStorageCreated }

// ProvisionServiceStep provisions the cloud service.
type ProvisionServiceStep struct {
	Scope Scope
}

// Kind implements Step.
func (ProvisionServiceStep) Kind() StepKind { return KindProvisionService }

// ProvisionMachineStep provisions the deployment and virtual machine.
type ProvisionMachineStep struct {
	Scope Scope
}

// Kind implements Step.
func (ProvisionMachineStep) Kind() StepKind { return KindProvisionMachine }

// DeploymentCreatedStep runs once a freshly created deployment reaches the
// running state: it commits the deployment record and waits for the machine.
type DeploymentCreatedStep struct {
	Scope Scope
}

// Kind implements Step.
func (DeploymentCreatedStep) Kind() StepKind { return KindDeploymentCreated }

// MachineReadyStep runs once the machine instance reaches the ready state
// after creation. Machines from pre-built images get their network config
// applied here first; everything else finalizes directly.
type MachineReadyStep struct {
	Scope             Scope
	Deployment        string
	NetworkConfigured bool
}

// Kind implements Step.
func (MachineReadyStep) Kind() StepKind { return KindMachineReady }

// ConfigureNetworkStep applies the unit's endpoint mapping to a machine
// created from a pre-built image, where network config cannot be supplied at
// create time.
type ConfigureNetworkStep struct {
	Scope      Scope
	Deployment string
}

// Kind implements Step.
func (ConfigureNetworkStep) Kind() StepKind { return KindConfigureNetwork }

// FinalizeMachineStep reads back the ready machine's addresses and ports and
// writes the machine, endpoint, and environment records.
type FinalizeMachineStep struct {
	Scope      Scope
	Deployment string
}

// Kind implements Step.
func (FinalizeMachineStep) Kind() StepKind { return KindFinalizeMachine }

// StartMachineStep transitions the machine towards the ready state.
type StartMachineStep struct {
	Scope Scope
}

// Kind implements Step.
func (StartMachineStep) Kind() StepKind { return KindStartMachine }

// FinalizeStartStep refreshes address bookkeeping once a started machine is
// ready.
type FinalizeStartStep struct {
	Scope      Scope
	Deployment string
}

// Kind implements Step.
func (FinalizeStartStep) Kind() StepKind { return KindFinalizeStart }

// StopMachineStep transitions the machine towards a stopped state. With
// Deallocate the target is the deallocated state, otherwise soft-stopped.
type StopMachineStep struct {
	Scope      Scope
	Deallocate bool
}

// Kind implements Step.
func (StopMachineStep) Kind() StepKind { return KindStopMachine }

// FinalizeStopStep records the stop outcome.
type FinalizeStopStep struct {
	Scope      Scope
	Deallocate bool
}

// Kind implements Step.
func (FinalizeStopStep) Kind() StepKind { return KindFinalizeStop }

// PollOperationStep checks a pending remote operation once and either
// re-schedules itself, dispatches OnSuccess, or dispatches OnFailure.
type PollOperationStep struct {
	Scope  Scope
	Handle azure.OperationHandle

	// Operation attributes failures in the provisioning log.
	Operation ledger.Operation

	Interval    time.Duration
	Attempt     int
	MaxAttempts int

	OnSuccess Step
	OnFailure FailureStep

	// PendingID is the ledger row tracking this poll for restart resume.
	PendingID int64
}

// Kind implements Step.
func (PollOperationStep) Kind() StepKind { return KindPollOperation }

// PollDeploymentStep waits for a deployment to reach the running state.
type PollDeploymentStep struct {
	Scope      Scope
	Deployment string

	Operation ledger.Operation

	Interval    time.Duration
	Attempt     int
	MaxAttempts int

	OnSuccess Step
	OnFailure FailureStep

	PendingID int64
}

// Kind implements Step.
func (PollDeploymentStep) Kind() StepKind { return KindPollDeployment }

// PollMachineStep waits for a machine instance to reach a target status.
type PollMachineStep struct {
	Scope      Scope
	Deployment string
	Target     azure.InstanceStatus

	Operation ledger.Operation

	Interval    time.Duration
	Attempt     int
	MaxAttempts int

	OnSuccess Step
	OnFailure FailureStep

	PendingID int64
}

// Kind implements Step.
func (PollMachineStep) Kind() StepKind { return KindPollMachine }

// FailureEntry is one FAIL log line a failed chain writes.
type FailureEntry struct {
	Operation ledger.Operation
	Message   string
	Subcode   int
}

// FailureStep terminates a chain: it writes one FAIL entry per listed
// operation and stops. Timeout marks poll-budget exhaustion; the poller
// appends the timeout marker to each message.
type FailureStep struct {
	Scope    Scope
	Failures []FailureEntry
	Timeout  bool
}

// Kind implements Step.
func (FailureStep) Kind() StepKind { return KindChainFailed }
