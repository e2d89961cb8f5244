package azure

// ResourceType names one kind of remote object in log messages.
type ResourceType string

// Resource types managed by the orchestrator.
const (
	ResourceStorageAccount ResourceType = "storage account"
	ResourceCloudService   ResourceType = "cloud service"
	ResourceDeployment     ResourceType = "deployment"
	ResourceMachine        ResourceType = "virtual machine"
)

// OperationStatus is the provider-reported state of a pending mutation.
type OperationStatus string

// Terminal and non-terminal operation statuses.
const (
	OperationInProgress OperationStatus = "InProgress"
	OperationSucceeded  OperationStatus = "Succeeded"
	OperationFailed     OperationStatus = "Failed"
)

// InstanceStatus is the observed state of a virtual machine instance.
type InstanceStatus string

// Instance statuses the orchestrator branches on. ReadyRole is the usable
// terminal state after creation or start. StoppedVM and StoppedDeallocated
// are the two distinct stop terminal states: a soft-stopped machine still
// holds its compute allocation, a deallocated one does not.
const (
	InstanceReadyRole          InstanceStatus = "ReadyRole"
	InstanceStoppedVM          InstanceStatus = "StoppedVM"
	InstanceStoppedDeallocated InstanceStatus = "StoppedDeallocated"
	InstanceProvisioning       InstanceStatus = "Provisioning"
	InstanceUnknown            InstanceStatus = "RoleStateUnknown"
)

// DeploymentStatus is the observed state of a deployment.
type DeploymentStatus string

// Deployment statuses.
const (
	DeploymentRunning   DeploymentStatus = "Running"
	DeploymentDeploying DeploymentStatus = "Deploying"
)

// OperationKind identifies which mutation produced an OperationHandle, so a
// session can rebuild the right poller from a resume token.
type OperationKind string

// Mutation kinds that yield operation handles.
const (
	OpCreateStorageAccount OperationKind = "create-storage-account"
	OpCreateDeployment     OperationKind = "create-deployment"
	OpAddMachine           OperationKind = "add-machine"
	OpUpdateNetworkConfig  OperationKind = "update-network-config"
	OpStartMachine         OperationKind = "start-machine"
	OpStopMachine          OperationKind = "stop-machine"
	OpDeallocateMachine    OperationKind = "deallocate-machine"
)

// OperationHandle is an opaque token for a pending asynchronous mutation.
// It carries everything needed to re-query the operation after a process
// restart: the owning credential, the mutation kind, the provider resume
// token, and the addressing of the target resource.
type OperationHandle struct {
	ID           string        `json:"id"`
	CredentialID string        `json:"credential_id"`
	Kind         OperationKind `json:"kind"`
	ResumeToken  string        `json:"resume_token,omitempty"`

	Account    string `json:"account,omitempty"`
	Service    string `json:"service,omitempty"`
	Deployment string `json:"deployment,omitempty"`
	Machine    string `json:"machine,omitempty"`
}

// OperationResult is one observation of a pending operation.
type OperationResult struct {
	Status  OperationStatus
	Code    string
	Message string
}

// Subscription is a point-in-time snapshot of the quota counters of one
// credential's subscription.
type Subscription struct {
	MaxStorageAccounts     int
	CurrentStorageAccounts int
	MaxServices            int
	CurrentServices        int
	MaxCores               int
	CurrentCores           int
}

// StorageAccountSpec is the desired state of one storage account.
type StorageAccountSpec struct {
	Name        string
	Description string
	Label       string
	Location    string
}

// ServiceSpec is the desired state of one cloud (hosted) service.
type ServiceSpec struct {
	Name     string
	Label    string
	Location string
}

// SystemConfig carries the OS-level provisioning settings of a machine
// created from a platform OS image. It is nil for pre-built VM images.
type SystemConfig struct {
	OSFamily     string // "Linux" or "Windows"
	Hostname     string
	Username     string
	Password     string
	SSHPublicKey string // optional; Linux only
}

// Endpoint maps one public port of the owning cloud service onto a private
// port of a machine.
type Endpoint struct {
	Name        string
	Protocol    string
	PublicPort  int
	PrivatePort int
}

// NetworkConfig is the full endpoint mapping of one machine.
type NetworkConfig struct {
	Endpoints []Endpoint
}

// MachineSpec is the desired state of one virtual machine, including the
// deployment it belongs to. Exactly one of VMImage and OSImage is set:
// VMImage names a pre-built machine image (network config applied as a
// follow-up update), OSImage names a platform image provisioned onto a
// fresh OS disk at MediaLink (network config supplied at create time).
type MachineSpec struct {
	Service        string
	DeploymentName string
	DeploymentSlot string

	Name  string
	Label string
	Size  string

	VMImage   string
	OSImage   string
	MediaLink string

	System  *SystemConfig
	Network *NetworkConfig
}
