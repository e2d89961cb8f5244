package azure

import "context"

// StorageService manages storage accounts.
type StorageService interface {
	// StorageAccountExists reports whether the named account exists under
	// the credential's subscription.
	StorageAccountExists(ctx context.Context, credentialID, name string) (bool, error)

	// StorageAccountNameAvailable reports whether the name is free to take.
	// An existing account owned by another subscription makes it false.
	StorageAccountNameAvailable(ctx context.Context, credentialID, name string) (bool, error)

	// CreateStorageAccount issues the asynchronous create and returns the
	// pending operation handle.
	CreateStorageAccount(ctx context.Context, credentialID string, spec StorageAccountSpec) (OperationHandle, error)
}

// BlobService manages blob containers inside provisioned storage accounts.
type BlobService interface {
	// EnsureContainer creates the named container if it does not exist.
	EnsureContainer(ctx context.Context, credentialID, account, container string) error
}

// HostedService manages cloud services, the DNS and endpoint container for
// machines.
type HostedService interface {
	ServiceExists(ctx context.Context, credentialID, name string) (bool, error)
	ServiceNameAvailable(ctx context.Context, credentialID, name string) (bool, error)

	// CreateService creates the cloud service. Creation is synchronous:
	// there is no operation handle, callers re-check existence afterwards.
	CreateService(ctx context.Context, credentialID string, spec ServiceSpec) error

	// AssignedPublicPorts returns every public port already mapped by any
	// machine under the service.
	AssignedPublicPorts(ctx context.Context, credentialID, service string) ([]int, error)
}

// DeploymentService inspects deployments.
type DeploymentService interface {
	DeploymentExists(ctx context.Context, credentialID, service, slot string) (bool, error)

	// DeploymentName resolves the actual deployment name occupying a slot.
	DeploymentName(ctx context.Context, credentialID, service, slot string) (string, error)

	DeploymentStatus(ctx context.Context, credentialID, service, deployment string) (DeploymentStatus, error)

	// DeploymentDNS returns the public DNS name of the deployment in a slot.
	DeploymentDNS(ctx context.Context, credentialID, service, slot string) (string, error)
}

// MachineService manages virtual machines and their network configuration.
type MachineService interface {
	MachineExists(ctx context.Context, credentialID, service, deployment, name string) (bool, error)

	// CreateMachineDeployment creates a machine together with a fresh
	// deployment in one asynchronous call.
	CreateMachineDeployment(ctx context.Context, credentialID string, spec MachineSpec) (OperationHandle, error)

	// AddMachine adds a machine to an existing deployment.
	AddMachine(ctx context.Context, credentialID string, spec MachineSpec) (OperationHandle, error)

	InstanceStatus(ctx context.Context, credentialID, service, deployment, name string) (InstanceStatus, error)

	StartMachine(ctx context.Context, credentialID, service, deployment, name string) (OperationHandle, error)

	// StopMachine stops the machine. With deallocate the machine releases
	// its compute allocation (StoppedDeallocated); without it the machine
	// soft-stops (StoppedVM).
	StopMachine(ctx context.Context, credentialID, service, deployment, name string, deallocate bool) (OperationHandle, error)

	PublicAddress(ctx context.Context, credentialID, service, deployment, name string) (string, error)
	PrivateAddress(ctx context.Context, credentialID, service, deployment, name string) (string, error)

	// PublicPort returns the public port assigned to the named endpoint.
	PublicPort(ctx context.Context, credentialID, service, deployment, name, endpointName string) (int, error)

	NetworkConfig(ctx context.Context, credentialID, service, deployment, name string) (*NetworkConfig, error)

	UpdateNetworkConfig(ctx context.Context, credentialID, service, deployment, name string, cfg NetworkConfig) (OperationHandle, error)
}

// OperationService resolves pending operation handles.
type OperationService interface {
	OperationStatus(ctx context.Context, handle OperationHandle) (OperationResult, error)
}

// SubscriptionService reads quota snapshots.
type SubscriptionService interface {
	Subscription(ctx context.Context, credentialID string) (Subscription, error)
}

// Adapter is the full control-plane surface the orchestrator depends on.
type Adapter interface {
	StorageService
	BlobService
	HostedService
	DeploymentService
	MachineService
	OperationService
	SubscriptionService

	// Ping checks that the credential's session can reach the control plane.
	Ping(ctx context.Context, credentialID string) error
}
