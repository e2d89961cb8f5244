package azure

import (
	"context"

	"github.com/google/uuid"
)

// MockClient is a mock implementation of Adapter. Every method delegates to
// its Func field when set; otherwise it returns a happy-path default: nothing
// exists yet, every name is available, mutations hand back fresh handles, and
// every status check reports success.
type MockClient struct {
	StorageAccountExistsFunc        func(ctx context.Context, credentialID, name string) (bool, error)
	StorageAccountNameAvailableFunc func(ctx context.Context, credentialID, name string) (bool, error)
	CreateStorageAccountFunc        func(ctx context.Context, credentialID string, spec StorageAccountSpec) (OperationHandle, error)

	EnsureContainerFunc func(ctx context.Context, credentialID, account, container string) error

	ServiceExistsFunc        func(ctx context.Context, credentialID, name string) (bool, error)
	ServiceNameAvailableFunc func(ctx context.Context, credentialID, name string) (bool, error)
	CreateServiceFunc        func(ctx context.Context, credentialID string, spec ServiceSpec) error
	AssignedPublicPortsFunc  func(ctx context.Context, credentialID, service string) ([]int, error)

	DeploymentExistsFunc func(ctx context.Context, credentialID, service, slot string) (bool, error)
	DeploymentNameFunc   func(ctx context.Context, credentialID, service, slot string) (string, error)
	DeploymentStatusFunc func(ctx context.Context, credentialID, service, deployment string) (DeploymentStatus, error)
	DeploymentDNSFunc    func(ctx context.Context, credentialID, service, slot string) (string, error)

	MachineExistsFunc           func(ctx context.Context, credentialID, service, deployment, name string) (bool, error)
	CreateMachineDeploymentFunc func(ctx context.Context, credentialID string, spec MachineSpec) (OperationHandle, error)
	AddMachineFunc              func(ctx context.Context, credentialID string, spec MachineSpec) (OperationHandle, error)
	InstanceStatusFunc          func(ctx context.Context, credentialID, service, deployment, name string) (InstanceStatus, error)
	StartMachineFunc            func(ctx context.Context, credentialID, service, deployment, name string) (OperationHandle, error)
	StopMachineFunc             func(ctx context.Context, credentialID, service, deployment, name string, deallocate bool) (OperationHandle, error)
	PublicAddressFunc           func(ctx context.Context, credentialID, service, deployment, name string) (string, error)
	PrivateAddressFunc          func(ctx context.Context, credentialID, service, deployment, name string) (string, error)
	PublicPortFunc              func(ctx context.Context, credentialID, service, deployment, name, endpointName string) (int, error)
	NetworkConfigFunc           func(ctx context.Context, credentialID, service, deployment, name string) (*NetworkConfig, error)
	UpdateNetworkConfigFunc     func(ctx context.Context, credentialID, service, deployment, name string, cfg NetworkConfig) (OperationHandle, error)

	OperationStatusFunc func(ctx context.Context, handle OperationHandle) (OperationResult, error)
	SubscriptionFunc    func(ctx context.Context, credentialID string) (Subscription, error)
	PingFunc            func(ctx context.Context, credentialID string) error
}

// Ensure interface compliance
var _ Adapter = (*MockClient)(nil)

func mockHandle(credentialID string, kind OperationKind) OperationHandle {
	return OperationHandle{
		ID:           uuid.NewString(),
		CredentialID: credentialID,
		Kind:         kind,
	}
}

// StorageAccountExists mocks the storage account existence check.
func (m *MockClient) StorageAccountExists(ctx context.Context, credentialID, name string) (bool, error) {
	if m.StorageAccountExistsFunc != nil {
		return m.StorageAccountExistsFunc(ctx, credentialID, name)
	}
	return false, nil
}

// StorageAccountNameAvailable mocks the name availability check.
func (m *MockClient) StorageAccountNameAvailable(ctx context.Context, credentialID, name string) (bool, error) {
	if m.StorageAccountNameAvailableFunc != nil {
		return m.StorageAccountNameAvailableFunc(ctx, credentialID, name)
	}
	return true, nil
}

// CreateStorageAccount mocks the asynchronous account create.
func (m *MockClient) CreateStorageAccount(ctx context.Context, credentialID string, spec StorageAccountSpec) (OperationHandle, error) {
	if m.CreateStorageAccountFunc != nil {
		return m.CreateStorageAccountFunc(ctx, credentialID, spec)
	}
	h := mockHandle(credentialID, OpCreateStorageAccount)
	h.Account = spec.Name
	return h, nil
}

// EnsureContainer mocks blob container creation.
func (m *MockClient) EnsureContainer(ctx context.Context, credentialID, account, container string) error {
	if m.EnsureContainerFunc != nil {
		return m.EnsureContainerFunc(ctx, credentialID, account, container)
	}
	return nil
}

// ServiceExists mocks the cloud service existence check.
func (m *MockClient) ServiceExists(ctx context.Context, credentialID, name string) (bool, error) {
	if m.ServiceExistsFunc != nil {
		return m.ServiceExistsFunc(ctx, credentialID, name)
	}
	return false, nil
}

// ServiceNameAvailable mocks the name availability check.
func (m *MockClient) ServiceNameAvailable(ctx context.Context, credentialID, name string) (bool, error) {
	if m.ServiceNameAvailableFunc != nil {
		return m.ServiceNameAvailableFunc(ctx, credentialID, name)
	}
	return true, nil
}

// CreateService mocks the synchronous cloud service create.
func (m *MockClient) CreateService(ctx context.Context, credentialID string, spec ServiceSpec) error {
	if m.CreateServiceFunc != nil {
		return m.CreateServiceFunc(ctx, credentialID, spec)
	}
	return nil
}

// AssignedPublicPorts mocks the public port inventory.
func (m *MockClient) AssignedPublicPorts(ctx context.Context, credentialID, service string) ([]int, error) {
	if m.AssignedPublicPortsFunc != nil {
		return m.AssignedPublicPortsFunc(ctx, credentialID, service)
	}
	return nil, nil
}

// DeploymentExists mocks the deployment existence check.
func (m *MockClient) DeploymentExists(ctx context.Context, credentialID, service, slot string) (bool, error) {
	if m.DeploymentExistsFunc != nil {
		return m.DeploymentExistsFunc(ctx, credentialID, service, slot)
	}
	return false, nil
}

// DeploymentName mocks the slot-to-name resolution.
func (m *MockClient) DeploymentName(ctx context.Context, credentialID, service, slot string) (string, error) {
	if m.DeploymentNameFunc != nil {
		return m.DeploymentNameFunc(ctx, credentialID, service, slot)
	}
	return "mock-deployment", nil
}

// DeploymentStatus mocks the deployment status lookup.
func (m *MockClient) DeploymentStatus(ctx context.Context, credentialID, service, deployment string) (DeploymentStatus, error) {
	if m.DeploymentStatusFunc != nil {
		return m.DeploymentStatusFunc(ctx, credentialID, service, deployment)
	}
	return DeploymentRunning, nil
}

// DeploymentDNS mocks the deployment DNS lookup.
func (m *MockClient) DeploymentDNS(ctx context.Context, credentialID, service, slot string) (string, error) {
	if m.DeploymentDNSFunc != nil {
		return m.DeploymentDNSFunc(ctx, credentialID, service, slot)
	}
	return service + ".cloudapp.net", nil
}

// MachineExists mocks the machine existence check.
func (m *MockClient) MachineExists(ctx context.Context, credentialID, service, deployment, name string) (bool, error) {
	if m.MachineExistsFunc != nil {
		return m.MachineExistsFunc(ctx, credentialID, service, deployment, name)
	}
	return false, nil
}

// CreateMachineDeployment mocks the combined deployment+machine create.
func (m *MockClient) CreateMachineDeployment(ctx context.Context, credentialID string, spec MachineSpec) (OperationHandle, error) {
	if m.CreateMachineDeploymentFunc != nil {
		return m.CreateMachineDeploymentFunc(ctx, credentialID, spec)
	}
	h := mockHandle(credentialID, OpCreateDeployment)
	h.Service = spec.Service
	h.Deployment = spec.DeploymentName
	h.Machine = spec.Name
	return h, nil
}

// AddMachine mocks adding a machine to an existing deployment.
func (m *MockClient) AddMachine(ctx context.Context, credentialID string, spec MachineSpec) (OperationHandle, error) {
	if m.AddMachineFunc != nil {
		return m.AddMachineFunc(ctx, credentialID, spec)
	}
	h := mockHandle(credentialID, OpAddMachine)
	h.Service = spec.Service
	h.Deployment = spec.DeploymentName
	h.Machine = spec.Name
	return h, nil
}

// InstanceStatus mocks the instance status lookup.
func (m *MockClient) InstanceStatus(ctx context.Context, credentialID, service, deployment, name string) (InstanceStatus, error) {
	if m.InstanceStatusFunc != nil {
		return m.InstanceStatusFunc(ctx, credentialID, service, deployment, name)
	}
	return InstanceReadyRole, nil
}

// StartMachine mocks the asynchronous machine start.
func (m *MockClient) StartMachine(ctx context.Context, credentialID, service, deployment, name string) (OperationHandle, error) {
	if m.StartMachineFunc != nil {
		return m.StartMachineFunc(ctx, credentialID, service, deployment, name)
	}
	h := mockHandle(credentialID, OpStartMachine)
	h.Service = service
	h.Deployment = deployment
	h.Machine = name
	return h, nil
}

// StopMachine mocks the asynchronous machine stop.
func (m *MockClient) StopMachine(ctx context.Context, credentialID, service, deployment, name string, deallocate bool) (OperationHandle, error) {
	if m.StopMachineFunc != nil {
		return m.StopMachineFunc(ctx, credentialID, service, deployment, name, deallocate)
	}
	kind := OpStopMachine
	if deallocate {
		kind = OpDeallocateMachine
	}
	h := mockHandle(credentialID, kind)
	h.Service = service
	h.Deployment = deployment
	h.Machine = name
	return h, nil
}

// PublicAddress mocks the public address lookup.
func (m *MockClient) PublicAddress(ctx context.Context, credentialID, service, deployment, name string) (string, error) {
	if m.PublicAddressFunc != nil {
		return m.PublicAddressFunc(ctx, credentialID, service, deployment, name)
	}
	return "203.0.113.10", nil
}

// PrivateAddress mocks the private address lookup.
func (m *MockClient) PrivateAddress(ctx context.Context, credentialID, service, deployment, name string) (string, error) {
	if m.PrivateAddressFunc != nil {
		return m.PrivateAddressFunc(ctx, credentialID, service, deployment, name)
	}
	return "10.0.0.4", nil
}

// PublicPort mocks the endpoint public port lookup.
func (m *MockClient) PublicPort(ctx context.Context, credentialID, service, deployment, name, endpointName string) (int, error) {
	if m.PublicPortFunc != nil {
		return m.PublicPortFunc(ctx, credentialID, service, deployment, name, endpointName)
	}
	return 10000, nil
}

// NetworkConfig mocks the network configuration lookup.
func (m *MockClient) NetworkConfig(ctx context.Context, credentialID, service, deployment, name string) (*NetworkConfig, error) {
	if m.NetworkConfigFunc != nil {
		return m.NetworkConfigFunc(ctx, credentialID, service, deployment, name)
	}
	return &NetworkConfig{}, nil
}

// UpdateNetworkConfig mocks the asynchronous network configuration update.
func (m *MockClient) UpdateNetworkConfig(ctx context.Context, credentialID, service, deployment, name string, cfg NetworkConfig) (OperationHandle, error) {
	if m.UpdateNetworkConfigFunc != nil {
		return m.UpdateNetworkConfigFunc(ctx, credentialID, service, deployment, name, cfg)
	}
	h := mockHandle(credentialID, OpUpdateNetworkConfig)
	h.Service = service
	h.Deployment = deployment
	h.Machine = name
	return h, nil
}

// OperationStatus mocks the pending operation lookup.
func (m *MockClient) OperationStatus(ctx context.Context, handle OperationHandle) (OperationResult, error) {
	if m.OperationStatusFunc != nil {
		return m.OperationStatusFunc(ctx, handle)
	}
	return OperationResult{Status: OperationSucceeded}, nil
}

// Subscription mocks the quota snapshot.
func (m *MockClient) Subscription(ctx context.Context, credentialID string) (Subscription, error) {
	if m.SubscriptionFunc != nil {
		return m.SubscriptionFunc(ctx, credentialID)
	}
	return Subscription{
		MaxStorageAccounts: 100,
		MaxServices:        100,
		MaxCores:           100,
	}, nil
}

// Ping mocks the reachability check.
func (m *MockClient) Ping(ctx context.Context, credentialID string) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx, credentialID)
	}
	return nil
}
