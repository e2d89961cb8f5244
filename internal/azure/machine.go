package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
)

func nicName(machine string) string { return machine + "-nic" }

func natRuleName(machine, endpoint string) string { return machine + "-" + endpoint }

func (s *session) natRuleID(service, rule string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/loadBalancers/%s/inboundNatRules/%s",
		s.cred.SubscriptionID, service, lbName(service), rule)
}

// MachineExists reports whether the named machine exists in the service.
func (c *RealClient) MachineExists(ctx context.Context, credentialID, service, deployment, name string) (bool, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return false, err
	}
	_, err = s.vms.Get(ctx, service, name, nil)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, remoteErr("MachineExists", name, err)
	}
	return true, nil
}

// CreateMachineDeployment creates a machine together with a fresh deployment
// in one asynchronous call. The deployment record is anchored first, then the
// machine create is issued and its handle returned.
func (c *RealClient) CreateMachineDeployment(ctx context.Context, credentialID string, spec MachineSpec) (OperationHandle, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return OperationHandle{}, err
	}

	deployment := deploymentID(spec.DeploymentSlot, spec.DeploymentName)
	anchorPoller, err := s.deployments.BeginCreateOrUpdate(ctx, spec.Service, deployment, armresources.Deployment{
		Properties: &armresources.DeploymentProperties{
			Mode: to.Ptr(armresources.DeploymentModeIncremental),
			Template: map[string]any{
				"$schema":        "https://schema.management.azure.com/schemas/2019-04-01/deploymentTemplate.json#",
				"contentVersion": "1.0.0.0",
				"resources":      []any{},
			},
		},
	}, nil)
	if err != nil {
		return OperationHandle{}, remoteErr("CreateMachineDeployment", deployment, err)
	}
	if _, err := anchorPoller.PollUntilDone(ctx, nil); err != nil {
		return OperationHandle{}, remoteErr("CreateMachineDeployment", deployment, err)
	}

	handle, err := c.createMachine(ctx, s, spec)
	if err != nil {
		return OperationHandle{}, err
	}
	handle.Kind = OpCreateDeployment
	handle.Deployment = deployment
	return handle, nil
}

// AddMachine adds a machine to an existing deployment.
func (c *RealClient) AddMachine(ctx context.Context, credentialID string, spec MachineSpec) (OperationHandle, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return OperationHandle{}, err
	}
	handle, err := c.createMachine(ctx, s, spec)
	if err != nil {
		return OperationHandle{}, err
	}
	handle.Deployment = spec.DeploymentName
	return handle, nil
}

// createMachine provisions the NIC and issues the asynchronous machine
// create. When the spec carries a network config, the endpoints are wired
// onto the load balancer first so the NIC can reference them at create time.
func (c *RealClient) createMachine(ctx context.Context, s *session, spec MachineSpec) (OperationHandle, error) {
	var natRuleIDs []string
	if spec.Network != nil {
		if err := c.applyEndpoints(ctx, s, spec.Service, spec.Name, *spec.Network, true); err != nil {
			return OperationHandle{}, err
		}
		for _, ep := range spec.Network.Endpoints {
			natRuleIDs = append(natRuleIDs, s.natRuleID(spec.Service, natRuleName(spec.Name, ep.Name)))
		}
	}

	nicID, err := c.ensureNIC(ctx, s, spec.Service, spec.Name, natRuleIDs)
	if err != nil {
		return OperationHandle{}, err
	}

	vm, err := vmParameters(s.cred, spec, nicID)
	if err != nil {
		return OperationHandle{}, err
	}
	poller, err := s.vms.BeginCreateOrUpdate(ctx, spec.Service, spec.Name, vm, nil)
	if err != nil {
		return OperationHandle{}, remoteErr("CreateMachine", spec.Name, err)
	}

	handle := newHandle(s.cred.ID, OpAddMachine, "")
	handle.Service = spec.Service
	handle.Machine = spec.Name
	if !poller.Done() {
		tok, terr := poller.ResumeToken()
		if terr != nil {
			return OperationHandle{}, remoteErr("CreateMachine", spec.Name, terr)
		}
		handle.ResumeToken = tok
	}
	return handle, nil
}

func (c *RealClient) ensureNIC(ctx context.Context, s *session, service, machine string, natRuleIDs []string) (string, error) {
	var rules []*armnetwork.InboundNatRule
	for _, id := range natRuleIDs {
		rules = append(rules, &armnetwork.InboundNatRule{ID: to.Ptr(id)})
	}
	poller, err := s.nics.BeginCreateOrUpdate(ctx, service, nicName(machine), armnetwork.Interface{
		Location: to.Ptr(s.cred.Location),
		Properties: &armnetwork.InterfacePropertiesFormat{
			IPConfigurations: []*armnetwork.InterfaceIPConfiguration{{
				Name: to.Ptr("primary"),
				Properties: &armnetwork.InterfaceIPConfigurationPropertiesFormat{
					Subnet:                      &armnetwork.Subnet{ID: to.Ptr(s.subnetID(service))},
					LoadBalancerInboundNatRules: rules,
				},
			}},
		},
	}, nil)
	if err != nil {
		return "", remoteErr("CreateMachine", machine, err)
	}
	resp, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return "", remoteErr("CreateMachine", machine, err)
	}
	if resp.ID == nil {
		return "", fmt.Errorf("network interface %q has no id", nicName(machine))
	}
	return *resp.ID, nil
}

// vmParameters translates a MachineSpec into provider VM parameters.
func vmParameters(cred Credential, spec MachineSpec, nicID string) (armcompute.VirtualMachine, error) {
	vm := armcompute.VirtualMachine{
		Location: to.Ptr(cred.Location),
		Tags: map[string]*string{
			"label":      to.Ptr(spec.Label),
			"deployment": to.Ptr(spec.DeploymentName),
		},
		Properties: &armcompute.VirtualMachineProperties{
			HardwareProfile: &armcompute.HardwareProfile{
				VMSize: to.Ptr(armcompute.VirtualMachineSizeTypes(spec.Size)),
			},
			NetworkProfile: &armcompute.NetworkProfile{
				NetworkInterfaces: []*armcompute.NetworkInterfaceReference{{
					ID: to.Ptr(nicID),
				}},
			},
			StorageProfile: &armcompute.StorageProfile{
				OSDisk: &armcompute.OSDisk{
					Name:         to.Ptr(spec.Name + "-osdisk"),
					CreateOption: to.Ptr(armcompute.DiskCreateOptionTypesFromImage),
				},
			},
		},
	}

	switch {
	case spec.VMImage != "":
		vm.Properties.StorageProfile.ImageReference = &armcompute.ImageReference{ID: to.Ptr(spec.VMImage)}
	case spec.OSImage != "":
		parts := strings.Split(spec.OSImage, ":")
		if len(parts) != 4 {
			return armcompute.VirtualMachine{}, fmt.Errorf("os image %q is not publisher:offer:sku:version", spec.OSImage)
		}
		vm.Properties.StorageProfile.ImageReference = &armcompute.ImageReference{
			Publisher: to.Ptr(parts[0]),
			Offer:     to.Ptr(parts[1]),
			SKU:       to.Ptr(parts[2]),
			Version:   to.Ptr(parts[3]),
		}
	default:
		return armcompute.VirtualMachine{}, fmt.Errorf("machine %q names neither a vm image nor an os image", spec.Name)
	}

	if spec.MediaLink != "" {
		vm.Properties.StorageProfile.OSDisk.Vhd = &armcompute.VirtualHardDisk{URI: to.Ptr(spec.MediaLink)}
	} else {
		vm.Properties.StorageProfile.OSDisk.ManagedDisk = &armcompute.ManagedDiskParameters{
			StorageAccountType: to.Ptr(armcompute.StorageAccountTypesStandardLRS),
		}
	}

	if sys := spec.System; sys != nil {
		osProfile := &armcompute.OSProfile{
			ComputerName:  to.Ptr(sys.Hostname),
			AdminUsername: to.Ptr(sys.Username),
			AdminPassword: to.Ptr(sys.Password),
		}
		if strings.EqualFold(sys.OSFamily, "Windows") {
			osProfile.WindowsConfiguration = &armcompute.WindowsConfiguration{}
		} else {
			linux := &armcompute.LinuxConfiguration{}
			if sys.SSHPublicKey != "" {
				linux.SSH = &armcompute.SSHConfiguration{
					PublicKeys: []*armcompute.SSHPublicKey{{
						Path:    to.Ptr(fmt.Sprintf("/home/%s/.ssh/authorized_keys", sys.Username)),
						KeyData: to.Ptr(sys.SSHPublicKey),
					}},
				}
			}
			osProfile.LinuxConfiguration = linux
		}
		vm.Properties.OSProfile = osProfile
	}

	return vm, nil
}

// InstanceStatus reports the observed power state of the machine.
func (c *RealClient) InstanceStatus(ctx context.Context, credentialID, service, deployment, name string) (InstanceStatus, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return "", err
	}
	view, err := s.vms.InstanceView(ctx, service, name, nil)
	if err != nil {
		return "", remoteErr("InstanceStatus", name, err)
	}

	status := InstanceUnknown
	for _, st := range view.Statuses {
		if st.Code == nil {
			continue
		}
		switch {
		case *st.Code == "PowerState/running":
			status = InstanceReadyRole
		case *st.Code == "PowerState/stopped":
			status = InstanceStoppedVM
		case *st.Code == "PowerState/deallocated":
			status = InstanceStoppedDeallocated
		case *st.Code == "PowerState/starting", *st.Code == "PowerState/stopping":
			status = InstanceProvisioning
		case strings.HasPrefix(*st.Code, "ProvisioningState/creating"),
			strings.HasPrefix(*st.Code, "ProvisioningState/updating"):
			if status == InstanceUnknown {
				status = InstanceProvisioning
			}
		}
	}
	return status, nil
}

// StartMachine issues the asynchronous machine start.
func (c *RealClient) StartMachine(ctx context.Context, credentialID, service, deployment, name string) (OperationHandle, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return OperationHandle{}, err
	}
	poller, err := s.vms.BeginStart(ctx, service, name, nil)
	if err != nil {
		return OperationHandle{}, remoteErr("StartMachine", name, err)
	}
	handle := newHandle(credentialID, OpStartMachine, "")
	handle.Service = service
	handle.Deployment = deployment
	handle.Machine = name
	if !poller.Done() {
		tok, terr := poller.ResumeToken()
		if terr != nil {
			return OperationHandle{}, remoteErr("StartMachine", name, terr)
		}
		handle.ResumeToken = tok
	}
	return handle, nil
}

// StopMachine issues the asynchronous machine stop. With deallocate the
// machine releases its compute allocation, otherwise it soft-stops and keeps
// it.
func (c *RealClient) StopMachine(ctx context.Context, credentialID, service, deployment, name string, deallocate bool) (OperationHandle, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return OperationHandle{}, err
	}

	// The two stop variants carry distinct kinds so OperationStatus can
	// rebuild the matching poller: a deallocate resume token is not
	// interchangeable with a power-off one.
	kind := OpStopMachine
	if deallocate {
		kind = OpDeallocateMachine
	}
	handle := newHandle(credentialID, kind, "")
	handle.Service = service
	handle.Deployment = deployment
	handle.Machine = name

	if deallocate {
		poller, perr := s.vms.BeginDeallocate(ctx, service, name, nil)
		if perr != nil {
			return OperationHandle{}, remoteErr("StopMachine", name, perr)
		}
		if !poller.Done() {
			tok, terr := poller.ResumeToken()
			if terr != nil {
				return OperationHandle{}, remoteErr("StopMachine", name, terr)
			}
			handle.ResumeToken = tok
		}
		return handle, nil
	}

	poller, err := s.vms.BeginPowerOff(ctx, service, name, nil)
	if err != nil {
		return OperationHandle{}, remoteErr("StopMachine", name, err)
	}
	if !poller.Done() {
		tok, terr := poller.ResumeToken()
		if terr != nil {
			return OperationHandle{}, remoteErr("StopMachine", name, terr)
		}
		handle.ResumeToken = tok
	}
	return handle, nil
}

// PublicAddress returns the public IP shared by the machines of the service.
func (c *RealClient) PublicAddress(ctx context.Context, credentialID, service, deployment, name string) (string, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return "", err
	}
	resp, err := s.publicIPs.Get(ctx, service, ipName(service), nil)
	if err != nil {
		return "", remoteErr("PublicAddress", name, err)
	}
	if resp.Properties == nil || resp.Properties.IPAddress == nil {
		return "", fmt.Errorf("service %q has no public address", service)
	}
	return *resp.Properties.IPAddress, nil
}

// PrivateAddress returns the machine's private IP.
func (c *RealClient) PrivateAddress(ctx context.Context, credentialID, service, deployment, name string) (string, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return "", err
	}
	resp, err := s.nics.Get(ctx, service, nicName(name), nil)
	if err != nil {
		return "", remoteErr("PrivateAddress", name, err)
	}
	if resp.Properties != nil {
		for _, ipcfg := range resp.Properties.IPConfigurations {
			if ipcfg.Properties != nil && ipcfg.Properties.PrivateIPAddress != nil {
				return *ipcfg.Properties.PrivateIPAddress, nil
			}
		}
	}
	return "", fmt.Errorf("machine %q has no private address", name)
}

// PublicPort returns the public port assigned to the named endpoint.
func (c *RealClient) PublicPort(ctx context.Context, credentialID, service, deployment, name, endpointName string) (int, error) {
	cfg, err := c.NetworkConfig(ctx, credentialID, service, deployment, name)
	if err != nil {
		return 0, err
	}
	for _, ep := range cfg.Endpoints {
		if ep.Name == endpointName {
			return ep.PublicPort, nil
		}
	}
	return 0, fmt.Errorf("machine %q has no endpoint %q", name, endpointName)
}

// NetworkConfig reads the machine's endpoint mapping off the load balancer.
func (c *RealClient) NetworkConfig(ctx context.Context, credentialID, service, deployment, name string) (*NetworkConfig, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return nil, err
	}
	lb, err := s.lbs.Get(ctx, service, lbName(service), nil)
	if err != nil {
		return nil, remoteErr("NetworkConfig", name, err)
	}

	cfg := &NetworkConfig{}
	if lb.Properties == nil {
		return cfg, nil
	}
	prefix := name + "-"
	for _, rule := range lb.Properties.InboundNatRules {
		if rule.Name == nil || !strings.HasPrefix(*rule.Name, prefix) || rule.Properties == nil {
			continue
		}
		ep := Endpoint{Name: strings.TrimPrefix(*rule.Name, prefix)}
		if rule.Properties.Protocol != nil {
			ep.Protocol = strings.ToLower(string(*rule.Properties.Protocol))
		}
		if rule.Properties.FrontendPort != nil {
			ep.PublicPort = int(*rule.Properties.FrontendPort)
		}
		if rule.Properties.BackendPort != nil {
			ep.PrivatePort = int(*rule.Properties.BackendPort)
		}
		cfg.Endpoints = append(cfg.Endpoints, ep)
	}
	return cfg, nil
}

// UpdateNetworkConfig replaces the machine's endpoint mapping and returns
// the pending operation handle.
func (c *RealClient) UpdateNetworkConfig(ctx context.Context, credentialID, service, deployment, name string, cfg NetworkConfig) (OperationHandle, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return OperationHandle{}, err
	}
	poller, err := c.beginApplyEndpoints(ctx, s, service, name, cfg)
	if err != nil {
		return OperationHandle{}, err
	}

	handle := newHandle(credentialID, OpUpdateNetworkConfig, "")
	handle.Service = service
	handle.Deployment = deployment
	handle.Machine = name
	if !poller.Done() {
		tok, terr := poller.ResumeToken()
		if terr != nil {
			return OperationHandle{}, remoteErr("UpdateNetworkConfig", name, terr)
		}
		handle.ResumeToken = tok
	}
	return handle, nil
}

// applyEndpoints rewires the machine's NAT rules and optionally waits for
// the load balancer update to converge.
func (c *RealClient) applyEndpoints(ctx context.Context, s *session, service, machine string, cfg NetworkConfig, wait bool) error {
	poller, err := c.beginApplyEndpoints(ctx, s, service, machine, cfg)
	if err != nil {
		return err
	}
	if wait {
		if _, err := poller.PollUntilDone(ctx, nil); err != nil {
			return remoteErr("UpdateNetworkConfig", machine, err)
		}
	}
	return nil
}

// beginApplyEndpoints issues the load balancer update that replaces every
// NAT rule of the machine with the given endpoints. Rules of other machines
// are preserved.
func (c *RealClient) beginApplyEndpoints(ctx context.Context, s *session, service, machine string, cfg NetworkConfig) (*runtime.Poller[armnetwork.LoadBalancersClientCreateOrUpdateResponse], error) {
	lb, err := s.lbs.Get(ctx, service, lbName(service), nil)
	if err != nil {
		return nil, remoteErr("UpdateNetworkConfig", machine, err)
	}
	if lb.Properties == nil {
		lb.Properties = &armnetwork.LoadBalancerPropertiesFormat{}
	}

	prefix := machine + "-"
	rules := lb.Properties.InboundNatRules[:0]
	for _, rule := range lb.Properties.InboundNatRules {
		if rule.Name != nil && strings.HasPrefix(*rule.Name, prefix) {
			continue
		}
		rules = append(rules, rule)
	}
	for _, ep := range cfg.Endpoints {
		protocol := armnetwork.TransportProtocolTCP
		if strings.EqualFold(ep.Protocol, "udp") {
			protocol = armnetwork.TransportProtocolUDP
		}
		rules = append(rules, &armnetwork.InboundNatRule{
			Name: to.Ptr(natRuleName(machine, ep.Name)),
			Properties: &armnetwork.InboundNatRulePropertiesFormat{
				Protocol:     to.Ptr(protocol),
				FrontendPort: to.Ptr(int32(ep.PublicPort)),
				BackendPort:  to.Ptr(int32(ep.PrivatePort)),
				FrontendIPConfiguration: &armnetwork.SubResource{
					ID: to.Ptr(s.frontendID(service)),
				},
			},
		})
	}
	lb.Properties.InboundNatRules = rules

	poller, err := s.lbs.BeginCreateOrUpdate(ctx, service, lbName(service), lb.LoadBalancer, nil)
	if err != nil {
		return nil, remoteErr("UpdateNetworkConfig", machine, err)
	}
	return poller, nil
}
