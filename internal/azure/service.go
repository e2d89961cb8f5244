package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
)

// Resource naming inside a cloud service's group. Every service owns one
// virtual network, one public IP carrying the service DNS name, and one
// load balancer whose inbound NAT rules are the machines' endpoints.
func lbName(service string) string   { return service + "-lb" }
func ipName(service string) string   { return service + "-ip" }
func vnetName(service string) string { return service + "-vnet" }

const (
	vnetAddressSpace  = "10.0.0.0/16"
	subnetName        = "default"
	subnetAddressCIDR = "10.0.0.0/24"
	frontendConfig    = "frontend"
)

func (s *session) subnetID(service string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/virtualNetworks/%s/subnets/%s",
		s.cred.SubscriptionID, service, vnetName(service), subnetName)
}

func (s *session) frontendID(service string) string {
	return fmt.Sprintf("/subscriptions/%s/resourceGroups/%s/providers/Microsoft.Network/loadBalancers/%s/frontendIPConfigurations/%s",
		s.cred.SubscriptionID, service, lbName(service), frontendConfig)
}

// ServiceExists reports whether the cloud service exists under the
// credential's subscription.
func (c *RealClient) ServiceExists(ctx context.Context, credentialID, name string) (bool, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return false, err
	}
	resp, err := s.groups.CheckExistence(ctx, name, nil)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, remoteErr("ServiceExists", name, err)
	}
	return resp.Success, nil
}

// ServiceNameAvailable reports whether the service's public DNS name is
// free to take anywhere.
func (c *RealClient) ServiceNameAvailable(ctx context.Context, credentialID, name string) (bool, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return false, err
	}
	resp, err := s.mgmt.CheckDNSNameAvailability(ctx, s.cred.Location, name, nil)
	if err != nil {
		return false, remoteErr("ServiceNameAvailable", name, err)
	}
	return resp.Available != nil && *resp.Available, nil
}

// CreateService creates the cloud service: its resource group, virtual
// network, public IP with the service DNS name, and an empty load balancer.
// Creation is synchronous; callers re-check existence afterwards.
func (c *RealClient) CreateService(ctx context.Context, credentialID string, spec ServiceSpec) error {
	s, err := c.session(credentialID)
	if err != nil {
		return err
	}

	location := spec.Location
	if location == "" {
		location = s.cred.Location
	}

	_, err = s.groups.CreateOrUpdate(ctx, spec.Name, armresources.ResourceGroup{
		Location: to.Ptr(location),
		Tags:     map[string]*string{"label": to.Ptr(spec.Label)},
	}, nil)
	if err != nil {
		return remoteErr("CreateService", spec.Name, err)
	}

	vnetPoller, err := s.vnets.BeginCreateOrUpdate(ctx, spec.Name, vnetName(spec.Name), armnetwork.VirtualNetwork{
		Location: to.Ptr(location),
		Properties: &armnetwork.VirtualNetworkPropertiesFormat{
			AddressSpace: &armnetwork.AddressSpace{
				AddressPrefixes: []*string{to.Ptr(vnetAddressSpace)},
			},
			Subnets: []*armnetwork.Subnet{{
				Name: to.Ptr(subnetName),
				Properties: &armnetwork.SubnetPropertiesFormat{
					AddressPrefix: to.Ptr(subnetAddressCIDR),
				},
			}},
		},
	}, nil)
	if err != nil {
		return remoteErr("CreateService", spec.Name, err)
	}
	if _, err := vnetPoller.PollUntilDone(ctx, nil); err != nil {
		return remoteErr("CreateService", spec.Name, err)
	}

	ipPoller, err := s.publicIPs.BeginCreateOrUpdate(ctx, spec.Name, ipName(spec.Name), armnetwork.PublicIPAddress{
		Location: to.Ptr(location),
		Properties: &armnetwork.PublicIPAddressPropertiesFormat{
			PublicIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodStatic),
			DNSSettings: &armnetwork.PublicIPAddressDNSSettings{
				DomainNameLabel: to.Ptr(spec.Name),
			},
		},
	}, nil)
	if err != nil {
		return remoteErr("CreateService", spec.Name, err)
	}
	ipResp, err := ipPoller.PollUntilDone(ctx, nil)
	if err != nil {
		return remoteErr("CreateService", spec.Name, err)
	}

	lbPoller, err := s.lbs.BeginCreateOrUpdate(ctx, spec.Name, lbName(spec.Name), armnetwork.LoadBalancer{
		Location: to.Ptr(location),
		Properties: &armnetwork.LoadBalancerPropertiesFormat{
			FrontendIPConfigurations: []*armnetwork.FrontendIPConfiguration{{
				Name: to.Ptr(frontendConfig),
				Properties: &armnetwork.FrontendIPConfigurationPropertiesFormat{
					PublicIPAddress: &armnetwork.PublicIPAddress{ID: ipResp.ID},
				},
			}},
		},
	}, nil)
	if err != nil {
		return remoteErr("CreateService", spec.Name, err)
	}
	if _, err := lbPoller.PollUntilDone(ctx, nil); err != nil {
		return remoteErr("CreateService", spec.Name, err)
	}
	return nil
}

// AssignedPublicPorts returns every public port already mapped by any
// machine under the service.
func (c *RealClient) AssignedPublicPorts(ctx context.Context, credentialID, service string) ([]int, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return nil, err
	}
	lb, err := s.lbs.Get(ctx, service, lbName(service), nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, remoteErr("AssignedPublicPorts", service, err)
	}
	var ports []int
	if lb.Properties != nil {
		for _, rule := range lb.Properties.InboundNatRules {
			if rule.Properties != nil && rule.Properties.FrontendPort != nil {
				ports = append(ports, int(*rule.Properties.FrontendPort))
			}
		}
	}
	return ports, nil
}

// deploymentID composes the provider-side deployment name for a slot.
func deploymentID(slot, name string) string {
	return slot + "-" + name
}

// findDeployment returns the name of the deployment occupying slot, or ""
// when the slot is empty.
func (c *RealClient) findDeployment(ctx context.Context, s *session, service, slot string) (string, error) {
	pager := s.deployments.NewListByResourceGroupPager(service, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if IsNotFound(err) {
				return "", nil
			}
			return "", err
		}
		for _, d := range page.Value {
			if d.Name != nil && strings.HasPrefix(*d.Name, slot+"-") {
				return *d.Name, nil
			}
		}
	}
	return "", nil
}

// DeploymentExists reports whether any deployment occupies the slot.
func (c *RealClient) DeploymentExists(ctx context.Context, credentialID, service, slot string) (bool, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return false, err
	}
	name, err := c.findDeployment(ctx, s, service, slot)
	if err != nil {
		return false, remoteErr("DeploymentExists", service, err)
	}
	return name != "", nil
}

// DeploymentName resolves the actual deployment name occupying a slot.
func (c *RealClient) DeploymentName(ctx context.Context, credentialID, service, slot string) (string, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return "", err
	}
	name, err := c.findDeployment(ctx, s, service, slot)
	if err != nil {
		return "", remoteErr("DeploymentName", service, err)
	}
	if name == "" {
		return "", fmt.Errorf("no deployment in slot %q of service %q", slot, service)
	}
	return name, nil
}

// DeploymentStatus reports whether the deployment has converged.
func (c *RealClient) DeploymentStatus(ctx context.Context, credentialID, service, deployment string) (DeploymentStatus, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return "", err
	}
	resp, err := s.deployments.Get(ctx, service, deployment, nil)
	if err != nil {
		return "", remoteErr("DeploymentStatus", deployment, err)
	}
	if resp.Properties != nil && resp.Properties.ProvisioningState != nil &&
		*resp.Properties.ProvisioningState == armresources.ProvisioningStateSucceeded {
		return DeploymentRunning, nil
	}
	return DeploymentDeploying, nil
}

// DeploymentDNS returns the public DNS name of the deployment in a slot.
func (c *RealClient) DeploymentDNS(ctx context.Context, credentialID, service, slot string) (string, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return "", err
	}
	resp, err := s.publicIPs.Get(ctx, service, ipName(service), nil)
	if err != nil {
		return "", remoteErr("DeploymentDNS", service, err)
	}
	if resp.Properties == nil || resp.Properties.DNSSettings == nil || resp.Properties.DNSSettings.Fqdn == nil {
		return "", fmt.Errorf("service %q has no DNS name", service)
	}
	return *resp.Properties.DNSSettings.Fqdn, nil
}
