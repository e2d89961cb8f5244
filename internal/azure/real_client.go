package azure

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/google/uuid"

	"github.com/expcloud/azureform/internal/retry"
)

// maxServicesPerSubscription caps cloud services per subscription. The
// control plane exposes no usage counter for it, so the limit is fixed and
// the current count is taken from a live listing.
const maxServicesPerSubscription = 980

// session bundles the authenticated SDK clients of one credential.
type session struct {
	cred  Credential
	token azcore.TokenCredential

	accounts      *armstorage.AccountsClient
	storageUsages *armstorage.UsagesClient
	groups        *armresources.ResourceGroupsClient
	deployments   *armresources.DeploymentsClient
	vms           *armcompute.VirtualMachinesClient
	computeUsage  *armcompute.UsageClient
	lbs           *armnetwork.LoadBalancersClient
	publicIPs     *armnetwork.PublicIPAddressesClient
	vnets         *armnetwork.VirtualNetworksClient
	nics          *armnetwork.InterfacesClient
	mgmt          *armnetwork.ManagementClient
}

func openSession(cred Credential) (*session, error) {
	token, err := azidentity.NewClientSecretCredential(cred.TenantID, cred.ClientID, cred.ClientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token credential: %w", err)
	}

	s := &session{cred: cred, token: token}
	if s.accounts, err = armstorage.NewAccountsClient(cred.SubscriptionID, token, nil); err != nil {
		return nil, err
	}
	if s.storageUsages, err = armstorage.NewUsagesClient(cred.SubscriptionID, token, nil); err != nil {
		return nil, err
	}
	if s.groups, err = armresources.NewResourceGroupsClient(cred.SubscriptionID, token, nil); err != nil {
		return nil, err
	}
	if s.deployments, err = armresources.NewDeploymentsClient(cred.SubscriptionID, token, nil); err != nil {
		return nil, err
	}
	if s.vms, err = armcompute.NewVirtualMachinesClient(cred.SubscriptionID, token, nil); err != nil {
		return nil, err
	}
	if s.computeUsage, err = armcompute.NewUsageClient(cred.SubscriptionID, token, nil); err != nil {
		return nil, err
	}
	if s.lbs, err = armnetwork.NewLoadBalancersClient(cred.SubscriptionID, token, nil); err != nil {
		return nil, err
	}
	if s.publicIPs, err = armnetwork.NewPublicIPAddressesClient(cred.SubscriptionID, token, nil); err != nil {
		return nil, err
	}
	if s.vnets, err = armnetwork.NewVirtualNetworksClient(cred.SubscriptionID, token, nil); err != nil {
		return nil, err
	}
	if s.nics, err = armnetwork.NewInterfacesClient(cred.SubscriptionID, token, nil); err != nil {
		return nil, err
	}
	if s.mgmt, err = armnetwork.NewManagementClient(cred.SubscriptionID, token, nil); err != nil {
		return nil, err
	}
	return s, nil
}

// RealClient implements Adapter against the live control plane. Sessions
// are cached per credential id through a bounded SessionManager.
type RealClient struct {
	sessions *SessionManager
}

// Ensure interface compliance
var _ Adapter = (*RealClient)(nil)

// NewRealClient creates a RealClient over the given credential source,
// keeping at most sessionLimit authenticated sessions alive.
func NewRealClient(source CredentialSource, sessionLimit int) *RealClient {
	return &RealClient{
		sessions: NewSessionManager(source, openSession, sessionLimit),
	}
}

func (c *RealClient) session(credentialID string) (*session, error) {
	return c.sessions.Session(credentialID)
}

// retryRead retries an idempotent control-plane read through a short
// exponential backoff. Mutations never go through here.
func retryRead(ctx context.Context, fn func() error) error {
	return retry.WithExponentialBackoff(ctx, fn)
}

// Ping checks that the credential's session can reach the control plane.
func (c *RealClient) Ping(ctx context.Context, credentialID string) error {
	s, err := c.session(credentialID)
	if err != nil {
		return err
	}
	err = retryRead(ctx, func() error {
		pager := s.groups.NewListPager(nil)
		_, err := pager.NextPage(ctx)
		return err
	})
	if err != nil {
		return remoteErr("Ping", "", err)
	}
	return nil
}

// newHandle mints a handle for a freshly issued mutation.
func newHandle(credentialID string, kind OperationKind, resumeToken string) OperationHandle {
	return OperationHandle{
		ID:           uuid.NewString(),
		CredentialID: credentialID,
		Kind:         kind,
		ResumeToken:  resumeToken,
	}
}

// pollOnce advances the poller by a single probe and translates the outcome.
// Exactly one network round trip per call, so the scheduler owns the cadence.
func pollOnce[T any](ctx context.Context, p *runtime.Poller[T]) (OperationResult, error) {
	if !p.Done() {
		if _, err := p.Poll(ctx); err != nil {
			return OperationResult{}, err
		}
	}
	if !p.Done() {
		return OperationResult{Status: OperationInProgress}, nil
	}
	if _, err := p.Result(ctx); err != nil {
		result := OperationResult{Status: OperationFailed, Message: err.Error()}
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			result.Code = respErr.ErrorCode
		}
		return result, nil
	}
	return OperationResult{Status: OperationSucceeded}, nil
}

// OperationStatus re-queries the pending mutation behind handle. The poller
// is rebuilt from the resume token on every call, so the check works across
// process restarts.
func (c *RealClient) OperationStatus(ctx context.Context, handle OperationHandle) (OperationResult, error) {
	s, err := c.session(handle.CredentialID)
	if err != nil {
		return OperationResult{}, err
	}
	// A mutation that completed within its initial request never issued a
	// resume token; there is nothing left to wait for.
	if handle.ResumeToken == "" {
		return OperationResult{Status: OperationSucceeded}, nil
	}

	var result OperationResult
	switch handle.Kind {
	case OpCreateStorageAccount:
		poller, perr := s.accounts.BeginCreate(ctx, s.cred.ResourceGroup, handle.Account, armstorage.AccountCreateParameters{},
			&armstorage.AccountsClientBeginCreateOptions{ResumeToken: handle.ResumeToken})
		if perr != nil {
			err = perr
			break
		}
		result, err = pollOnce(ctx, poller)
	case OpCreateDeployment, OpAddMachine:
		poller, perr := s.vms.BeginCreateOrUpdate(ctx, handle.Service, handle.Machine, armcompute.VirtualMachine{},
			&armcompute.VirtualMachinesClientBeginCreateOrUpdateOptions{ResumeToken: handle.ResumeToken})
		if perr != nil {
			err = perr
			break
		}
		result, err = pollOnce(ctx, poller)
	case OpUpdateNetworkConfig:
		poller, perr := s.lbs.BeginCreateOrUpdate(ctx, handle.Service, lbName(handle.Service), armnetwork.LoadBalancer{},
			&armnetwork.LoadBalancersClientBeginCreateOrUpdateOptions{ResumeToken: handle.ResumeToken})
		if perr != nil {
			err = perr
			break
		}
		result, err = pollOnce(ctx, poller)
	case OpStartMachine:
		poller, perr := s.vms.BeginStart(ctx, handle.Service, handle.Machine,
			&armcompute.VirtualMachinesClientBeginStartOptions{ResumeToken: handle.ResumeToken})
		if perr != nil {
			err = perr
			break
		}
		result, err = pollOnce(ctx, poller)
	case OpStopMachine:
		poller, perr := s.vms.BeginPowerOff(ctx, handle.Service, handle.Machine,
			&armcompute.VirtualMachinesClientBeginPowerOffOptions{ResumeToken: handle.ResumeToken})
		if perr != nil {
			err = perr
			break
		}
		result, err = pollOnce(ctx, poller)
	case OpDeallocateMachine:
		poller, perr := s.vms.BeginDeallocate(ctx, handle.Service, handle.Machine,
			&armcompute.VirtualMachinesClientBeginDeallocateOptions{ResumeToken: handle.ResumeToken})
		if perr != nil {
			err = perr
			break
		}
		result, err = pollOnce(ctx, poller)
	default:
		return OperationResult{}, fmt.Errorf("unknown operation kind %q", handle.Kind)
	}
	if err != nil {
		return OperationResult{}, remoteErr("OperationStatus", handle.ID, err)
	}
	return result, nil
}

// Subscription reads the quota counters of the credential's subscription.
func (c *RealClient) Subscription(ctx context.Context, credentialID string) (Subscription, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return Subscription{}, err
	}

	var sub Subscription

	// Each scan rebuilds its pager inside the retry closure so a transient
	// failure mid-listing starts the scan over instead of resuming a
	// half-consumed pager.
	err = retryRead(ctx, func() error {
		sub.MaxStorageAccounts, sub.CurrentStorageAccounts = 0, 0
		pager := s.storageUsages.NewListByLocationPager(s.cred.Location, nil)
		for pager.More() {
			page, perr := pager.NextPage(ctx)
			if perr != nil {
				return perr
			}
			for _, usage := range page.Value {
				if usage.Name == nil || usage.Name.Value == nil || *usage.Name.Value != "StorageAccounts" {
					continue
				}
				if usage.Limit != nil {
					sub.MaxStorageAccounts = int(*usage.Limit)
				}
				if usage.CurrentValue != nil {
					sub.CurrentStorageAccounts = int(*usage.CurrentValue)
				}
			}
		}
		return nil
	})
	if err != nil {
		return Subscription{}, remoteErr("Subscription", "storage usage", err)
	}

	err = retryRead(ctx, func() error {
		sub.MaxCores, sub.CurrentCores = 0, 0
		pager := s.computeUsage.NewListPager(s.cred.Location, nil)
		for pager.More() {
			page, perr := pager.NextPage(ctx)
			if perr != nil {
				return perr
			}
			for _, usage := range page.Value {
				if usage.Name == nil || usage.Name.Value == nil || *usage.Name.Value != "cores" {
					continue
				}
				if usage.Limit != nil {
					sub.MaxCores = int(*usage.Limit)
				}
				if usage.CurrentValue != nil {
					sub.CurrentCores = int(*usage.CurrentValue)
				}
			}
		}
		return nil
	})
	if err != nil {
		return Subscription{}, remoteErr("Subscription", "compute usage", err)
	}

	sub.MaxServices = maxServicesPerSubscription
	err = retryRead(ctx, func() error {
		sub.CurrentServices = 0
		pager := s.groups.NewListPager(nil)
		for pager.More() {
			page, perr := pager.NextPage(ctx)
			if perr != nil {
				return perr
			}
			sub.CurrentServices += len(page.Value)
		}
		return nil
	})
	if err != nil {
		return Subscription{}, remoteErr("Subscription", "resource groups", err)
	}

	return sub, nil
}
