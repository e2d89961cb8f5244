package azure

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// StorageAccountExists reports whether the named account exists under the
// credential's subscription.
func (c *RealClient) StorageAccountExists(ctx context.Context, credentialID, name string) (bool, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return false, err
	}
	_, err = s.accounts.GetProperties(ctx, s.cred.ResourceGroup, name, nil)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, remoteErr("StorageAccountExists", name, err)
	}
	return true, nil
}

// StorageAccountNameAvailable reports whether the account name is free to
// take anywhere, not just in this subscription.
func (c *RealClient) StorageAccountNameAvailable(ctx context.Context, credentialID, name string) (bool, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return false, err
	}
	resp, err := s.accounts.CheckNameAvailability(ctx, armstorage.AccountCheckNameAvailabilityParameters{
		Name: to.Ptr(name),
		Type: to.Ptr("Microsoft.Storage/storageAccounts"),
	}, nil)
	if err != nil {
		return false, remoteErr("StorageAccountNameAvailable", name, err)
	}
	return resp.NameAvailable != nil && *resp.NameAvailable, nil
}

// CreateStorageAccount issues the asynchronous account create and returns
// the pending operation handle.
func (c *RealClient) CreateStorageAccount(ctx context.Context, credentialID string, spec StorageAccountSpec) (OperationHandle, error) {
	s, err := c.session(credentialID)
	if err != nil {
		return OperationHandle{}, err
	}

	location := spec.Location
	if location == "" {
		location = s.cred.Location
	}
	tags := map[string]*string{"label": to.Ptr(spec.Label)}
	if spec.Description != "" {
		tags["description"] = to.Ptr(spec.Description)
	}

	poller, err := s.accounts.BeginCreate(ctx, s.cred.ResourceGroup, spec.Name, armstorage.AccountCreateParameters{
		Location: to.Ptr(location),
		Kind:     to.Ptr(armstorage.KindStorageV2),
		SKU:      &armstorage.SKU{Name: to.Ptr(armstorage.SKUNameStandardLRS)},
		Tags:     tags,
	}, nil)
	if err != nil {
		return OperationHandle{}, remoteErr("CreateStorageAccount", spec.Name, err)
	}

	handle := newHandle(credentialID, OpCreateStorageAccount, "")
	handle.Account = spec.Name
	if !poller.Done() {
		tok, terr := poller.ResumeToken()
		if terr != nil {
			return OperationHandle{}, remoteErr("CreateStorageAccount", spec.Name, terr)
		}
		handle.ResumeToken = tok
	}
	return handle, nil
}

// EnsureContainer creates the named blob container if it does not exist.
func (c *RealClient) EnsureContainer(ctx context.Context, credentialID, account, container string) error {
	s, err := c.session(credentialID)
	if err != nil {
		return err
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)
	client, err := azblob.NewClient(serviceURL, s.token, nil)
	if err != nil {
		return remoteErr("EnsureContainer", container, err)
	}
	if _, err := client.CreateContainer(ctx, container, nil); err != nil {
		if IsConflict(err) {
			return nil
		}
		return remoteErr("EnsureContainer", container, err)
	}
	return nil
}
