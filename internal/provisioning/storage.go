package provisioning

import (
	"context"
	"fmt"

	"github.com/expcloud/azureform/internal/azure"
	"github.com/expcloud/azureform/internal/ledger"
)

func failMsg(resource azure.ResourceType, name, detail string) string {
	return fmt.Sprintf("%s [%s] %s", resource, name, detail)
}

// provisionStorage is the chain entry: ensure the unit's storage account
// exists, then hand over to cloud service provisioning. An account that
// already exists is adopted; a fresh one is created asynchronously and the
// chain continues from the poll loop.
func (o *Orchestrator) provisionStorage(ctx context.Context, step ProvisionStorageStep) error {
	scope := step.Scope
	spec := scope.Unit.StorageAccountSpec()
	op := ledger.OpCreateStorageAccount

	o.logStart(ctx, scope, op, failMsg(azure.ResourceStorageAccount, spec.Name, "start"))

	exists, err := o.adapter.StorageAccountExists(ctx, scope.CredentialID, spec.Name)
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceStorageAccount, spec.Name, err.Error()))
		return err
	}

	if exists {
		_, known, err := o.store.GetStorageAccount(ctx, spec.Name)
		if err != nil {
			return err
		}
		if known {
			o.logEnd(ctx, scope, op, ledger.SubcodeReusedHere,
				failMsg(azure.ResourceStorageAccount, spec.Name, "exist"))
		} else {
			if _, err := o.store.UpsertStorageAccount(ctx, ledger.StorageAccount{
				CredentialID: scope.CredentialID,
				Name:         spec.Name,
				Description:  spec.Description,
				Label:        spec.Label,
				Location:     spec.Location,
			}); err != nil {
				return err
			}
			o.logEnd(ctx, scope, op, ledger.SubcodeReusedManaged,
				failMsg(azure.ResourceStorageAccount, spec.Name, "exist but was not managed before"))
		}
		o.scopeObserver(scope).Event(Event{
			Type:     EventResourceReused,
			Step:     step.Kind(),
			Resource: spec.Name,
		})
		o.scheduler.Schedule(ProvisionServiceStep{Scope: scope}, 0)
		return nil
	}

	available, err := o.adapter.StorageAccountNameAvailable(ctx, scope.CredentialID, spec.Name)
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceStorageAccount, spec.Name, err.Error()))
		return err
	}
	if !available {
		o.logFail(ctx, scope, op, ledger.SubcodeNameUnavailable,
			failMsg(azure.ResourceStorageAccount, spec.Name, "name not available"))
		return fmt.Errorf("%w: storage account %q", ErrNameUnavailable, spec.Name)
	}

	free, err := o.quota.AvailableStorageAccounts(ctx, scope.CredentialID)
	if err != nil || free < 1 {
		o.logFail(ctx, scope, op, ledger.SubcodeQuotaExceeded,
			failMsg(azure.ResourceStorageAccount, spec.Name, "subscription not enough"))
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: storage accounts", ErrQuotaExceeded)
	}

	// A stale mirror record means the remote account vanished under us;
	// drop it before re-creating.
	if err := o.store.DeleteStorageAccount(ctx, spec.Name); err != nil {
		return err
	}

	handle, err := o.adapter.CreateStorageAccount(ctx, scope.CredentialID, spec)
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceStorageAccount, spec.Name, err.Error()))
		return err
	}
	remoteMutations.WithLabelValues(string(op)).Inc()
	o.scopeObserver(scope).Event(Event{
		Type:     EventResourceCreating,
		Step:     step.Kind(),
		Resource: spec.Name,
	})

	o.dispatch(ctx, o.storageOperationPoll(scope, handle, 0, 0))
	return nil
}

// storageOperationPoll builds the poll loop waiting for a storage account
// create to finish.
func (o *Orchestrator) storageOperationPoll(scope Scope, handle azure.OperationHandle, attempt int, pendingID int64) PollOperationStep {
	name := scope.Unit.StorageAccount.Name
	return PollOperationStep{
		Scope:       scope,
		Handle:      handle,
		Operation:   ledger.OpCreateStorageAccount,
		Interval:    o.opts.Timeouts.OperationInterval,
		Attempt:     attempt,
		MaxAttempts: o.opts.Timeouts.OperationAttempts,
		OnSuccess:   StorageCreatedStep{Scope: scope},
		OnFailure: FailureStep{Scope: scope, Failures: []FailureEntry{{
			Operation: ledger.OpCreateStorageAccount,
			Message:   failMsg(azure.ResourceStorageAccount, name, "wait for create failed"),
			Subcode:   ledger.SubcodeAsyncFailed,
		}}},
		PendingID: pendingID,
	}
}

// storageCreated runs after the create operation reports success: it
// re-verifies the account actually exists, ensures the unit's blob
// container, commits the mirror record, and continues to the cloud service.
func (o *Orchestrator) storageCreated(ctx context.Context, step StorageCreatedStep) error {
	scope := step.Scope
	spec := scope.Unit.StorageAccountSpec()
	op := ledger.OpCreateStorageAccount

	exists, err := o.adapter.StorageAccountExists(ctx, scope.CredentialID, spec.Name)
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceStorageAccount, spec.Name, err.Error()))
		return err
	}
	if !exists {
		o.logFail(ctx, scope, op, ledger.SubcodeCreatedAbsent,
			failMsg(azure.ResourceStorageAccount, spec.Name, "created but not exist"))
		return fmt.Errorf("storage account %q created but not found", spec.Name)
	}

	if container := scope.Unit.StorageAccount.Container; container != "" {
		if err := o.adapter.EnsureContainer(ctx, scope.CredentialID, spec.Name, container); err != nil {
			o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceStorageAccount, spec.Name, err.Error()))
			return err
		}
	}

	if _, err := o.store.UpsertStorageAccount(ctx, ledger.StorageAccount{
		CredentialID: scope.CredentialID,
		Name:         spec.Name,
		Description:  spec.Description,
		Label:        spec.Label,
		Location:     spec.Location,
	}); err != nil {
		return err
	}
	o.logEnd(ctx, scope, op, ledger.SubcodeCreated, failMsg(azure.ResourceStorageAccount, spec.Name, "created"))
	o.scopeObserver(scope).Event(Event{
		Type:     EventResourceCreated,
		Step:     step.Kind(),
		Resource: spec.Name,
	})

	o.scheduler.Schedule(ProvisionServiceStep{Scope: scope}, 0)
	return nil
}
