package provisioning

import (
	"context"
	"fmt"

	"github.com/expcloud/azureform/internal/azure"
	"github.com/expcloud/azureform/internal/ledger"
)

// provisionService ensures the unit's cloud service exists. Creation is
// synchronous, so the handler verifies the service is visible afterwards and
// continues straight to machine provisioning. The machine step is scheduled
// from both the create and the reuse branch.
func (o *Orchestrator) provisionService(ctx context.Context, step ProvisionServiceStep) error {
	scope := step.Scope
	spec := scope.Unit.ServiceSpec()
	op := ledger.OpCreateCloudService

	o.logStart(ctx, scope, op, failMsg(azure.ResourceCloudService, spec.Name, "start"))

	exists, err := o.adapter.ServiceExists(ctx, scope.CredentialID, spec.Name)
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceCloudService, spec.Name, err.Error()))
		return err
	}

	if !exists {
		available, err := o.adapter.ServiceNameAvailable(ctx, scope.CredentialID, spec.Name)
		if err != nil {
			o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceCloudService, spec.Name, err.Error()))
			return err
		}
		if !available {
			o.logFail(ctx, scope, op, ledger.SubcodeNameUnavailable,
				failMsg(azure.ResourceCloudService, spec.Name, "name not available"))
			return fmt.Errorf("%w: cloud service %q", ErrNameUnavailable, spec.Name)
		}

		free, err := o.quota.AvailableServices(ctx, scope.CredentialID)
		if err != nil || free < 1 {
			o.logFail(ctx, scope, op, ledger.SubcodeQuotaExceeded,
				failMsg(azure.ResourceCloudService, spec.Name, "subscription not enough"))
			if err != nil {
				return err
			}
			return fmt.Errorf("%w: cloud services", ErrQuotaExceeded)
		}

		// Stale mirror record: the remote service is gone, so its
		// deployments and machines are too.
		if err := o.store.DeleteCloudService(ctx, spec.Name); err != nil {
			return err
		}

		if err := o.adapter.CreateService(ctx, scope.CredentialID, spec); err != nil {
			o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceCloudService, spec.Name, err.Error()))
			return err
		}
		remoteMutations.WithLabelValues(string(op)).Inc()

		created, err := o.adapter.ServiceExists(ctx, scope.CredentialID, spec.Name)
		if err != nil || !created {
			o.logFail(ctx, scope, op, ledger.SubcodeCreatedAbsent,
				failMsg(azure.ResourceCloudService, spec.Name, "created but not exist"))
			if err != nil {
				return err
			}
			return fmt.Errorf("cloud service %q created but not found", spec.Name)
		}

		if _, err := o.store.UpsertCloudService(ctx, ledger.CloudService{
			CredentialID: scope.CredentialID,
			Name:         spec.Name,
			Label:        spec.Label,
			Location:     spec.Location,
		}); err != nil {
			return err
		}
		o.logEnd(ctx, scope, op, ledger.SubcodeCreated, failMsg(azure.ResourceCloudService, spec.Name, "created"))
		o.scopeObserver(scope).Event(Event{
			Type:     EventResourceCreated,
			Step:     step.Kind(),
			Resource: spec.Name,
		})
	} else {
		_, known, err := o.store.GetCloudService(ctx, spec.Name)
		if err != nil {
			return err
		}
		if known {
			o.logEnd(ctx, scope, op, ledger.SubcodeReusedHere,
				failMsg(azure.ResourceCloudService, spec.Name, "exist"))
		} else {
			if _, err := o.store.UpsertCloudService(ctx, ledger.CloudService{
				CredentialID: scope.CredentialID,
				Name:         spec.Name,
				Label:        spec.Label,
				Location:     spec.Location,
			}); err != nil {
				return err
			}
			o.logEnd(ctx, scope, op, ledger.SubcodeReusedManaged,
				failMsg(azure.ResourceCloudService, spec.Name, "exist but was not managed before"))
		}
		o.scopeObserver(scope).Event(Event{
			Type:     EventResourceReused,
			Step:     step.Kind(),
			Resource: spec.Name,
		})
	}

	o.scheduler.Schedule(ProvisionMachineStep{Scope: scope}, 0)
	return nil
}
