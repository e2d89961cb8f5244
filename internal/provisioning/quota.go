package provisioning

import (
	"context"
	"fmt"

	"github.com/expcloud/azureform/internal/azure"
)

// QuotaChecker answers how many more resources of a kind fit under a
// credential's subscription.
type QuotaChecker struct {
	adapter azure.SubscriptionService
}

// NewQuotaChecker builds a checker over the adapter.
func NewQuotaChecker(adapter azure.SubscriptionService) *QuotaChecker {
	return &QuotaChecker{adapter: adapter}
}

func (q *QuotaChecker) snapshot(ctx context.Context, credentialID string) (azure.Subscription, error) {
	sub, err := q.adapter.Subscription(ctx, credentialID)
	if err != nil {
		return azure.Subscription{}, fmt.Errorf("%w: %v", ErrQuotaUnknown, err)
	}
	return sub, nil
}

// AvailableStorageAccounts returns how many more storage accounts fit.
func (q *QuotaChecker) AvailableStorageAccounts(ctx context.Context, credentialID string) (int, error) {
	sub, err := q.snapshot(ctx, credentialID)
	if err != nil {
		return 0, err
	}
	return sub.MaxStorageAccounts - sub.CurrentStorageAccounts, nil
}

// AvailableServices returns how many more cloud services fit.
func (q *QuotaChecker) AvailableServices(ctx context.Context, credentialID string) (int, error) {
	sub, err := q.snapshot(ctx, credentialID)
	if err != nil {
		return 0, err
	}
	return sub.MaxServices - sub.CurrentServices, nil
}

// AvailableCores returns how many more CPU cores fit.
func (q *QuotaChecker) AvailableCores(ctx context.Context, credentialID string) (int, error) {
	sub, err := q.snapshot(ctx, credentialID)
	if err != nil {
		return 0, err
	}
	return sub.MaxCores - sub.CurrentCores, nil
}
