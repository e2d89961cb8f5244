package azure

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *RealClient {
	t.Helper()
	source := StaticCredentialSource{
		"cred-1": {
			ID:             "cred-1",
			SubscriptionID: "00000000-0000-0000-0000-000000000001",
			TenantID:       "00000000-0000-0000-0000-000000000002",
			ClientID:       "00000000-0000-0000-0000-000000000003",
			ClientSecret:   "not-a-real-secret",
			Location:       "eastasia",
			ResourceGroup:  "rg-test",
		},
	}
	return NewRealClient(source, 1)
}

// resumeTokenFor fabricates the SDK's resume token envelope for a machine
// power operation. The outer type names the response the token belongs to;
// the SDK refuses to rebuild a poller of any other response type.
func resumeTokenFor(operation string) string {
	return fmt.Sprintf(
		`{"type":"armcompute.VirtualMachinesClient%sResponse","token":{"type":"body","pollURL":"https://management.azure.com/poll","state":"InProgress"}}`,
		operation)
}

// A stop handle must rebuild the poller variant that minted its resume
// token. Deallocate tokens are not interchangeable with power-off tokens,
// so the two stop variants carry distinct operation kinds. The cancelled
// context keeps a successfully rebuilt poller from reaching the network;
// rebuilding itself needs none.
func TestOperationStatusRebuildsStopVariant(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		kind      OperationKind
		token     string
		wantMatch bool
	}{
		{
			name:      "deallocate handle resumes deallocate token",
			kind:      OpDeallocateMachine,
			token:     resumeTokenFor("Deallocate"),
			wantMatch: true,
		},
		{
			name:      "soft stop handle resumes power-off token",
			kind:      OpStopMachine,
			token:     resumeTokenFor("PowerOff"),
			wantMatch: true,
		},
		{
			name:      "soft stop handle rejects deallocate token",
			kind:      OpStopMachine,
			token:     resumeTokenFor("Deallocate"),
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := testClient(t)

			_, err := c.OperationStatus(ctx, OperationHandle{
				ID:           "op-1",
				CredentialID: "cred-1",
				Kind:         tt.kind,
				ResumeToken:  tt.token,
				Service:      "svc-one",
				Deployment:   "dep-one",
				Machine:      "web-7",
			})
			require.Error(t, err)
			if tt.wantMatch {
				require.NotContains(t, err.Error(), "cannot resume from this poller token")
			} else {
				require.Contains(t, err.Error(), "cannot resume from this poller token")
			}
		})
	}
}

func TestOperationStatusNoResumeToken(t *testing.T) {
	t.Parallel()

	c := testClient(t)
	res, err := c.OperationStatus(context.Background(), OperationHandle{
		ID:           "op-1",
		CredentialID: "cred-1",
		Kind:         OpDeallocateMachine,
	})
	require.NoError(t, err)
	require.Equal(t, OperationSucceeded, res.Status)
}
