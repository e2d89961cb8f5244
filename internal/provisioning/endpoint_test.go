package provisioning

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expcloud/azureform/internal/azure"
)

func TestFindUnassignedPorts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		assigned []int
		count    int
		base     int
		limit    int
		want     []int
		wantErr  bool
	}{
		{
			name:  "empty inventory",
			count: 3, base: 10000, limit: 10010,
			want: []int{10000, 10001, 10002},
		},
		{
			name:     "skips assigned",
			assigned: []int{10000, 10002},
			count:    2, base: 10000, limit: 10010,
			want: []int{10001, 10003},
		},
		{
			name:     "range exhausted",
			assigned: []int{10000, 10001},
			count:    1, base: 10000, limit: 10002,
			wantErr: true,
		},
		{
			name:  "zero count",
			count: 0, base: 10000, limit: 10001,
			want: []int{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := FindUnassignedPorts(tt.assigned, tt.count, tt.base, tt.limit)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssignPublicEndpoints(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var mu sync.Mutex
	var applied *azure.NetworkConfig
	mock := &azure.MockClient{
		NetworkConfigFunc: func(ctx context.Context, credentialID, service, deployment, name string) (*azure.NetworkConfig, error) {
			return &azure.NetworkConfig{Endpoints: []azure.Endpoint{
				{Name: "ssh", Protocol: "tcp", PublicPort: 10000, PrivatePort: 22},
			}}, nil
		},
		AssignedPublicPortsFunc: func(ctx context.Context, credentialID, service string) ([]int, error) {
			return []int{10000}, nil
		},
		UpdateNetworkConfigFunc: func(ctx context.Context, credentialID, service, deployment, name string, cfg azure.NetworkConfig) (azure.OperationHandle, error) {
			mu.Lock()
			applied = &cfg
			mu.Unlock()
			return azure.OperationHandle{ID: "op-net", CredentialID: credentialID, Kind: azure.OpUpdateNetworkConfig}, nil
		},
	}
	o, _, _ := newTestOrchestrator(t, mock, fastOptions())

	ports, err := o.AssignPublicEndpoints(ctx, "cred-1", "svc-one", "production", "web-7", []int{8080, 9090})
	require.NoError(t, err)
	assert.Equal(t, []int{10001, 10002}, ports)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, applied)
	require.Len(t, applied.Endpoints, 3)
	assert.Equal(t, "ssh", applied.Endpoints[0].Name)
	assert.Equal(t, "auto-10001", applied.Endpoints[1].Name)
	assert.Equal(t, 8080, applied.Endpoints[1].PrivatePort)
	assert.Equal(t, "auto-10002", applied.Endpoints[2].Name)
	assert.Equal(t, 9090, applied.Endpoints[2].PrivatePort)
}

func TestReleasePublicEndpoints(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var mu sync.Mutex
	var applied *azure.NetworkConfig
	mock := &azure.MockClient{
		NetworkConfigFunc: func(ctx context.Context, credentialID, service, deployment, name string) (*azure.NetworkConfig, error) {
			return &azure.NetworkConfig{Endpoints: []azure.Endpoint{
				{Name: "ssh", Protocol: "tcp", PublicPort: 10000, PrivatePort: 22},
				{Name: "auto-10001", Protocol: "tcp", PublicPort: 10001, PrivatePort: 8080},
			}}, nil
		},
		UpdateNetworkConfigFunc: func(ctx context.Context, credentialID, service, deployment, name string, cfg azure.NetworkConfig) (azure.OperationHandle, error) {
			mu.Lock()
			applied = &cfg
			mu.Unlock()
			return azure.OperationHandle{ID: "op-net", CredentialID: credentialID, Kind: azure.OpUpdateNetworkConfig}, nil
		},
	}
	o, _, _ := newTestOrchestrator(t, mock, fastOptions())

	require.NoError(t, o.ReleasePublicEndpoints(ctx, "cred-1", "svc-one", "production", "web-7", []int{8080}))

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, applied)
	require.Len(t, applied.Endpoints, 1)
	assert.Equal(t, "ssh", applied.Endpoints[0].Name)
}

func TestReleasePublicEndpointsNoChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mock := &azure.MockClient{
		NetworkConfigFunc: func(ctx context.Context, credentialID, service, deployment, name string) (*azure.NetworkConfig, error) {
			return &azure.NetworkConfig{Endpoints: []azure.Endpoint{
				{Name: "ssh", Protocol: "tcp", PublicPort: 10000, PrivatePort: 22},
			}}, nil
		},
		UpdateNetworkConfigFunc: func(ctx context.Context, credentialID, service, deployment, name string, cfg azure.NetworkConfig) (azure.OperationHandle, error) {
			t.Error("unexpected network config update")
			return azure.OperationHandle{}, nil
		},
	}
	o, _, _ := newTestOrchestrator(t, mock, fastOptions())

	require.NoError(t, o.ReleasePublicEndpoints(ctx, "cred-1", "svc-one", "production", "web-7", []int{4444}))
}
