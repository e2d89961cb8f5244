package template

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTemplate = `name: linux-lab
virtual_environments:
  - machine_name: web
    machine_label: web server
    machine_size: Medium
    storage_account:
      name: storea
      description: lab storage
      label: store
      location: eastus
      container: vhds
    cloud_service:
      name: svc-a
      label: svc
      location: eastus
    deployment:
      name: dep-a
      slot: production
    image:
      type: os
      name: ubuntu-22
    system_config:
      os_family: Linux
      hostname: web
      username: admin
      password: secret
    network_config:
      endpoints:
        - name: ssh
          protocol: tcp
          private_port: 22
        - name: http
          protocol: tcp
          private_port: 80
    remote:
      provider: guacamole
      endpoint_name: ssh
      protocol: ssh
`

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tpl, err := Load(writeTemplate(t, sampleTemplate))
	require.NoError(t, err)
	require.Len(t, tpl.Units, 1)

	u := &tpl.Units[0]
	assert.False(t, u.IsVMImage())
	assert.Equal(t, "web-42", u.MachineNameFor(42))
	assert.Equal(t, []int{22, 80}, u.RequiredPrivatePorts())
	assert.Equal(t, "storea", u.StorageAccountSpec().Name)
	assert.Equal(t, "svc-a", u.ServiceSpec().Name)

	sys := u.System()
	require.NotNil(t, sys)
	assert.Equal(t, "admin", sys.Username)
}

func TestLoadRejectsInvalidUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate string
	}{
		{"empty template", "name: x\nvirtual_environments: []\n"},
		{"bad image type", "name: x\nvirtual_environments:\n  - machine_name: a\n    machine_size: Small\n    storage_account: {name: s}\n    cloud_service: {name: c}\n    deployment: {name: d, slot: production}\n    image: {type: iso, name: i}\n"},
		{"unknown size", "name: x\nvirtual_environments:\n  - machine_name: a\n    machine_size: Humongous\n    storage_account: {name: s}\n    cloud_service: {name: c}\n    deployment: {name: d, slot: production}\n    image: {type: vm, name: i}\n"},
		{"os image without user", "name: x\nvirtual_environments:\n  - machine_name: a\n    machine_size: Small\n    storage_account: {name: s}\n    cloud_service: {name: c}\n    deployment: {name: d, slot: production}\n    image: {type: os, name: i}\n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeTemplate(t, tt.mutate))
			assert.Error(t, err)
		})
	}
}

func TestMediaLink(t *testing.T) {
	t.Parallel()

	tpl, err := Load(writeTemplate(t, sampleTemplate))
	require.NoError(t, err)
	u := &tpl.Units[0]

	at := time.Date(2026, 3, 9, 14, 30, 5, 0, time.UTC)
	link := u.MediaLink(at, "7")
	assert.Equal(t, "https://storea.blob.core.windows.net/vhds/ubuntu-22-2026-3-9-14-30-5-7.vhd", link)

	// Pre-built VM images carry their own disk.
	vm := *u
	vm.Image.Type = ImageVM
	assert.Empty(t, vm.MediaLink(at, "7"))
	assert.Nil(t, vm.System())
}

func TestRemoteParams(t *testing.T) {
	t.Parallel()

	tpl, err := Load(writeTemplate(t, sampleTemplate))
	require.NoError(t, err)

	payload, err := tpl.Units[0].RemoteParams("env-7", "svc-a.cloudapp.net", 10022)
	require.NoError(t, err)

	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(payload), &params))
	assert.Equal(t, "svc-a.cloudapp.net", params["hostname"])
	assert.Equal(t, float64(10022), params["port"])
	assert.Equal(t, "ssh", params["protocol"])
	assert.Equal(t, "admin", params["username"])
}

func TestCoreCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size  string
		cores int
		ok    bool
	}{
		{"Small", 1, true},
		{"medium", 2, true},
		{"Extra Large", 8, true},
		{"Standard_G5", 32, true},
		{"Humongous", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		tt := tt
		cores, err := CoreCount(tt.size)
		if tt.ok {
			require.NoError(t, err, tt.size)
			assert.Equal(t, tt.cores, cores, tt.size)
		} else {
			assert.Error(t, err, tt.size)
		}
	}
}
