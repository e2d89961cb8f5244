package template

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/expcloud/azureform/internal/azure"
)

// Image types.
const (
	ImageVM = "vm"
	ImageOS = "os"
)

// Template is one experiment template: the set of virtual environment units
// it provisions.
type Template struct {
	Name  string `yaml:"name"`
	Units []Unit `yaml:"virtual_environments"`
}

// Unit is the resolved specification of one virtual environment: the storage
// account, cloud service, deployment, machine, and remote-access settings it
// needs.
type Unit struct {
	StorageAccount struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Label       string `yaml:"label"`
		Location    string `yaml:"location"`
		URLBase     string `yaml:"url_base"`
		Container   string `yaml:"container"`
	} `yaml:"storage_account"`

	CloudService struct {
		Name     string `yaml:"name"`
		Label    string `yaml:"label"`
		Location string `yaml:"location"`
	} `yaml:"cloud_service"`

	Deployment struct {
		Name string `yaml:"name"`
		Slot string `yaml:"slot"`
	} `yaml:"deployment"`

	Image struct {
		Type string `yaml:"type"` // "vm" or "os"
		Name string `yaml:"name"`
	} `yaml:"image"`

	SystemConfig struct {
		OSFamily     string `yaml:"os_family"`
		Hostname     string `yaml:"hostname"`
		Username     string `yaml:"username"`
		Password     string `yaml:"password"`
		SSHPublicKey string `yaml:"ssh_public_key"`
	} `yaml:"system_config"`

	NetworkConfig struct {
		Endpoints []UnitEndpoint `yaml:"endpoints"`
	} `yaml:"network_config"`

	Remote struct {
		Provider     string `yaml:"provider"`
		EndpointName string `yaml:"endpoint_name"`
		Protocol     string `yaml:"protocol"`
	} `yaml:"remote"`

	MachineName  string `yaml:"machine_name"`
	MachineLabel string `yaml:"machine_label"`
	MachineSize  string `yaml:"machine_size"`
}

// UnitEndpoint declares one required endpoint by its private port. The
// public port is assigned at provisioning time, never in the template.
type UnitEndpoint struct {
	Name        string `yaml:"name"`
	Protocol    string `yaml:"protocol"`
	PrivatePort int    `yaml:"private_port"`
}

// Load parses the template YAML at path and validates every unit.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	if len(t.Units) == 0 {
		return nil, fmt.Errorf("template %q has no virtual environments", path)
	}
	for i := range t.Units {
		if err := t.Units[i].validate(); err != nil {
			return nil, fmt.Errorf("template %q unit %d: %w", path, i, err)
		}
	}
	return &t, nil
}

func (u *Unit) validate() error {
	switch {
	case u.StorageAccount.Name == "":
		return fmt.Errorf("missing storage account name")
	case u.CloudService.Name == "":
		return fmt.Errorf("missing cloud service name")
	case u.Deployment.Name == "" || u.Deployment.Slot == "":
		return fmt.Errorf("missing deployment name or slot")
	case u.MachineName == "":
		return fmt.Errorf("missing machine name")
	case u.Image.Type != ImageVM && u.Image.Type != ImageOS:
		return fmt.Errorf("image type must be %q or %q, got %q", ImageVM, ImageOS, u.Image.Type)
	case u.Image.Name == "":
		return fmt.Errorf("missing image name")
	}
	if _, err := CoreCount(u.MachineSize); err != nil {
		return err
	}
	if u.Image.Type == ImageOS && u.SystemConfig.Username == "" {
		return fmt.Errorf("os image requires a system config user")
	}
	return nil
}

// IsVMImage reports whether the unit instantiates a pre-built machine image.
func (u *Unit) IsVMImage() bool { return u.Image.Type == ImageVM }

// MachineNameFor derives the collision-free machine name of an experiment.
func (u *Unit) MachineNameFor(experimentID int64) string {
	return fmt.Sprintf("%s-%d", u.MachineName, experimentID)
}

// StorageAccountSpec builds the adapter spec for the unit's storage account.
func (u *Unit) StorageAccountSpec() azure.StorageAccountSpec {
	return azure.StorageAccountSpec{
		Name:        u.StorageAccount.Name,
		Description: u.StorageAccount.Description,
		Label:       u.StorageAccount.Label,
		Location:    u.StorageAccount.Location,
	}
}

// ServiceSpec builds the adapter spec for the unit's cloud service.
func (u *Unit) ServiceSpec() azure.ServiceSpec {
	return azure.ServiceSpec{
		Name:     u.CloudService.Name,
		Label:    u.CloudService.Label,
		Location: u.CloudService.Location,
	}
}

// System returns the OS provisioning settings, or nil for pre-built VM
// images which carry their own.
func (u *Unit) System() *azure.SystemConfig {
	if u.IsVMImage() {
		return nil
	}
	return &azure.SystemConfig{
		OSFamily:     u.SystemConfig.OSFamily,
		Hostname:     u.SystemConfig.Hostname,
		Username:     u.SystemConfig.Username,
		Password:     u.SystemConfig.Password,
		SSHPublicKey: u.SystemConfig.SSHPublicKey,
	}
}

// MediaLink derives a unique OS-disk blob location inside the unit's storage
// account, or "" for pre-built VM images. nonce disambiguates concurrent
// chains creating disks in the same second.
func (u *Unit) MediaLink(now time.Time, nonce string) string {
	if u.IsVMImage() {
		return ""
	}
	urlBase := u.StorageAccount.URLBase
	if urlBase == "" {
		urlBase = "blob.core.windows.net"
	}
	blob := fmt.Sprintf("%s-%d-%d-%d-%d-%d-%d-%s.vhd",
		u.Image.Name,
		now.Year(), int(now.Month()), now.Day(),
		now.Hour(), now.Minute(), now.Second(),
		nonce)
	return fmt.Sprintf("https://%s.%s/%s/%s",
		u.StorageAccount.Name, urlBase, u.StorageAccount.Container, blob)
}

// RequiredPrivatePorts lists the private ports of every declared endpoint.
func (u *Unit) RequiredPrivatePorts() []int {
	ports := make([]int, 0, len(u.NetworkConfig.Endpoints))
	for _, ep := range u.NetworkConfig.Endpoints {
		ports = append(ports, ep.PrivatePort)
	}
	return ports
}

// RemoteParams renders the opaque connection payload for the remote-access
// gateway: display name, host, port, protocol, and login of the machine.
func (u *Unit) RemoteParams(name, hostname string, port int) (string, error) {
	params := map[string]any{
		"name":        name,
		"displayname": u.Remote.EndpointName,
		"hostname":    hostname,
		"protocol":    u.Remote.Protocol,
		"port":        port,
		"username":    u.SystemConfig.Username,
		"password":    u.SystemConfig.Password,
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to encode remote params: %w", err)
	}
	return string(data), nil
}
