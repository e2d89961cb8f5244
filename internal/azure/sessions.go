package azure

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Credential is one authenticated identity for a remote subscription.
type Credential struct {
	ID             string `yaml:"id"`
	SubscriptionID string `yaml:"subscription_id"`
	TenantID       string `yaml:"tenant_id"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`

	// Location is the region quota snapshots and new resources default to.
	Location string `yaml:"location"`

	// ResourceGroup is the base group storage accounts are created in.
	// Cloud services each get their own group named after the service.
	ResourceGroup string `yaml:"resource_group"`
}

// CredentialSource resolves credential ids to credentials.
type CredentialSource interface {
	Lookup(id string) (Credential, error)
}

// FileCredentialSource reads credentials from a YAML file once and serves
// lookups from memory.
type FileCredentialSource struct {
	creds map[string]Credential
}

// LoadCredentials parses the YAML credentials file at path.
func LoadCredentials(path string) (*FileCredentialSource, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var file struct {
		Credentials []Credential `yaml:"credentials"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}

	src := &FileCredentialSource{creds: make(map[string]Credential, len(file.Credentials))}
	for _, c := range file.Credentials {
		if c.ID == "" || c.SubscriptionID == "" {
			return nil, fmt.Errorf("credential entry missing id or subscription_id")
		}
		if _, dup := src.creds[c.ID]; dup {
			return nil, fmt.Errorf("duplicate credential id %q", c.ID)
		}
		src.creds[c.ID] = c
	}
	return src, nil
}

// IDs returns every known credential id, sorted.
func (s *FileCredentialSource) IDs() []string {
	ids := make([]string, 0, len(s.creds))
	for id := range s.creds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Lookup implements CredentialSource.
func (s *FileCredentialSource) Lookup(id string) (Credential, error) {
	c, ok := s.creds[id]
	if !ok {
		return Credential{}, fmt.Errorf("unknown credential id %q", id)
	}
	return c, nil
}

// StaticCredentialSource serves a fixed set of credentials. Used by tests
// and by callers that build credentials programmatically.
type StaticCredentialSource map[string]Credential

// Lookup implements CredentialSource.
func (s StaticCredentialSource) Lookup(id string) (Credential, error) {
	c, ok := s[id]
	if !ok {
		return Credential{}, fmt.Errorf("unknown credential id %q", id)
	}
	return c, nil
}

// SessionManager owns one authenticated session per credential id, bounded
// in size. Sessions are opened lazily and evicted in insertion order once
// the bound is exceeded, so re-authentication happens only when a chain
// switches credentials, never on every call.
type SessionManager struct {
	source CredentialSource
	open   func(Credential) (*session, error)
	limit  int

	mu       sync.Mutex
	sessions map[string]*session
	order    []string
}

// NewSessionManager builds a manager over source with at most limit cached
// sessions. A limit below 1 keeps a single session.
func NewSessionManager(source CredentialSource, open func(Credential) (*session, error), limit int) *SessionManager {
	if limit < 1 {
		limit = 1
	}
	return &SessionManager{
		source:   source,
		open:     open,
		limit:    limit,
		sessions: make(map[string]*session),
	}
}

// Session returns the cached session for the credential id, opening and
// caching it on first use.
func (m *SessionManager) Session(credentialID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[credentialID]; ok {
		return s, nil
	}

	cred, err := m.source.Lookup(credentialID)
	if err != nil {
		return nil, err
	}
	s, err := m.open(cred)
	if err != nil {
		return nil, fmt.Errorf("failed to open session for credential %q: %w", credentialID, err)
	}

	m.sessions[credentialID] = s
	m.order = append(m.order, credentialID)
	for len(m.order) > m.limit {
		evict := m.order[0]
		m.order = m.order[1:]
		delete(m.sessions, evict)
	}
	return s, nil
}

// Len reports the number of cached sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
