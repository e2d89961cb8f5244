package azure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCredentials(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.yaml")
	content := `credentials:
  - id: lab
    subscription_id: 00000000-0000-0000-0000-000000000001
    tenant_id: t
    client_id: c
    client_secret: s
    location: eastus
    resource_group: lab-rg
  - id: prod
    subscription_id: 00000000-0000-0000-0000-000000000002
    location: westus
    resource_group: prod-rg
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	src, err := LoadCredentials(path)
	require.NoError(t, err)

	cred, err := src.Lookup("lab")
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", cred.SubscriptionID)
	assert.Equal(t, "eastus", cred.Location)
	assert.Equal(t, "lab-rg", cred.ResourceGroup)

	_, err = src.Lookup("missing")
	assert.Error(t, err)
}

func TestLoadCredentialsRejectsBadEntries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing id",
			content: "credentials:\n  - subscription_id: s1\n",
		},
		{
			name:    "missing subscription",
			content: "credentials:\n  - id: a\n",
		},
		{
			name:    "duplicate id",
			content: "credentials:\n  - id: a\n    subscription_id: s1\n  - id: a\n    subscription_id: s2\n",
		},
		{
			name:    "not yaml",
			content: "{{{",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "credentials.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			_, err := LoadCredentials(path)
			assert.Error(t, err)
		})
	}
}

func TestSessionManagerCachesPerCredential(t *testing.T) {
	t.Parallel()

	source := StaticCredentialSource{
		"a": {ID: "a", SubscriptionID: "s-a"},
		"b": {ID: "b", SubscriptionID: "s-b"},
	}
	opens := 0
	open := func(cred Credential) (*session, error) {
		opens++
		return &session{cred: cred}, nil
	}
	m := NewSessionManager(source, open, 4)

	s1, err := m.Session("a")
	require.NoError(t, err)
	s2, err := m.Session("a")
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, opens)

	_, err = m.Session("b")
	require.NoError(t, err)
	assert.Equal(t, 2, opens)
	assert.Equal(t, 2, m.Len())

	_, err = m.Session("missing")
	assert.Error(t, err)
}

func TestSessionManagerEvictsOldest(t *testing.T) {
	t.Parallel()

	source := StaticCredentialSource{
		"a": {ID: "a", SubscriptionID: "s-a"},
		"b": {ID: "b", SubscriptionID: "s-b"},
		"c": {ID: "c", SubscriptionID: "s-c"},
	}
	opens := map[string]int{}
	open := func(cred Credential) (*session, error) {
		opens[cred.ID]++
		return &session{cred: cred}, nil
	}
	m := NewSessionManager(source, open, 2)

	for _, id := range []string{"a", "b", "c"} {
		_, err := m.Session(id)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, m.Len())

	// "a" was evicted and must be reopened; "c" is still cached.
	_, err := m.Session("c")
	require.NoError(t, err)
	assert.Equal(t, 1, opens["c"])

	_, err = m.Session("a")
	require.NoError(t, err)
	assert.Equal(t, 2, opens["a"])
}
