package secret

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryNaming(t *testing.T) {
	assert.Equal(t, "ConnVault: abc-123", entryName("abc-123"))
	assert.Equal(t, "connvault://abc-123", entryURI("abc-123"))
}

func TestBitwardenSessionArgs(t *testing.T) {
	b := NewBitwardenBackend()
	assert.Equal(t, []string{"status"}, b.args("status"))

	b.SetSessionKey("sess-key")
	assert.Equal(t, []string{"status", "--session", "sess-key"}, b.args("status"))

	b.ClearSession()
	assert.Equal(t, []string{"status"}, b.args("status"))
}

func TestBitwardenItemTemplate(t *testing.T) {
	b := NewBitwardenBackend()
	creds := &Credentials{Username: "admin", Password: "pw", Domain: "corp"}

	payload, err := b.itemTemplate("conn-1", creds, "folder-9")
	require.NoError(t, err)

	var tpl bitwardenItemTemplate
	require.NoError(t, json.Unmarshal(payload, &tpl))

	assert.Equal(t, 1, tpl.Type)
	assert.Equal(t, "ConnVault: conn-1", tpl.Name)
	assert.Equal(t, "corp", tpl.Notes)
	assert.Equal(t, "folder-9", tpl.FolderID)
	assert.Equal(t, "admin", tpl.Login.Username)
	assert.Equal(t, "pw", tpl.Login.Password)
	require.Len(t, tpl.Login.URIs, 1)
	assert.Equal(t, "connvault://conn-1", tpl.Login.URIs[0].URI)
	assert.Equal(t, 3, tpl.Login.URIs[0].Match)
}

func TestOnePasswordItemPayload(t *testing.T) {
	o := NewOnePasswordBackend()
	creds := &Credentials{Username: "admin", Password: "pw"}

	payload, err := o.itemPayload("conn-1", creds, "vault-7")
	require.NoError(t, err)

	var tpl onePasswordItemTemplate
	require.NoError(t, json.Unmarshal(payload, &tpl))

	assert.Equal(t, "ConnVault: conn-1", tpl.Title)
	assert.Equal(t, "LOGIN", tpl.Category)
	assert.Equal(t, []string{"connvault"}, tpl.Tags)
	assert.Equal(t, "vault-7", tpl.Vault["id"])
	require.Len(t, tpl.Fields, 2)
	assert.Equal(t, "CONCEALED", tpl.Fields[1].Type)
	assert.Equal(t, "pw", tpl.Fields[1].Value)
}

func TestPassEntryPath(t *testing.T) {
	p := NewPassBackend("")
	assert.Equal(t, "connvault/conn-1/password", p.entryPath("conn-1", "password"))
	assert.Nil(t, p.env())

	scoped := NewPassBackend("/tmp/store")
	assert.Equal(t, []string{"PASSWORD_STORE_DIR=/tmp/store"}, scoped.env())
}

func TestPassboltWriteArgs(t *testing.T) {
	p := NewPassboltBackend()
	creds := &Credentials{Username: "admin", Password: "hunter2"}

	args, stdin := p.writeArgs([]string{"create", "resource", "--name", entryName("conn-1")}, creds)

	// The password travels over stdin, never argv.
	assert.NotContains(t, args, "hunter2")
	assert.Equal(t, []string{
		"create", "resource", "--name", "ConnVault: conn-1",
		"--username", "admin",
		"--password", "-",
	}, args)
	assert.Equal(t, []byte("hunter2\n"), stdin)
}

func TestPassboltWriteArgsEmptyFields(t *testing.T) {
	p := NewPassboltBackend()

	args, stdin := p.writeArgs([]string{"update", "resource", "--id", "r-1"}, &Credentials{Username: "admin"})
	assert.Equal(t, []string{"update", "resource", "--id", "r-1", "--username", "admin"}, args)
	assert.Nil(t, stdin, "no password means no stdin payload")
}

func TestBuildChainOrdering(t *testing.T) {
	opts := ChainOptions{
		BackendOrder: []string{"pass", "bitwarden", "nonsense"},
		CacheEnabled: true,
	}
	m := BuildChain(opts)

	backends := m.Backends()
	require.Len(t, backends, 2, "unknown backend IDs are skipped")
	assert.Equal(t, "pass", backends[0].ID())
	assert.Equal(t, "bitwarden", backends[1].ID())
}

func TestBuildChainPassboltOptIn(t *testing.T) {
	assert.NotContains(t, DefaultBackendOrder, "passbolt")
	assert.Contains(t, KnownBackends, "passbolt")

	m := BuildChain(ChainOptions{
		BackendOrder:   []string{"passbolt", "pass"},
		PassboltServer: "https://vault.corp.example",
	})

	backends := m.Backends()
	require.Len(t, backends, 2)
	assert.Equal(t, "passbolt", backends[0].ID())

	pb, ok := backends[0].(*PassboltBackend)
	require.True(t, ok)
	assert.Equal(t, "https://vault.corp.example", pb.serverAddress)
}

func TestDefaultChainOptions(t *testing.T) {
	opts := DefaultChainOptions()
	assert.Equal(t, DefaultBackendOrder, opts.BackendOrder)
	assert.True(t, opts.CacheEnabled)
}
