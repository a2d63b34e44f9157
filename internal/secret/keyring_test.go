package secret

import (
	"context"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyringBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := NewKeyringBackendWith(keyring.NewArrayKeyring(nil))

	require.True(t, backend.Available(ctx))
	assert.Equal(t, "keyring", backend.ID())

	creds := &Credentials{
		Username:      "admin",
		Password:      "pw",
		KeyPassphrase: "phrase",
		Domain:        "corp",
	}
	require.NoError(t, backend.Store(ctx, "conn-1", creds))

	got, err := backend.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, creds, got)
}

func TestKeyringBackendMissingIsNilNil(t *testing.T) {
	backend := NewKeyringBackendWith(keyring.NewArrayKeyring(nil))
	got, err := backend.Retrieve(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestKeyringBackendDelete(t *testing.T) {
	ctx := context.Background()
	backend := NewKeyringBackendWith(keyring.NewArrayKeyring(nil))

	require.NoError(t, backend.Store(ctx, "conn-1", &Credentials{Password: "pw"}))
	require.NoError(t, backend.Delete(ctx, "conn-1"))

	got, err := backend.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting an absent item succeeds.
	assert.NoError(t, backend.Delete(ctx, "conn-1"))
}

func TestKeyringBackendOverwrite(t *testing.T) {
	ctx := context.Background()
	backend := NewKeyringBackendWith(keyring.NewArrayKeyring(nil))

	require.NoError(t, backend.Store(ctx, "conn-1", &Credentials{Password: "old"}))
	require.NoError(t, backend.Store(ctx, "conn-1", &Credentials{Password: "new"}))

	got, err := backend.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, Secret("new"), got.Password)
}
