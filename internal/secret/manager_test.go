package secret

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory Backend with call counters and failure
// injection.
type fakeBackend struct {
	id        string
	available bool
	items     map[string]*Credentials

	storeErr    error
	retrieveErr error
	deleteErr   error

	storeCalls    int
	retrieveCalls int
	deleteCalls   int
}

func newFakeBackend(id string) *fakeBackend {
	return &fakeBackend{id: id, available: true, items: make(map[string]*Credentials)}
}

func (f *fakeBackend) Store(_ context.Context, connectionID string, creds *Credentials) error {
	f.storeCalls++
	if f.storeErr != nil {
		return f.storeErr
	}
	f.items[connectionID] = creds.Clone()
	return nil
}

func (f *fakeBackend) Retrieve(_ context.Context, connectionID string) (*Credentials, error) {
	f.retrieveCalls++
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return f.items[connectionID].Clone(), nil
}

func (f *fakeBackend) Delete(_ context.Context, connectionID string) error {
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.items, connectionID)
	return nil
}

func (f *fakeBackend) Available(_ context.Context) bool { return f.available }
func (f *fakeBackend) ID() string                       { return f.id }
func (f *fakeBackend) DisplayName() string              { return f.id }

func TestManagerStoreFirstAvailableOnly(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	b := newFakeBackend("b")
	a.available = false
	m := NewManager(a, b)

	creds := &Credentials{Username: "admin", Password: "pw"}
	require.NoError(t, m.Store(ctx, "conn-1", creds))

	assert.Zero(t, a.storeCalls)
	assert.Equal(t, 1, b.storeCalls)
	assert.Contains(t, b.items, "conn-1")
}

func TestManagerStoreNoWriteFallback(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	b := newFakeBackend("b")
	a.storeErr = fmt.Errorf("%w: vault locked", ErrStoreFailed)
	m := NewManager(a, b)

	err := m.Store(ctx, "conn-1", &Credentials{Password: "pw"})
	require.ErrorIs(t, err, ErrStoreFailed)
	assert.Zero(t, b.storeCalls, "store must not fall through to lower priority")
}

func TestManagerStoreNoBackend(t *testing.T) {
	m := NewManager()
	err := m.Store(context.Background(), "conn-1", &Credentials{Password: "pw"})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestManagerRetrieveWalksChain(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	b := newFakeBackend("b")
	b.items["conn-1"] = &Credentials{Username: "fromB"}
	m := NewManager(a, b)
	m.SetCacheEnabled(false)

	creds, err := m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "fromB", creds.Username)
	assert.Equal(t, 1, a.retrieveCalls)
}

func TestManagerRetrieveSkipsUnavailableAndErrors(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	a.available = false
	b := newFakeBackend("b")
	b.retrieveErr = fmt.Errorf("%w: timeout", ErrConnectionFailed)
	c := newFakeBackend("c")
	c.items["conn-1"] = &Credentials{Username: "fromC"}
	m := NewManager(a, b, c)

	creds, err := m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "fromC", creds.Username)
	assert.Zero(t, a.retrieveCalls)
}

func TestManagerRetrieveExhaustedIsNilNil(t *testing.T) {
	m := NewManager(newFakeBackend("a"), newFakeBackend("b"))
	creds, err := m.Retrieve(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, creds)
}

func TestManagerCacheHitBypassesBackends(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	a.items["conn-1"] = &Credentials{Username: "admin"}
	m := NewManager(a)

	_, err := m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	_, err = m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)

	assert.Equal(t, 1, a.retrieveCalls, "second lookup must be served from cache")
}

func TestManagerCacheServesWhenBackendsGone(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	a.items["conn-1"] = &Credentials{Username: "admin"}
	m := NewManager(a)

	_, err := m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)

	a.available = false
	creds, err := m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "admin", creds.Username)
}

func TestManagerCacheDisabled(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	a.items["conn-1"] = &Credentials{Username: "admin"}
	m := NewManager(a)
	m.SetCacheEnabled(false)

	_, err := m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	_, err = m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, 2, a.retrieveCalls)
}

func TestManagerCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	a.items["conn-1"] = &Credentials{Username: "admin"}
	m := NewManager(a)

	first, err := m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	first.Username = "mutated"

	second, err := m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "admin", second.Username)
}

func TestManagerDeleteEverywhere(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	b := newFakeBackend("b")
	a.items["conn-1"] = &Credentials{Password: "pw"}
	b.items["conn-1"] = &Credentials{Password: "pw"}
	m := NewManager(a, b)

	require.NoError(t, m.Delete(ctx, "conn-1"))
	assert.Equal(t, 1, a.deleteCalls)
	assert.Equal(t, 1, b.deleteCalls)
}

func TestManagerDeletePurgesCacheBeforeBackends(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	a.items["conn-1"] = &Credentials{Password: "pw"}
	m := NewManager(a)
	m.SetCacheEnabled(false)

	_, err := m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	require.NoError(t, m.Delete(ctx, "conn-1"))

	creds, err := m.Retrieve(ctx, "conn-1")
	require.NoError(t, err)
	assert.Nil(t, creds, "deleted credentials must not reappear")
}

func TestManagerDeleteErrorSemantics(t *testing.T) {
	ctx := context.Background()

	t.Run("one success masks another failure", func(t *testing.T) {
		a := newFakeBackend("a")
		a.deleteErr = fmt.Errorf("%w: refused", ErrConnectionFailed)
		b := newFakeBackend("b")
		m := NewManager(a, b)
		assert.NoError(t, m.Delete(ctx, "conn-1"))
	})

	t.Run("all failures return last error", func(t *testing.T) {
		a := newFakeBackend("a")
		a.deleteErr = fmt.Errorf("%w: refused", ErrConnectionFailed)
		m := NewManager(a)
		assert.ErrorIs(t, m.Delete(ctx, "conn-1"), ErrConnectionFailed)
	})

	t.Run("no backend available", func(t *testing.T) {
		a := newFakeBackend("a")
		a.available = false
		m := NewManager(a)
		assert.ErrorIs(t, m.Delete(ctx, "conn-1"), ErrBackendUnavailable)
	})
}

func TestManagerAvailableBackends(t *testing.T) {
	a := newFakeBackend("a")
	b := newFakeBackend("b")
	b.available = false
	m := NewManager(a, b)

	assert.Equal(t, []string{"a"}, m.AvailableBackends(context.Background()))
	assert.True(t, m.IsAvailable(context.Background()))

	a.available = false
	assert.False(t, m.IsAvailable(context.Background()))
}

func TestManagerStoreBulk(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	m := NewManager(a)

	batch := map[uuid.UUID]*Credentials{
		uuid.New(): {Password: "one"},
		uuid.New(): {Password: "two"},
		uuid.New(): {Password: "three"},
	}
	result := m.StoreBulk(ctx, batch)

	assert.True(t, result.IsSuccess())
	assert.Equal(t, 3, result.SuccessCount)
	assert.Equal(t, 3, result.Total())
	assert.Len(t, a.items, 3)
}

func TestManagerDeleteBulkRecordsFailures(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	a.available = false
	m := NewManager(a)

	ids := []uuid.UUID{uuid.New(), uuid.New()}
	result := m.DeleteBulk(ctx, ids)

	assert.True(t, result.HasFailures())
	assert.Equal(t, 2, result.FailureCount)
	assert.ElementsMatch(t, ids, result.FailedIDs)
	assert.Len(t, result.Errors, 2)
}

func TestManagerUpdateBulkCreatesMissing(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	m := NewManager(a)

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
	}
	// Only three have existing credentials; the patch must still apply
	// to all five.
	for _, id := range ids[:3] {
		a.items[id.String()] = &Credentials{Username: "old", Password: "pw"}
	}

	result := m.UpdateBulk(ctx, ids, CredentialUpdate{}.WithUsername("new"))
	require.True(t, result.IsSuccess())
	assert.Equal(t, 5, result.SuccessCount)

	for _, id := range ids {
		assert.Equal(t, "new", a.items[id.String()].Username)
	}
	assert.Equal(t, Secret("pw"), a.items[ids[0].String()].Password)
	assert.Empty(t, a.items[ids[4].String()].Password)
}

func TestManagerRetrieveBulkOmitsMissing(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	stored := uuid.New()
	missing := uuid.New()
	a.items[stored.String()] = &Credentials{Username: "admin"}
	m := NewManager(a)

	found := m.RetrieveBulk(ctx, []uuid.UUID{stored, missing})
	assert.Len(t, found, 1)
	assert.Contains(t, found, stored)
}

func TestManagerCopyCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("copies to every target", func(t *testing.T) {
		a := newFakeBackend("a")
		source := uuid.New()
		a.items[source.String()] = &Credentials{Username: "admin", Password: "pw"}
		m := NewManager(a)

		targets := []uuid.UUID{uuid.New(), uuid.New()}
		result, err := m.CopyCredentials(ctx, source, targets)
		require.NoError(t, err)
		assert.True(t, result.IsSuccess())
		for _, target := range targets {
			assert.Equal(t, "admin", a.items[target.String()].Username)
		}
	})

	t.Run("missing source fails before any write", func(t *testing.T) {
		a := newFakeBackend("a")
		m := NewManager(a)

		_, err := m.CopyCredentials(ctx, uuid.New(), []uuid.UUID{uuid.New()})
		require.ErrorIs(t, err, ErrRetrieveFailed)
		assert.Zero(t, a.storeCalls)
	})
}

func TestManagerConnectionsWithCredentials(t *testing.T) {
	ctx := context.Background()
	a := newFakeBackend("a")
	stored := uuid.New()
	a.items[stored.String()] = &Credentials{Password: "pw"}
	m := NewManager(a)

	out := m.ConnectionsWithCredentials(ctx, []uuid.UUID{stored, uuid.New()})
	assert.Equal(t, []uuid.UUID{stored}, out)
}
