package secret

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Manager is the composite secret store. It keeps backends in priority
// order, serves repeated lookups from a session cache, and decomposes
// bulk operations into per-item calls with structured failure reports.
//
// Writes go to the first available backend only; there is no
// multi-backend replication and no write fallback. Reads walk the chain
// until one backend has the item. Deletes purge every backend that will
// take the call.
type Manager struct {
	backends []Backend

	mu           sync.RWMutex
	cache        map[string]*Credentials
	cacheEnabled bool
}

// NewManager creates a Manager over the given backends, highest
// priority first. Caching is enabled by default.
func NewManager(backends ...Backend) *Manager {
	return &Manager{
		backends:     backends,
		cache:        make(map[string]*Credentials),
		cacheEnabled: true,
	}
}

// SetCacheEnabled toggles the session cache.
func (m *Manager) SetCacheEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cacheEnabled = enabled
}

// AddBackend appends a backend at the end of the priority list.
func (m *Manager) AddBackend(b Backend) {
	m.backends = append(m.backends, b)
}

// Backends returns the configured chain in priority order.
func (m *Manager) Backends() []Backend {
	return m.backends
}

// AvailableBackends returns the IDs of backends that answer their
// availability probe right now.
func (m *Manager) AvailableBackends(ctx context.Context) []string {
	var available []string
	for _, b := range m.backends {
		if b.Available(ctx) {
			available = append(available, b.ID())
		}
	}
	return available
}

// IsAvailable reports whether any backend is available.
func (m *Manager) IsAvailable(ctx context.Context) bool {
	for _, b := range m.backends {
		if b.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *Manager) firstAvailable(ctx context.Context) (Backend, error) {
	for _, b := range m.backends {
		if b.Available(ctx) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: no secret backend available", ErrBackendUnavailable)
}

func (m *Manager) cacheGet(connectionID string) (*Credentials, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.cacheEnabled {
		return nil, false
	}
	creds, ok := m.cache[connectionID]
	if !ok {
		return nil, false
	}
	return creds.Clone(), true
}

func (m *Manager) cachePut(connectionID string, creds *Credentials) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cacheEnabled {
		m.cache[connectionID] = creds.Clone()
	}
}

func (m *Manager) cacheDelete(connectionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, connectionID)
}

// ClearCache drops every cached entry. Entries are never invalidated by
// time; this is the only way to flush them.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*Credentials)
}

// Store writes credentials through the first available backend and
// mirrors them into the cache. A write failure is returned as-is; the
// manager never retries a store against a lower-priority backend.
func (m *Manager) Store(ctx context.Context, connectionID string, creds *Credentials) error {
	backend, err := m.firstAvailable(ctx)
	if err != nil {
		return err
	}
	if err := backend.Store(ctx, connectionID, creds); err != nil {
		return err
	}
	m.cachePut(connectionID, creds)
	return nil
}

// Retrieve returns the credentials for a connection, or (nil, nil) when
// no backend holds them. A cache hit bypasses the backends entirely; on
// a miss the chain is walked in priority order, skipping unavailable
// backends, and the first hit is cached.
func (m *Manager) Retrieve(ctx context.Context, connectionID string) (*Credentials, error) {
	if creds, ok := m.cacheGet(connectionID); ok {
		return creds, nil
	}

	for _, b := range m.backends {
		if !b.Available(ctx) {
			continue
		}
		creds, err := b.Retrieve(ctx, connectionID)
		if err != nil || creds == nil {
			continue
		}
		m.cachePut(connectionID, creds)
		return creds, nil
	}

	return nil, nil
}

// Delete purges the cache entry unconditionally, then attempts the
// delete on every available backend. It succeeds if at least one
// backend delete succeeded; otherwise the last error is returned, or
// ErrBackendUnavailable when no backend was available at all.
func (m *Manager) Delete(ctx context.Context, connectionID string) error {
	m.cacheDelete(connectionID)

	var deleted bool
	var lastErr error

	for _, b := range m.backends {
		if !b.Available(ctx) {
			continue
		}
		if err := b.Delete(ctx, connectionID); err != nil {
			lastErr = err
		} else {
			deleted = true
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("%w: no secret backend available", ErrBackendUnavailable)
}

// BulkOperationResult reports the outcome of a bulk credential
// operation. Bulk operations never abort mid-batch and never roll back;
// every per-item failure is recorded here instead.
type BulkOperationResult struct {
	SuccessCount int
	FailureCount int
	FailedIDs    []uuid.UUID
	Errors       []string
}

// IsSuccess reports whether every item succeeded.
func (r *BulkOperationResult) IsSuccess() bool {
	return r.FailureCount == 0
}

// HasFailures reports whether any item failed.
func (r *BulkOperationResult) HasFailures() bool {
	return r.FailureCount > 0
}

// Total returns the number of items attempted.
func (r *BulkOperationResult) Total() int {
	return r.SuccessCount + r.FailureCount
}

func (r *BulkOperationResult) recordSuccess() {
	r.SuccessCount++
}

func (r *BulkOperationResult) recordFailure(id uuid.UUID, msg string) {
	r.FailureCount++
	r.FailedIDs = append(r.FailedIDs, id)
	r.Errors = append(r.Errors, msg)
}

// StoreBulk stores credentials for multiple connections sequentially.
func (m *Manager) StoreBulk(ctx context.Context, creds map[uuid.UUID]*Credentials) *BulkOperationResult {
	result := &BulkOperationResult{}
	for id, c := range creds {
		if err := m.Store(ctx, id.String(), c); err != nil {
			result.recordFailure(id, err.Error())
		} else {
			result.recordSuccess()
		}
	}
	return result
}

// DeleteBulk deletes credentials for multiple connections sequentially.
func (m *Manager) DeleteBulk(ctx context.Context, connectionIDs []uuid.UUID) *BulkOperationResult {
	result := &BulkOperationResult{}
	for _, id := range connectionIDs {
		if err := m.Delete(ctx, id.String()); err != nil {
			result.recordFailure(id, err.Error())
		} else {
			result.recordSuccess()
		}
	}
	return result
}

// UpdateBulk applies the same partial update to every listed
// connection. Connections without stored credentials start from an
// empty set, so a patch can establish credentials where none existed.
func (m *Manager) UpdateBulk(ctx context.Context, connectionIDs []uuid.UUID, update CredentialUpdate) *BulkOperationResult {
	result := &BulkOperationResult{}

	for _, id := range connectionIDs {
		existing, err := m.Retrieve(ctx, id.String())
		if err != nil {
			result.recordFailure(id, fmt.Sprintf("failed to retrieve: %v", err))
			continue
		}

		updated := update.Apply(existing)

		if err := m.Store(ctx, id.String(), updated); err != nil {
			result.recordFailure(id, fmt.Sprintf("failed to store: %v", err))
		} else {
			result.recordSuccess()
		}
	}

	return result
}

// RetrieveBulk returns the credentials found for the listed
// connections; connections without stored credentials are omitted.
func (m *Manager) RetrieveBulk(ctx context.Context, connectionIDs []uuid.UUID) map[uuid.UUID]*Credentials {
	found := make(map[uuid.UUID]*Credentials)
	for _, id := range connectionIDs {
		if creds, err := m.Retrieve(ctx, id.String()); err == nil && creds != nil {
			found[id] = creds
		}
	}
	return found
}

// CopyCredentials copies the source connection's credentials to every
// target. The whole call fails before any write if the source cannot be
// retrieved; after that each target is written independently.
func (m *Manager) CopyCredentials(ctx context.Context, sourceID uuid.UUID, targetIDs []uuid.UUID) (*BulkOperationResult, error) {
	source, err := m.Retrieve(ctx, sourceID.String())
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("%w: source credentials not found: %s", ErrRetrieveFailed, sourceID)
	}

	result := &BulkOperationResult{}
	for _, target := range targetIDs {
		if err := m.Store(ctx, target.String(), source); err != nil {
			result.recordFailure(target, err.Error())
		} else {
			result.recordSuccess()
		}
	}
	return result, nil
}

// ConnectionsWithCredentials returns the subset of IDs that have stored
// credentials in any backend (or the cache).
func (m *Manager) ConnectionsWithCredentials(ctx context.Context, connectionIDs []uuid.UUID) []uuid.UUID {
	var withCreds []uuid.UUID
	for _, id := range connectionIDs {
		if creds, err := m.Retrieve(ctx, id.String()); err == nil && creds != nil {
			withCreds = append(withCreds, id)
		}
	}
	return withCreds
}
