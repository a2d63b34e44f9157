package secret

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
)

// VerificationStore persists a VerificationManager's ledger as JSON with
// file locking, so multiple processes (CLI invocations, a GUI) don't
// clobber each other's updates.
type VerificationStore struct {
	path     string // Path to the ledger file
	lockPath string // Path to the lock file
}

// NewVerificationStore creates a store at the default location under
// the XDG data directory.
func NewVerificationStore() (*VerificationStore, error) {
	path := filepath.Join(xdg.DataHome, "connvault", "verification.json")
	return NewVerificationStoreAt(path)
}

// NewVerificationStoreAt creates a store at an explicit path. Used by
// tests with a temp directory.
func NewVerificationStoreAt(path string) (*VerificationStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &VerificationStore{
		path:     path,
		lockPath: path + ".lock",
	}, nil
}

// Path returns the ledger file location.
func (vs *VerificationStore) Path() string {
	return vs.path
}

func (vs *VerificationStore) withLock(fn func() error) error {
	lock := flock.New(vs.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to acquire lock: timeout")
	}
	defer lock.Unlock()

	return fn()
}

// Load reads the ledger from disk into the manager. A missing file is
// not an error; the manager is left empty.
func (vs *VerificationStore) Load(manager *VerificationManager) error {
	return vs.withLock(func() error {
		data, err := os.ReadFile(vs.path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to read verification ledger: %w", err)
		}
		if err := json.Unmarshal(data, manager); err != nil {
			return fmt.Errorf("failed to parse verification ledger: %w", err)
		}
		return nil
	})
}

// Save writes the manager's ledger to disk.
func (vs *VerificationStore) Save(manager *VerificationManager) error {
	return vs.withLock(func() error {
		data, err := json.MarshalIndent(manager, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize verification ledger: %w", err)
		}
		if err := os.WriteFile(vs.path, data, 0600); err != nil {
			return fmt.Errorf("failed to write verification ledger: %w", err)
		}
		return nil
	})
}

// Clear removes the ledger and lock files.
func (vs *VerificationStore) Clear() error {
	return vs.withLock(func() error {
		if err := os.Remove(vs.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete verification ledger: %w", err)
		}
		if err := os.Remove(vs.lockPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete verification lock file: %w", err)
		}
		return nil
	})
}
