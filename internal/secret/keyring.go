package secret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"
	"github.com/adrg/xdg"
)

// KeyringBackend stores credentials in the OS keyring (macOS Keychain,
// Secret Service, Windows Credential Manager) via 99designs/keyring.
// It is the only backend with no external process to spawn, which makes
// it the usual head of the fallback chain.
type KeyringBackend struct {
	ring keyring.Keyring
}

// keyringEntry is the JSON document stored per connection.
type keyringEntry struct {
	Username      string `json:"username,omitempty"`
	Password      string `json:"password,omitempty"`
	KeyPassphrase string `json:"key_passphrase,omitempty"`
	Domain        string `json:"domain,omitempty"`
}

// NewKeyringBackend opens the platform keyring. Returns an error when
// no keyring is usable (e.g. headless Linux without Secret Service and
// no file backend configured).
func NewKeyringBackend() (*KeyringBackend, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:              "connvault",
		KeychainTrustApplication: true, // macOS: don't prompt every access
		FileDir:                  filepath.Join(xdg.DataHome, "connvault", "keyring"),
		FilePasswordFunc:         keyring.TerminalPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: opening keyring: %v", ErrBackendUnavailable, err)
	}
	return &KeyringBackend{ring: ring}, nil
}

// NewKeyringBackendWith wraps an already-open keyring. Used by tests
// with keyring.NewArrayKeyring.
func NewKeyringBackendWith(ring keyring.Keyring) *KeyringBackend {
	return &KeyringBackend{ring: ring}
}

// Store writes the credentials as a JSON item keyed by connection ID.
func (k *KeyringBackend) Store(_ context.Context, connectionID string, creds *Credentials) error {
	entry := keyringEntry{
		Username:      creds.Username,
		Password:      creds.Password.Expose(),
		KeyPassphrase: creds.KeyPassphrase.Expose(),
		Domain:        creds.Domain,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: serializing entry: %v", ErrStoreFailed, err)
	}

	item := keyring.Item{
		Key:   connectionID,
		Data:  data,
		Label: entryName(connectionID),
	}
	if err := k.ring.Set(item); err != nil {
		return fmt.Errorf("%w: keyring set: %v", ErrStoreFailed, err)
	}
	return nil
}

// Retrieve reads the stored item, or returns (nil, nil) when absent.
func (k *KeyringBackend) Retrieve(_ context.Context, connectionID string) (*Credentials, error) {
	item, err := k.ring.Get(connectionID)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: keyring get: %v", ErrRetrieveFailed, err)
	}

	var entry keyringEntry
	if err := json.Unmarshal(item.Data, &entry); err != nil {
		return nil, fmt.Errorf("%w: parsing entry: %v", ErrRetrieveFailed, err)
	}

	return &Credentials{
		Username:      entry.Username,
		Password:      Secret(entry.Password),
		KeyPassphrase: Secret(entry.KeyPassphrase),
		Domain:        entry.Domain,
	}, nil
}

// Delete removes the stored item. Deleting an absent item succeeds.
func (k *KeyringBackend) Delete(_ context.Context, connectionID string) error {
	if err := k.ring.Remove(connectionID); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("%w: keyring remove: %v", ErrConnectionFailed, err)
	}
	return nil
}

// Available reports whether the keyring answered a listing call. No
// subprocess is involved, so this is not throttled.
func (k *KeyringBackend) Available(_ context.Context) bool {
	_, err := k.ring.Keys()
	return err == nil
}

// ID implements Backend.
func (k *KeyringBackend) ID() string { return "keyring" }

// DisplayName implements Backend.
func (k *KeyringBackend) DisplayName() string { return "System Keyring" }
