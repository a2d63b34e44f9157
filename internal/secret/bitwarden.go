package secret

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BitwardenBackend stores credentials through the Bitwarden CLI (`bw`).
// Works against cloud and self-hosted instances. The caller must be
// logged in; write operations additionally need an unlocked vault,
// which means a session key obtained from `bw unlock`.
//
// The session key is scoped to a single invocation by passing it with
// the `--session` flag rather than an environment variable. The master
// password itself only ever travels over stdin.
type BitwardenBackend struct {
	sessionKey Secret
	serverURL  string
	folderName string
	probe      *probeGate
}

type bitwardenItem struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Login *bitwardenLogin `json:"login"`
	Notes string          `json:"notes"`
}

type bitwardenLogin struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type bitwardenItemTemplate struct {
	Type     int                    `json:"type"`
	Name     string                 `json:"name"`
	Notes    string                 `json:"notes,omitempty"`
	Login    bitwardenLoginTemplate `json:"login"`
	FolderID string                 `json:"folderId,omitempty"`
}

type bitwardenLoginTemplate struct {
	Username string         `json:"username"`
	Password string         `json:"password"`
	URIs     []bitwardenURI `json:"uris"`
}

type bitwardenURI struct {
	URI   string `json:"uri"`
	Match int    `json:"match"`
}

type bitwardenFolder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BitwardenVaultStatus is the parsed output of `bw status`.
type BitwardenVaultStatus struct {
	Status    string `json:"status"`
	UserEmail string `json:"userEmail"`
	ServerURL string `json:"serverUrl"`
}

// NewBitwardenBackend creates a Bitwarden backend with the default
// entry folder.
func NewBitwardenBackend() *BitwardenBackend {
	return &BitwardenBackend{
		folderName: entryFolder,
		probe:      newProbeGate(probeInterval),
	}
}

// WithSessionKey sets the session key used for vault operations.
func (b *BitwardenBackend) WithSessionKey(key Secret) *BitwardenBackend {
	b.sessionKey = key
	return b
}

// WithServerURL sets a self-hosted server URL (informational; `bw
// config server` must already point at it).
func (b *BitwardenBackend) WithServerURL(url string) *BitwardenBackend {
	b.serverURL = url
	return b
}

// WithFolderName overrides the folder that holds this app's entries.
func (b *BitwardenBackend) WithFolderName(name string) *BitwardenBackend {
	b.folderName = name
	return b
}

// SetSessionKey replaces the session key, e.g. after Unlock.
func (b *BitwardenBackend) SetSessionKey(key Secret) {
	b.sessionKey = key
}

// ClearSession forgets the session key.
func (b *BitwardenBackend) ClearSession() {
	b.sessionKey = ""
}

func (b *BitwardenBackend) args(args ...string) []string {
	if b.sessionKey != "" {
		args = append(args, "--session", b.sessionKey.Expose())
	}
	return args
}

func (b *BitwardenBackend) run(ctx context.Context, args ...string) (string, error) {
	return runCLI(ctx, "bw", b.args(args...), nil, nil)
}

// Status returns the parsed `bw status` document.
func (b *BitwardenBackend) Status(ctx context.Context) (*BitwardenVaultStatus, error) {
	out, err := b.run(ctx, "status")
	if err != nil {
		return nil, err
	}
	var status BitwardenVaultStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		return nil, fmt.Errorf("%w: parsing bw status: %v", ErrConnectionFailed, err)
	}
	return &status, nil
}

// IsUnlocked reports whether the vault is unlocked.
func (b *BitwardenBackend) IsUnlocked(ctx context.Context) bool {
	status, err := b.Status(ctx)
	return err == nil && status.Status == "unlocked"
}

// Sync pulls the latest vault state from the server. Transient failures
// are retried briefly; the overall call is best-effort and callers
// usually ignore the error.
func (b *BitwardenBackend) Sync(ctx context.Context) error {
	op := func() error {
		_, err := b.run(ctx, "sync")
		return err
	}
	bo := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(5*time.Second),
	), ctx)
	return backoff.Retry(op, bo)
}

// Unlock obtains a session key from the master password. The password
// is written to bw's stdin, never placed in argv.
func (b *BitwardenBackend) Unlock(ctx context.Context, masterPassword Secret) (Secret, error) {
	out, err := runCLI(ctx, "bw", []string{"unlock", "--raw"}, nil, []byte(masterPassword.Expose()))
	if err != nil {
		return "", err
	}
	b.sessionKey = Secret(out)
	return b.sessionKey, nil
}

// Lock locks the vault and forgets the session key.
func (b *BitwardenBackend) Lock(ctx context.Context) error {
	if _, err := runCLI(ctx, "bw", []string{"lock"}, nil, nil); err != nil {
		return err
	}
	b.ClearSession()
	return nil
}

func (b *BitwardenBackend) getOrCreateFolder(ctx context.Context) (string, error) {
	out, err := b.run(ctx, "list", "folders")
	if err != nil {
		return "", err
	}
	var folders []bitwardenFolder
	if err := json.Unmarshal([]byte(out), &folders); err != nil {
		return "", fmt.Errorf("%w: parsing bw folders: %v", ErrConnectionFailed, err)
	}

	for _, f := range folders {
		if f.Name == b.folderName {
			return f.ID, nil
		}
	}

	payload, _ := json.Marshal(map[string]string{"name": b.folderName})
	encoded := base64.StdEncoding.EncodeToString(payload)

	out, err = b.run(ctx, "create", "folder", encoded)
	if err != nil {
		return "", err
	}
	var folder bitwardenFolder
	if err := json.Unmarshal([]byte(out), &folder); err != nil {
		return "", fmt.Errorf("%w: parsing created folder: %v", ErrStoreFailed, err)
	}
	return folder.ID, nil
}

// findItem locates the entry for a connection. `bw list items --search`
// matches fuzzily, so candidates are filtered to the exact entry name.
func (b *BitwardenBackend) findItem(ctx context.Context, connectionID string) (*bitwardenItem, error) {
	name := entryName(connectionID)
	out, err := b.run(ctx, "list", "items", "--search", name)
	if err != nil {
		return nil, err
	}

	var items []bitwardenItem
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		return nil, fmt.Errorf("%w: parsing bw items: %v", ErrRetrieveFailed, err)
	}

	for i := range items {
		if items[i].Name == name {
			return &items[i], nil
		}
	}
	return nil, nil
}

func (b *BitwardenBackend) itemTemplate(connectionID string, creds *Credentials, folderID string) ([]byte, error) {
	tpl := bitwardenItemTemplate{
		Type:  1, // login
		Name:  entryName(connectionID),
		Notes: creds.Domain,
		Login: bitwardenLoginTemplate{
			Username: creds.Username,
			Password: creds.Password.Expose(),
			URIs: []bitwardenURI{{
				URI:   entryURI(connectionID),
				Match: 3, // exact
			}},
		},
		FolderID: folderID,
	}
	payload, err := json.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("%w: serializing item: %v", ErrStoreFailed, err)
	}
	return payload, nil
}

// Store writes or overwrites the entry for a connection. The payload is
// the base64-encoded JSON document the bw CLI expects; an existing
// entry is edited in place so repeated stores never create duplicates.
func (b *BitwardenBackend) Store(ctx context.Context, connectionID string, creds *Credentials) error {
	if !b.IsUnlocked(ctx) {
		return fmt.Errorf("%w: bitwarden vault is locked, unlock with 'bw unlock'", ErrBackendUnavailable)
	}

	folderID, err := b.getOrCreateFolder(ctx)
	if err != nil {
		return err
	}

	payload, err := b.itemTemplate(connectionID, creds, folderID)
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(payload)

	existing, err := b.findItem(ctx, connectionID)
	if err != nil {
		return err
	}
	if existing != nil {
		_, err = b.run(ctx, "edit", "item", existing.ID, encoded)
	} else {
		_, err = b.run(ctx, "create", "item", encoded)
	}
	return err
}

// Retrieve fetches the entry for a connection, or (nil, nil) when absent.
func (b *BitwardenBackend) Retrieve(ctx context.Context, connectionID string) (*Credentials, error) {
	if !b.IsUnlocked(ctx) {
		return nil, fmt.Errorf("%w: bitwarden vault is locked, unlock with 'bw unlock'", ErrBackendUnavailable)
	}

	item, err := b.findItem(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.Login == nil {
		return nil, nil
	}

	return &Credentials{
		Username: item.Login.Username,
		Password: Secret(item.Login.Password),
		Domain:   item.Notes,
	}, nil
}

// Delete removes the entry for a connection. Absent entries succeed.
func (b *BitwardenBackend) Delete(ctx context.Context, connectionID string) error {
	if !b.IsUnlocked(ctx) {
		return fmt.Errorf("%w: bitwarden vault is locked, unlock with 'bw unlock'", ErrBackendUnavailable)
	}

	item, err := b.findItem(ctx, connectionID)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}

	_, err = b.run(ctx, "delete", "item", item.ID)
	return err
}

// Available reports whether bw is installed and the vault is unlocked.
// A locked vault counts as unavailable even when the CLI is present.
// Probes spawn processes and are throttled.
func (b *BitwardenBackend) Available(ctx context.Context) bool {
	return b.probe.check(func() bool {
		if !binaryInstalled(ctx, "bw", "--version") {
			return false
		}
		status, err := b.Status(ctx)
		return err == nil && status.Status == "unlocked"
	})
}

// ID implements Backend.
func (b *BitwardenBackend) ID() string { return "bitwarden" }

// DisplayName implements Backend.
func (b *BitwardenBackend) DisplayName() string { return "Bitwarden" }

// BitwardenVersion returns the installed bw CLI version, if any.
func BitwardenVersion(ctx context.Context) (string, bool) {
	out, err := runCLI(ctx, "bw", []string{"--version"}, nil, nil)
	if err != nil {
		return "", false
	}
	return out, true
}
