package secret

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PassBackend stores credentials through the standard Unix password
// manager `pass` (passwordstore.org). Each credential field lives in
// its own GPG-encrypted entry under connvault/<connection_id>/<field>,
// which keeps entries greppable and diff-friendly in git-backed stores.
type PassBackend struct {
	// storeDir overrides the password store location via
	// PASSWORD_STORE_DIR; empty means the pass default
	// (~/.password-store).
	storeDir string
	probe    *probeGate
}

// passFields are the per-connection entry names, in store order.
var passFields = []string{"username", "password", "key_passphrase", "domain"}

// NewPassBackend creates a pass backend. storeDir may be empty to use
// the default store.
func NewPassBackend(storeDir string) *PassBackend {
	return &PassBackend{
		storeDir: storeDir,
		probe:    newProbeGate(probeInterval),
	}
}

func (p *PassBackend) env() []string {
	if p.storeDir == "" {
		return nil
	}
	return []string{"PASSWORD_STORE_DIR=" + p.storeDir}
}

func (p *PassBackend) entryPath(connectionID, field string) string {
	return "connvault/" + connectionID + "/" + field
}

// storeValue writes one field. The value travels over stdin to
// `pass insert --multiline`; --force overwrites without prompting.
func (p *PassBackend) storeValue(ctx context.Context, connectionID, field, value string) error {
	path := p.entryPath(connectionID, field)
	_, err := runCLI(ctx, "pass",
		[]string{"insert", "--force", "--multiline", path},
		p.env(), []byte(value+"\n"))
	if err != nil {
		return fmt.Errorf("%w: pass insert %s: %v", ErrStoreFailed, field, err)
	}
	return nil
}

// retrieveValue reads one field; the value is the first line of the
// entry. A failed show means the entry is absent, not an error.
func (p *PassBackend) retrieveValue(ctx context.Context, connectionID, field string) string {
	out, err := runCLI(ctx, "pass", []string{"show", p.entryPath(connectionID, field)}, p.env(), nil)
	if err != nil {
		return ""
	}
	value, _, _ := strings.Cut(out, "\n")
	return strings.TrimSpace(value)
}

func (p *PassBackend) deleteValue(ctx context.Context, connectionID, field string) error {
	_, err := runCLI(ctx, "pass", []string{"rm", "--force", p.entryPath(connectionID, field)}, p.env(), nil)
	if err != nil && !strings.Contains(err.Error(), "is not in the password store") {
		return err
	}
	return nil
}

// cleanupDirs removes the per-connection directory (and the app root)
// once empty. os.Remove refuses non-empty directories, which is exactly
// the behavior wanted here.
func (p *PassBackend) cleanupDirs(connectionID string) {
	storeDir := p.storeDir
	if storeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		storeDir = filepath.Join(home, ".password-store")
	}
	_ = os.Remove(filepath.Join(storeDir, "connvault", connectionID))
	_ = os.Remove(filepath.Join(storeDir, "connvault"))
}

// Store writes each present credential field as its own pass entry.
func (p *PassBackend) Store(ctx context.Context, connectionID string, creds *Credentials) error {
	if creds.Username != "" {
		if err := p.storeValue(ctx, connectionID, "username", creds.Username); err != nil {
			return err
		}
	}
	if creds.Password != "" {
		if err := p.storeValue(ctx, connectionID, "password", creds.Password.Expose()); err != nil {
			return err
		}
	}
	if creds.KeyPassphrase != "" {
		if err := p.storeValue(ctx, connectionID, "key_passphrase", creds.KeyPassphrase.Expose()); err != nil {
			return err
		}
	}
	if creds.Domain != "" {
		if err := p.storeValue(ctx, connectionID, "domain", creds.Domain); err != nil {
			return err
		}
	}
	return nil
}

// Retrieve reassembles credentials from the per-field entries, or
// returns (nil, nil) when no field exists for the connection.
func (p *PassBackend) Retrieve(ctx context.Context, connectionID string) (*Credentials, error) {
	creds := &Credentials{
		Username:      p.retrieveValue(ctx, connectionID, "username"),
		Password:      Secret(p.retrieveValue(ctx, connectionID, "password")),
		KeyPassphrase: Secret(p.retrieveValue(ctx, connectionID, "key_passphrase")),
		Domain:        p.retrieveValue(ctx, connectionID, "domain"),
	}
	if creds.IsEmpty() {
		return nil, nil
	}
	return creds, nil
}

// Delete removes every field entry for the connection and prunes the
// emptied directories. Absent fields are not errors.
func (p *PassBackend) Delete(ctx context.Context, connectionID string) error {
	for _, field := range passFields {
		_ = p.deleteValue(ctx, connectionID, field)
	}
	p.cleanupDirs(connectionID)
	return nil
}

// Available reports whether the pass binary answers its version probe.
func (p *PassBackend) Available(ctx context.Context) bool {
	return p.probe.check(func() bool {
		return binaryInstalled(ctx, "pass", "--version")
	})
}

// ID implements Backend.
func (p *PassBackend) ID() string { return "pass" }

// DisplayName implements Backend.
func (p *PassBackend) DisplayName() string { return "Pass (Unix Password Manager)" }
