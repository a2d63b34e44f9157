package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/connvault/connvault/internal/output"
)

// BackendsStatusCmd shows backend availability
type BackendsStatusCmd struct{}

// Run executes the status command
func (cmd *BackendsStatusCmd) Run(bp *BackendProvider, fp *FormatterProvider) error {
	ctx := context.Background()
	manager := bp.Manager()

	type backendStatus struct {
		ID        string
		Name      string
		Available string
	}

	backends := manager.Backends()
	items := make([]backendStatus, len(backends))
	for i, b := range backends {
		available := "no"
		if b.Available(ctx) {
			available = "yes"
		}
		items[i] = backendStatus{
			ID:        b.ID(),
			Name:      b.DisplayName(),
			Available: available,
		}
	}

	columns := []output.Column{
		{Name: "Backend", Key: "ID"},
		{Name: "Name", Key: "Name"},
		{Name: "Available", Key: "Available"},
	}
	return fp.Formatter.PrintList(items, columns)
}

// BackendsUnlockCmd unlocks the Bitwarden vault
type BackendsUnlockCmd struct {
	PasswordStdin bool `help:"Read the master password from stdin instead of prompting"`
}

// Run executes the unlock command
func (cmd *BackendsUnlockCmd) Run(bp *BackendProvider, fp *FormatterProvider, globals *Globals) error {
	bw, ok := bp.Bitwarden()
	if !ok {
		return &output.CLIError{
			Message:  "Bitwarden backend is not configured",
			ExitCode: output.ExitConfigError,
			Hint:     "Add it with: connvault config set backends keyring,bitwarden",
		}
	}

	master, err := readSecret("Master password: ", cmd.PasswordStdin, globals)
	if err != nil {
		return err
	}

	ctx := context.Background()
	sessionKey, err := bw.Unlock(ctx, master)
	if err != nil {
		return output.FromSecretError(err)
	}

	// Best-effort sync so the freshly unlocked vault is current.
	_ = bw.Sync(ctx)

	// The session key goes to stdout for eval/export use; everything
	// else stays on stderr.
	fmt.Fprintln(os.Stderr, "Vault unlocked. Export the session key for subsequent commands:")
	fmt.Println(sessionKey.Expose())
	return nil
}

// BackendsLockCmd locks the Bitwarden vault
type BackendsLockCmd struct{}

// Run executes the lock command
func (cmd *BackendsLockCmd) Run(bp *BackendProvider, fp *FormatterProvider) error {
	bw, ok := bp.Bitwarden()
	if !ok {
		return &output.CLIError{
			Message:  "Bitwarden backend is not configured",
			ExitCode: output.ExitConfigError,
		}
	}

	if err := bw.Lock(context.Background()); err != nil {
		return output.FromSecretError(err)
	}
	fmt.Fprintln(os.Stderr, "Vault locked")
	return nil
}

// BackendsSyncCmd syncs the Bitwarden vault
type BackendsSyncCmd struct{}

// Run executes the sync command
func (cmd *BackendsSyncCmd) Run(bp *BackendProvider, fp *FormatterProvider) error {
	bw, ok := bp.Bitwarden()
	if !ok {
		return &output.CLIError{
			Message:  "Bitwarden backend is not configured",
			ExitCode: output.ExitConfigError,
		}
	}

	if err := bw.Sync(context.Background()); err != nil {
		return output.FromSecretError(err)
	}
	fmt.Fprintln(os.Stderr, "Vault synced")
	return nil
}
