package secret

import (
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// DefaultBackendOrder is the fallback priority used when the
// configuration names none.
var DefaultBackendOrder = []string{"keyring", "bitwarden", "onepassword", "pass"}

// KnownBackends lists every backend ID BuildChain understands. Passbolt
// is opt-in: its CLI needs a one-time `passbolt configure`, so it joins
// the chain only when the configuration names it.
var KnownBackends = []string{"keyring", "bitwarden", "onepassword", "pass", "passbolt"}

// ChainOptions carries the configuration needed to instantiate backends.
// It mirrors the secrets section of the config file without importing it,
// so this package stays free of config concerns.
type ChainOptions struct {
	// BackendOrder lists backend IDs in priority order; unknown IDs are
	// skipped with a warning. Empty means DefaultBackendOrder.
	BackendOrder []string

	// CacheEnabled toggles the in-memory session cache.
	CacheEnabled bool

	// BitwardenServerURL points bw at a self-hosted server; empty means
	// the official cloud.
	BitwardenServerURL string

	// OnePasswordVault is the vault items are kept in; empty means the
	// backend default.
	OnePasswordVault string

	// OnePasswordAccount selects among multiple op accounts.
	OnePasswordAccount string

	// PassStoreDir overrides the pass store location.
	PassStoreDir string

	// PassboltServer overrides the server address from the passbolt
	// CLI's own configuration.
	PassboltServer string
}

// DefaultChainOptions returns options matching a fresh config.
func DefaultChainOptions() ChainOptions {
	return ChainOptions{
		BackendOrder: DefaultBackendOrder,
		CacheEnabled: true,
	}
}

// BuildChain constructs a Manager with backends in the configured
// priority order. Backends that cannot even be constructed (keyring on
// a headless box with no usable file store) are skipped, not fatal; the
// Manager's availability checks handle backends that exist but aren't
// reachable right now.
func BuildChain(opts ChainOptions) *Manager {
	order := opts.BackendOrder
	if len(order) == 0 {
		order = DefaultBackendOrder
	}

	manager := NewManager()
	manager.SetCacheEnabled(opts.CacheEnabled)

	for _, id := range order {
		switch id {
		case "keyring":
			if IsWSL() || IsHeadless() {
				slog.Debug("skipping keyring backend in WSL/headless environment")
				continue
			}
			backend, err := NewKeyringBackend()
			if err != nil {
				slog.Warn("keyring backend unavailable", "error", err)
				continue
			}
			manager.AddBackend(backend)
		case "bitwarden":
			backend := NewBitwardenBackend()
			if opts.BitwardenServerURL != "" {
				backend.WithServerURL(opts.BitwardenServerURL)
			}
			manager.AddBackend(backend)
		case "onepassword":
			backend := NewOnePasswordBackend()
			if opts.OnePasswordVault != "" {
				backend.WithVaultName(opts.OnePasswordVault)
			}
			if opts.OnePasswordAccount != "" {
				backend.WithAccount(opts.OnePasswordAccount)
			}
			manager.AddBackend(backend)
		case "pass":
			manager.AddBackend(NewPassBackend(opts.PassStoreDir))
		case "passbolt":
			backend := NewPassboltBackend()
			if opts.PassboltServer != "" {
				backend.WithServerAddress(opts.PassboltServer)
			}
			manager.AddBackend(backend)
		default:
			slog.Warn("unknown secret backend in configuration", "backend", id)
		}
	}

	return manager
}

// IsWSL returns true if running under Windows Subsystem for Linux.
func IsWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}

	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

// IsHeadless returns true if running in a headless environment (no
// display server). Only applicable on Linux; macOS and Windows are
// assumed to have GUI.
func IsHeadless() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	// Check for X11 or Wayland display
	return os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == ""
}
