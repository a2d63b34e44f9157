package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

// ConfigDir returns the XDG-compliant config directory for connvault
// Typically ~/.config/connvault/ on Linux
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "connvault")
}

// ConfigPath returns the full path to the config file
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json5")
}

// CacheDir returns the XDG-compliant cache directory for connvault
// Typically ~/.cache/connvault/ on Linux
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "connvault")
}

// DataDir returns the XDG-compliant data directory for connvault
// Typically ~/.local/share/connvault/ on Linux (keyring file store,
// verification ledger)
func DataDir() string {
	return filepath.Join(xdg.DataHome, "connvault")
}
