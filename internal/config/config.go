package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Config holds the CLI configuration
type Config struct {
	// Backends lists secret backend IDs in priority order. Empty means
	// the built-in default order.
	Backends []string `json:"backends,omitempty"`

	// CacheDisabled turns off the in-memory session cache. The zero
	// value keeps caching on.
	CacheDisabled bool `json:"cache_disabled,omitempty"`

	BitwardenServer    string `json:"bitwarden_server,omitempty"`
	OnePasswordVault   string `json:"onepassword_vault,omitempty"`
	OnePasswordAccount string `json:"onepassword_account,omitempty"`
	PassStoreDir       string `json:"pass_store_dir,omitempty"`
	PassboltServer     string `json:"passbolt_server,omitempty"`
	DefaultOutput      string `json:"default_output,omitempty"`
}

// Load reads config from XDG path, returns defaults if file doesn't exist
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json5.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to the XDG config path
func (c *Config) Save() error {
	path := ConfigPath()

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to JSON (not JSON5 for writing - JSON is valid JSON5)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Keys returns the settable config keys, in display order.
func Keys() []string {
	return []string{
		"backends",
		"cache_disabled",
		"bitwarden_server",
		"onepassword_vault",
		"onepassword_account",
		"pass_store_dir",
		"passbolt_server",
		"default_output",
	}
}

// Get retrieves a config value by key name
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "backends":
		return strings.Join(c.Backends, ","), nil
	case "cache_disabled":
		return strconv.FormatBool(c.CacheDisabled), nil
	case "bitwarden_server":
		return c.BitwardenServer, nil
	case "onepassword_vault":
		return c.OnePasswordVault, nil
	case "onepassword_account":
		return c.OnePasswordAccount, nil
	case "pass_store_dir":
		return c.PassStoreDir, nil
	case "passbolt_server":
		return c.PassboltServer, nil
	case "default_output":
		return c.DefaultOutput, nil
	}
	return "", fmt.Errorf("unknown config key: %s", key)
}

// Set sets a config value by key name and saves. Backends take a
// comma-separated list; cache_disabled takes true/false.
func (c *Config) Set(key, value string) error {
	switch key {
	case "backends":
		c.Backends = splitList(value)
	case "cache_disabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for cache_disabled: %q", value)
		}
		c.CacheDisabled = b
	case "bitwarden_server":
		c.BitwardenServer = value
	case "onepassword_vault":
		c.OnePasswordVault = value
	case "onepassword_account":
		c.OnePasswordAccount = value
	case "pass_store_dir":
		c.PassStoreDir = value
	case "passbolt_server":
		c.PassboltServer = value
	case "default_output":
		c.DefaultOutput = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return c.Save()
}

// Unset resets a config value to its zero value and saves
func (c *Config) Unset(key string) error {
	switch key {
	case "backends":
		c.Backends = nil
	case "cache_disabled":
		c.CacheDisabled = false
	case "bitwarden_server":
		c.BitwardenServer = ""
	case "onepassword_vault":
		c.OnePasswordVault = ""
	case "onepassword_account":
		c.OnePasswordAccount = ""
	case "pass_store_dir":
		c.PassStoreDir = ""
	case "passbolt_server":
		c.PassboltServer = ""
	case "default_output":
		c.DefaultOutput = ""
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return c.Save()
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
