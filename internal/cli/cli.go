package cli

import (
	"github.com/alecthomas/kong"
	"github.com/willabides/kongplete"

	"github.com/connvault/connvault/internal/config"
	"github.com/connvault/connvault/internal/output"
)

// FormatterProvider wraps the formatter interface for Kong binding
type FormatterProvider struct {
	Formatter output.Formatter
}

// CLI is the root command structure
type CLI struct {
	Globals

	Secret   SecretCmd   `cmd:"" help:"Manage stored connection credentials"`
	Backends BackendsCmd `cmd:"" help:"Inspect and control secret backends"`
	Verify   VerifyCmd   `cmd:"" help:"Manage the credential verification ledger"`
	Config   ConfigCmd   `cmd:"" help:"Configuration commands"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`

	InstallCompletions kongplete.InstallCompletions `cmd:"" help:"Install shell completions"`
}

// BeforeApply hook runs before any command execution
// It loads config, creates the formatter and backend provider, and binds them
func (c *CLI) BeforeApply(ctx *kong.Context) error {
	// Load config from XDG path (returns defaults if missing)
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Output precedence: CLI flag > config > auto
	if c.Output == "auto" && cfg.DefaultOutput != "" {
		c.Output = cfg.DefaultOutput
	}

	// --results-only only means something for JSON output
	formatter := &FormatterProvider{}
	if mode := c.ResolvedOutput(); mode == "json" {
		formatter.Formatter = output.NewJSON(c.ResultsOnly)
	} else {
		formatter.Formatter = output.New(mode)
	}

	provider := NewBackendProvider(cfg, &c.Globals)

	ctx.Bind(cfg)
	ctx.Bind(formatter)
	ctx.Bind(provider)
	ctx.Bind(&c.Globals)

	return nil
}

// SecretCmd holds credential subcommands
type SecretCmd struct {
	Set    SecretSetCmd    `cmd:"" help:"Store credentials for a connection"`
	Get    SecretGetCmd    `cmd:"" help:"Show credentials for a connection"`
	Update SecretUpdateCmd `cmd:"" help:"Apply a partial credential update to one or more connections"`
	Delete SecretDeleteCmd `cmd:"" help:"Delete credentials for one or more connections"`
	Copy   SecretCopyCmd   `cmd:"" help:"Copy credentials from one connection to others"`
	List   SecretListCmd   `cmd:"" help:"List which of the given connections have stored credentials"`
}

// BackendsCmd holds backend subcommands
type BackendsCmd struct {
	Status BackendsStatusCmd `cmd:"" default:"1" help:"Show backend availability"`
	Unlock BackendsUnlockCmd `cmd:"" help:"Unlock the Bitwarden vault"`
	Lock   BackendsLockCmd   `cmd:"" help:"Lock the Bitwarden vault"`
	Sync   BackendsSyncCmd   `cmd:"" help:"Sync the Bitwarden vault"`
}

// VerifyCmd holds verification-ledger subcommands
type VerifyCmd struct {
	List  VerifyListCmd  `cmd:"" default:"1" help:"List verification status per connection"`
	Clear VerifyClearCmd `cmd:"" help:"Clear the verification ledger"`
}

// ConfigCmd holds configuration subcommands
type ConfigCmd struct {
	Get   ConfigGetCmd        `cmd:"" help:"Get a configuration value"`
	Set   ConfigSetCmd        `cmd:"" help:"Set a configuration value"`
	Unset ConfigUnsetCmd      `cmd:"" help:"Remove a configuration value"`
	List  ConfigListConfigCmd `cmd:"" name:"list" help:"List all configuration values"`
	Path  ConfigPathCmd       `cmd:"" help:"Show config file path"`
}

// VersionCmd shows version information
type VersionCmd struct{}

func (cmd *VersionCmd) Run(ctx *kong.Context) error {
	version := ctx.Model.Vars()["version"]
	println("connvault version " + version)
	return nil
}
