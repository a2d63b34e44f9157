package cli

import (
	"os"

	"golang.org/x/term"
)

// Globals holds global flags available to all commands
type Globals struct {
	Output      string `help:"Output format" default:"auto" enum:"json,plain,rich,auto" short:"o" env:"CONNVAULT_OUTPUT"`
	Verbose     bool   `help:"Verbose output" short:"v" env:"CONNVAULT_VERBOSE"`
	ResultsOnly bool   `help:"Strip JSON envelope, return data array only" env:"CONNVAULT_RESULTS_ONLY"`
	NoInput     bool   `help:"Disable interactive prompts (fail instead)" env:"CONNVAULT_NO_INPUT"`
	Force       bool   `help:"Skip confirmation prompts for destructive operations" env:"CONNVAULT_FORCE"`
	NoCache     bool   `help:"Disable the in-memory credential cache" env:"CONNVAULT_NO_CACHE"`
}

// ResolvedOutput returns the effective output mode
// "auto" detects TTY: if stdout is TTY -> rich, else -> plain
func (g *Globals) ResolvedOutput() string {
	if g.Output != "auto" {
		return g.Output
	}

	// Detect if stdout is a TTY
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "rich"
	}

	return "plain"
}
