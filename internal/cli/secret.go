package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/connvault/connvault/internal/output"
	"github.com/connvault/connvault/internal/secret"
)

// parseConnectionIDs validates the given connection IDs as UUIDs.
func parseConnectionIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, &output.CLIError{
				Message:  fmt.Sprintf("Invalid connection ID %q: %v", r, err),
				ExitCode: output.ExitUsage,
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readSecret obtains a secret value without ever touching argv: from
// stdin when requested (piped input, automation), otherwise via a
// no-echo terminal prompt.
func readSecret(prompt string, fromStdin bool, globals *Globals) (secret.Secret, error) {
	if fromStdin {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", &output.CLIError{
				Message:  fmt.Sprintf("Failed to read secret from stdin: %v", err),
				ExitCode: output.ExitUsage,
			}
		}
		return secret.Secret(strings.TrimRight(line, "\r\n")), nil
	}

	if globals.NoInput {
		return "", &output.CLIError{
			Message:  "Interactive prompt disabled (--no-input); pass the secret via stdin",
			ExitCode: output.ExitUsage,
			Hint:     "Pipe the value and add --password-stdin",
		}
	}

	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", &output.CLIError{
			Message:  fmt.Sprintf("Failed to read secret: %v", err),
			ExitCode: output.ExitGeneral,
		}
	}
	return secret.Secret(raw), nil
}

// confirm asks for confirmation on destructive operations unless --force.
func confirm(question string, globals *Globals) error {
	if globals.Force {
		return nil
	}
	if globals.NoInput {
		return &output.CLIError{
			Message:  "Confirmation required but prompts are disabled (--no-input)",
			ExitCode: output.ExitUsage,
			Hint:     "Add --force to skip confirmation",
		}
	}

	fmt.Fprintf(os.Stderr, "%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer != "y" && answer != "yes" {
		return &output.CLIError{
			Message:  "Aborted",
			ExitCode: output.ExitGeneral,
		}
	}
	return nil
}

// printBulkResult reports a bulk outcome and maps failures to an error.
func printBulkResult(op string, result *secret.BulkOperationResult, fp *FormatterProvider) error {
	if result.IsSuccess() {
		fmt.Fprintf(os.Stderr, "%s: %d succeeded\n", op, result.SuccessCount)
		return nil
	}

	for i, id := range result.FailedIDs {
		fp.Formatter.PrintError(fmt.Errorf("%s failed for %s: %s", op, id, result.Errors[i]))
	}
	return &output.CLIError{
		Message:  fmt.Sprintf("%s: %d succeeded, %d failed", op, result.SuccessCount, result.FailureCount),
		ExitCode: output.ExitStoreError,
	}
}

// SecretSetCmd stores credentials for a connection
type SecretSetCmd struct {
	ID            string `arg:"" help:"Connection ID (UUID)"`
	Username      string `help:"Username to store" short:"u"`
	Domain        string `help:"Domain to store" short:"d"`
	PasswordStdin bool   `help:"Read the password from stdin instead of prompting"`
	NoPassword    bool   `help:"Store without a password"`
}

// Run executes the set command
func (cmd *SecretSetCmd) Run(bp *BackendProvider, fp *FormatterProvider, globals *Globals) error {
	ids, err := parseConnectionIDs([]string{cmd.ID})
	if err != nil {
		return err
	}

	creds := &secret.Credentials{
		Username: cmd.Username,
		Domain:   cmd.Domain,
	}
	if !cmd.NoPassword {
		password, err := readSecret("Password: ", cmd.PasswordStdin, globals)
		if err != nil {
			return err
		}
		creds.Password = password
	}

	if err := bp.Manager().Store(context.Background(), ids[0].String(), creds); err != nil {
		return output.FromSecretError(err)
	}
	fmt.Fprintf(os.Stderr, "Stored credentials for %s\n", ids[0])
	return nil
}

// SecretGetCmd shows credentials for a connection
type SecretGetCmd struct {
	ID           string `arg:"" help:"Connection ID (UUID)"`
	ShowPassword bool   `help:"Print the password instead of a redaction marker"`
}

// Run executes the get command
func (cmd *SecretGetCmd) Run(bp *BackendProvider, fp *FormatterProvider) error {
	ids, err := parseConnectionIDs([]string{cmd.ID})
	if err != nil {
		return err
	}

	creds, err := bp.Manager().Retrieve(context.Background(), ids[0].String())
	if err != nil {
		return output.FromSecretError(err)
	}
	if creds == nil {
		return &output.CLIError{
			Message:  fmt.Sprintf("No credentials stored for %s", ids[0]),
			ExitCode: output.ExitNotFound,
		}
	}

	password := "[REDACTED]"
	if cmd.ShowPassword {
		password = creds.Password.Expose()
	} else if !creds.HasPassword() {
		password = ""
	}

	type credentialView struct {
		Username string
		Password string
		Domain   string
	}
	return fp.Formatter.Print(credentialView{
		Username: creds.Username,
		Password: password,
		Domain:   creds.Domain,
	})
}

// SecretUpdateCmd applies the same partial update to multiple connections
type SecretUpdateCmd struct {
	IDs           []string `arg:"" help:"Connection IDs (UUIDs)"`
	Username      string   `help:"New username" short:"u"`
	Domain        string   `help:"New domain" short:"d"`
	Password      bool     `help:"Prompt for a new password"`
	PasswordStdin bool     `help:"Read the new password from stdin"`
	ClearPassword bool     `help:"Remove the stored password"`
}

// Run executes the update command
func (cmd *SecretUpdateCmd) Run(bp *BackendProvider, fp *FormatterProvider, globals *Globals) error {
	ids, err := parseConnectionIDs(cmd.IDs)
	if err != nil {
		return err
	}

	update := secret.CredentialUpdate{}
	if cmd.Username != "" {
		update = update.WithUsername(cmd.Username)
	}
	if cmd.Domain != "" {
		update = update.WithDomain(cmd.Domain)
	}
	if cmd.ClearPassword {
		update = update.WithClearPassword()
	} else if cmd.Password || cmd.PasswordStdin {
		password, err := readSecret("New password: ", cmd.PasswordStdin, globals)
		if err != nil {
			return err
		}
		update = update.WithPassword(password.Expose())
	}

	result := bp.Manager().UpdateBulk(context.Background(), ids, update)
	return printBulkResult("update", result, fp)
}

// SecretDeleteCmd deletes credentials for one or more connections
type SecretDeleteCmd struct {
	IDs []string `arg:"" help:"Connection IDs (UUIDs)"`
}

// Run executes the delete command
func (cmd *SecretDeleteCmd) Run(bp *BackendProvider, fp *FormatterProvider, globals *Globals) error {
	ids, err := parseConnectionIDs(cmd.IDs)
	if err != nil {
		return err
	}

	if err := confirm(fmt.Sprintf("Delete credentials for %d connection(s)?", len(ids)), globals); err != nil {
		return err
	}

	result := bp.Manager().DeleteBulk(context.Background(), ids)
	return printBulkResult("delete", result, fp)
}

// SecretCopyCmd copies credentials from one connection to others
type SecretCopyCmd struct {
	Source  string   `arg:"" help:"Source connection ID (UUID)"`
	Targets []string `arg:"" help:"Target connection IDs (UUIDs)"`
}

// Run executes the copy command
func (cmd *SecretCopyCmd) Run(bp *BackendProvider, fp *FormatterProvider) error {
	source, err := parseConnectionIDs([]string{cmd.Source})
	if err != nil {
		return err
	}
	targets, err := parseConnectionIDs(cmd.Targets)
	if err != nil {
		return err
	}

	result, err := bp.Manager().CopyCredentials(context.Background(), source[0], targets)
	if err != nil {
		return output.FromSecretError(err)
	}
	return printBulkResult("copy", result, fp)
}

// SecretListCmd lists which of the given connections have credentials
type SecretListCmd struct {
	IDs []string `arg:"" help:"Connection IDs (UUIDs) to check"`
}

// Run executes the list command
func (cmd *SecretListCmd) Run(bp *BackendProvider, fp *FormatterProvider) error {
	ids, err := parseConnectionIDs(cmd.IDs)
	if err != nil {
		return err
	}

	withCreds := bp.Manager().ConnectionsWithCredentials(context.Background(), ids)
	stored := make(map[uuid.UUID]bool, len(withCreds))
	for _, id := range withCreds {
		stored[id] = true
	}

	type listItem struct {
		ID     string
		Stored string
	}
	items := make([]listItem, len(ids))
	for i, id := range ids {
		status := "no"
		if stored[id] {
			status = "yes"
		}
		items[i] = listItem{ID: id.String(), Stored: status}
	}

	columns := []output.Column{
		{Name: "Connection", Key: "ID"},
		{Name: "Credentials", Key: "Stored"},
	}
	return fp.Formatter.PrintList(items, columns)
}
