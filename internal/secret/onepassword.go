package secret

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// OnePasswordBackend stores credentials through the 1Password CLI
// (`op`). Interactive use relies on the desktop-app integration for
// biometric/account-password prompts; automation uses a service-account
// token passed via the OP_SERVICE_ACCOUNT_TOKEN environment variable.
//
// Item payloads carrying secrets are piped to op over stdin; argv never
// contains a password.
type OnePasswordBackend struct {
	serviceAccountToken Secret
	vaultName           string
	account             string
	probe               *probeGate
}

type onePasswordItem struct {
	ID     string             `json:"id"`
	Title  string             `json:"title"`
	Fields []onePasswordField `json:"fields,omitempty"`
}

type onePasswordField struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Value string `json:"value,omitempty"`
}

type onePasswordVault struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type onePasswordItemTemplate struct {
	Title    string                  `json:"title"`
	Category string                  `json:"category"`
	Tags     []string                `json:"tags"`
	Vault    map[string]string       `json:"vault"`
	Fields   []onePasswordFieldInput `json:"fields"`
}

type onePasswordFieldInput struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Purpose string `json:"purpose,omitempty"`
	Value   string `json:"value"`
}

// OnePasswordWhoami is the parsed `op whoami` response.
type OnePasswordWhoami struct {
	URL         string `json:"url"`
	Email       string `json:"email"`
	UserUUID    string `json:"user_uuid"`
	AccountUUID string `json:"account_uuid"`
}

// onePasswordTag marks entries owned by this application so listing can
// be scoped before the exact-title filter.
const onePasswordTag = "connvault"

// NewOnePasswordBackend creates a 1Password backend using the default
// vault name.
func NewOnePasswordBackend() *OnePasswordBackend {
	return &OnePasswordBackend{
		vaultName: entryFolder,
		probe:     newProbeGate(probeInterval),
	}
}

// WithServiceAccount sets a service-account token for automation.
func (o *OnePasswordBackend) WithServiceAccount(token Secret) *OnePasswordBackend {
	o.serviceAccountToken = token
	return o
}

// WithVaultName overrides the vault that holds this app's entries.
func (o *OnePasswordBackend) WithVaultName(name string) *OnePasswordBackend {
	o.vaultName = name
	return o
}

// WithAccount sets the account shorthand for multi-account setups.
func (o *OnePasswordBackend) WithAccount(account string) *OnePasswordBackend {
	o.account = account
	return o
}

// ClearServiceAccount forgets the service-account token.
func (o *OnePasswordBackend) ClearServiceAccount() {
	o.serviceAccountToken = ""
}

func (o *OnePasswordBackend) run(ctx context.Context, stdin []byte, args ...string) (string, error) {
	if o.account != "" {
		args = append(args, "--account", o.account)
	}
	args = append(args, "--format", "json")

	var env []string
	if o.serviceAccountToken != "" {
		env = append(env, "OP_SERVICE_ACCOUNT_TOKEN="+o.serviceAccountToken.Expose())
	}

	return runCLI(ctx, "op", args, env, stdin)
}

// Whoami returns the signed-in account, or an error when signed out.
func (o *OnePasswordBackend) Whoami(ctx context.Context) (*OnePasswordWhoami, error) {
	out, err := o.run(ctx, nil, "whoami")
	if err != nil {
		return nil, err
	}
	var who OnePasswordWhoami
	if err := json.Unmarshal([]byte(out), &who); err != nil {
		return nil, fmt.Errorf("%w: parsing op whoami: %v", ErrConnectionFailed, err)
	}
	return &who, nil
}

// IsSignedIn reports whether an account is signed in.
func (o *OnePasswordBackend) IsSignedIn(ctx context.Context) bool {
	_, err := o.Whoami(ctx)
	return err == nil
}

// Signout signs the current account out.
func (o *OnePasswordBackend) Signout(ctx context.Context) error {
	_, err := o.run(ctx, nil, "signout")
	return err
}

// getOrCreateVault provisions the app vault lazily: reuse an existing
// name match, otherwise create it once.
func (o *OnePasswordBackend) getOrCreateVault(ctx context.Context) (string, error) {
	out, err := o.run(ctx, nil, "vault", "list")
	if err != nil {
		return "", err
	}
	var vaults []onePasswordVault
	if err := json.Unmarshal([]byte(out), &vaults); err != nil {
		return "", fmt.Errorf("%w: parsing op vaults: %v", ErrConnectionFailed, err)
	}

	for _, v := range vaults {
		if v.Name == o.vaultName {
			return v.ID, nil
		}
	}

	out, err = o.run(ctx, nil, "vault", "create", o.vaultName)
	if err != nil {
		return "", err
	}
	var vault onePasswordVault
	if err := json.Unmarshal([]byte(out), &vault); err != nil {
		return "", fmt.Errorf("%w: parsing created vault: %v", ErrStoreFailed, err)
	}
	return vault.ID, nil
}

// findItem locates the entry for a connection by listing tagged items
// and filtering to the exact title.
func (o *OnePasswordBackend) findItem(ctx context.Context, connectionID string) (*onePasswordItem, error) {
	title := entryName(connectionID)

	out, err := o.run(ctx, nil, "item", "list", "--vault", o.vaultName, "--tags", onePasswordTag)
	if err != nil {
		// Vault missing or empty: reachable, item absent.
		return nil, nil
	}

	var items []onePasswordItem
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		return nil, nil
	}

	for _, item := range items {
		if item.Title != title {
			continue
		}
		details, err := o.run(ctx, nil, "item", "get", item.ID, "--vault", o.vaultName)
		if err != nil {
			return nil, err
		}
		var full onePasswordItem
		if err := json.Unmarshal([]byte(details), &full); err != nil {
			return nil, fmt.Errorf("%w: parsing op item: %v", ErrRetrieveFailed, err)
		}
		return &full, nil
	}

	return nil, nil
}

func (o *OnePasswordBackend) itemPayload(connectionID string, creds *Credentials, vaultID string) ([]byte, error) {
	tpl := onePasswordItemTemplate{
		Title:    entryName(connectionID),
		Category: "LOGIN",
		Tags:     []string{onePasswordTag},
		Vault:    map[string]string{"id": vaultID},
		Fields: []onePasswordFieldInput{
			{ID: "username", Type: "STRING", Purpose: "USERNAME", Value: creds.Username},
			{ID: "password", Type: "CONCEALED", Purpose: "PASSWORD", Value: creds.Password.Expose()},
		},
	}
	payload, err := json.Marshal(tpl)
	if err != nil {
		return nil, fmt.Errorf("%w: serializing item: %v", ErrStoreFailed, err)
	}
	return payload, nil
}

// Store writes or overwrites the entry for a connection. Existing
// entries are edited in place so repeated stores never create
// duplicates. The item JSON goes over stdin (`op item create/edit -`).
func (o *OnePasswordBackend) Store(ctx context.Context, connectionID string, creds *Credentials) error {
	if !o.IsSignedIn(ctx) {
		return fmt.Errorf("%w: not signed in to 1Password, run 'op signin' or enable desktop app integration", ErrBackendUnavailable)
	}

	vaultID, err := o.getOrCreateVault(ctx)
	if err != nil {
		return err
	}

	payload, err := o.itemPayload(connectionID, creds, vaultID)
	if err != nil {
		return err
	}

	existing, err := o.findItem(ctx, connectionID)
	if err != nil {
		return err
	}
	if existing != nil {
		_, err = o.run(ctx, payload, "item", "edit", existing.ID, "--vault", o.vaultName, "-")
	} else {
		_, err = o.run(ctx, payload, "item", "create", "-")
	}
	return err
}

// Retrieve fetches the entry for a connection, or (nil, nil) when absent.
func (o *OnePasswordBackend) Retrieve(ctx context.Context, connectionID string) (*Credentials, error) {
	if !o.IsSignedIn(ctx) {
		return nil, fmt.Errorf("%w: not signed in to 1Password, run 'op signin' or enable desktop app integration", ErrBackendUnavailable)
	}

	item, err := o.findItem(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	creds := &Credentials{}
	for _, field := range item.Fields {
		switch field.ID {
		case "username":
			creds.Username = field.Value
		case "password":
			creds.Password = Secret(field.Value)
		default:
			// Custom fields carry the purpose in the label.
			switch strings.ToLower(field.Label) {
			case "username":
				creds.Username = field.Value
			case "password":
				creds.Password = Secret(field.Value)
			}
		}
	}

	return creds, nil
}

// Delete removes the entry for a connection. Absent entries succeed.
func (o *OnePasswordBackend) Delete(ctx context.Context, connectionID string) error {
	if !o.IsSignedIn(ctx) {
		return fmt.Errorf("%w: not signed in to 1Password, run 'op signin' or enable desktop app integration", ErrBackendUnavailable)
	}

	item, err := o.findItem(ctx, connectionID)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}

	_, err = o.run(ctx, nil, "item", "delete", item.ID, "--vault", o.vaultName)
	return err
}

// Available reports whether op is installed and an account is signed
// in. Probes spawn processes and are throttled.
func (o *OnePasswordBackend) Available(ctx context.Context) bool {
	return o.probe.check(func() bool {
		if !binaryInstalled(ctx, "op", "--version") {
			return false
		}
		return o.IsSignedIn(ctx)
	})
}

// ID implements Backend.
func (o *OnePasswordBackend) ID() string { return "onepassword" }

// DisplayName implements Backend.
func (o *OnePasswordBackend) DisplayName() string { return "1Password" }

// OnePasswordVersion returns the installed op CLI version, if any.
func OnePasswordVersion(ctx context.Context) (string, bool) {
	out, err := runCLI(ctx, "op", []string{"--version"}, nil, nil)
	if err != nil {
		return "", false
	}
	return out, true
}
