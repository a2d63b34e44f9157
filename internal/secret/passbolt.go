package secret

import (
	"context"
	"encoding/json"
	"fmt"
)

// PassboltBackend stores credentials through the Passbolt CLI
// (go-passbolt-cli). Passbolt is a team password manager with a
// server-side vault; the CLI must be set up once with
// `passbolt configure` before this backend can reach it.
//
// Entries are Passbolt resources named per entryName. The password is
// piped to the CLI over stdin; argv carries only the resource name,
// username, and IDs.
type PassboltBackend struct {
	serverAddress string
	probe         *probeGate
}

// passboltResource is a row of `passbolt list resource`.
type passboltResource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// passboltResourceDetail is the full document from `passbolt get
// resource`, including the decrypted secret.
type passboltResourceDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewPassboltBackend creates a Passbolt backend using the server from
// the CLI's own configuration.
func NewPassboltBackend() *PassboltBackend {
	return &PassboltBackend{probe: newProbeGate(probeInterval)}
}

// WithServerAddress overrides the configured server address.
func (p *PassboltBackend) WithServerAddress(address string) *PassboltBackend {
	p.serverAddress = address
	return p
}

func (p *PassboltBackend) run(ctx context.Context, stdin []byte, args ...string) (string, error) {
	if p.serverAddress != "" {
		args = append(args, "--serverAddress", p.serverAddress)
	}
	args = append(args, "--json")
	return runCLI(ctx, "passbolt", args, nil, stdin)
}

// IsConfigured reports whether the CLI has a working configuration.
// Listing users doubles as a connectivity check.
func (p *PassboltBackend) IsConfigured(ctx context.Context) bool {
	_, err := p.run(ctx, nil, "list", "user")
	return err == nil
}

// findResource locates the resource for a connection by exact name.
// A failed listing means no resources, not an error.
func (p *PassboltBackend) findResource(ctx context.Context, connectionID string) (*passboltResource, error) {
	name := entryName(connectionID)

	out, err := p.run(ctx, nil, "list", "resource")
	if err != nil {
		return nil, nil
	}

	var resources []passboltResource
	if err := json.Unmarshal([]byte(out), &resources); err != nil {
		return nil, nil
	}

	for i := range resources {
		if resources[i].Name == name {
			return &resources[i], nil
		}
	}
	return nil, nil
}

func (p *PassboltBackend) getResourceDetail(ctx context.Context, resourceID string) (*passboltResourceDetail, error) {
	out, err := p.run(ctx, nil, "get", "resource", "--id", resourceID)
	if err != nil {
		return nil, err
	}
	var detail passboltResourceDetail
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		return nil, fmt.Errorf("%w: parsing passbolt resource: %v", ErrRetrieveFailed, err)
	}
	return &detail, nil
}

// writeArgs builds the create/update argument list. The password is
// requested from stdin with `--password -` so it never enters argv.
func (p *PassboltBackend) writeArgs(base []string, creds *Credentials) ([]string, []byte) {
	args := base
	if creds.Username != "" {
		args = append(args, "--username", creds.Username)
	}
	var stdin []byte
	if creds.Password != "" {
		args = append(args, "--password", "-")
		stdin = []byte(creds.Password.Expose() + "\n")
	}
	return args, stdin
}

// Store writes or overwrites the resource for a connection. Existing
// resources are updated in place so repeated stores never create
// duplicates.
func (p *PassboltBackend) Store(ctx context.Context, connectionID string, creds *Credentials) error {
	if !p.IsConfigured(ctx) {
		return fmt.Errorf("%w: passbolt CLI not configured, run 'passbolt configure' first", ErrBackendUnavailable)
	}

	existing, err := p.findResource(ctx, connectionID)
	if err != nil {
		return err
	}

	var args []string
	var stdin []byte
	if existing != nil {
		args, stdin = p.writeArgs([]string{"update", "resource", "--id", existing.ID}, creds)
	} else {
		args, stdin = p.writeArgs([]string{"create", "resource", "--name", entryName(connectionID)}, creds)
	}

	if _, err := p.run(ctx, stdin, args...); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	return nil
}

// Retrieve fetches the resource for a connection, or (nil, nil) when
// absent. Passbolt resources carry username and password only.
func (p *PassboltBackend) Retrieve(ctx context.Context, connectionID string) (*Credentials, error) {
	if !p.IsConfigured(ctx) {
		return nil, fmt.Errorf("%w: passbolt CLI not configured, run 'passbolt configure' first", ErrBackendUnavailable)
	}

	resource, err := p.findResource(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, nil
	}

	detail, err := p.getResourceDetail(ctx, resource.ID)
	if err != nil {
		return nil, err
	}

	return &Credentials{
		Username: detail.Username,
		Password: Secret(detail.Password),
	}, nil
}

// Delete removes the resource for a connection. Absent resources succeed.
func (p *PassboltBackend) Delete(ctx context.Context, connectionID string) error {
	if !p.IsConfigured(ctx) {
		return fmt.Errorf("%w: passbolt CLI not configured, run 'passbolt configure' first", ErrBackendUnavailable)
	}

	resource, err := p.findResource(ctx, connectionID)
	if err != nil {
		return err
	}
	if resource == nil {
		return nil
	}

	_, err = p.run(ctx, nil, "delete", "resource", "--id", resource.ID)
	return err
}

// Available reports whether the passbolt CLI is installed and
// configured. Probes spawn processes and are throttled.
func (p *PassboltBackend) Available(ctx context.Context) bool {
	return p.probe.check(func() bool {
		if !binaryInstalled(ctx, "passbolt", "--version") {
			return false
		}
		return p.IsConfigured(ctx)
	})
}

// ID implements Backend.
func (p *PassboltBackend) ID() string { return "passbolt" }

// DisplayName implements Backend.
func (p *PassboltBackend) DisplayName() string { return "Passbolt" }

// PassboltVersion returns the installed passbolt CLI version, if any.
func PassboltVersion(ctx context.Context) (string, bool) {
	out, err := runCLI(ctx, "passbolt", []string{"--version"}, nil, nil)
	if err != nil {
		return "", false
	}
	return out, true
}
