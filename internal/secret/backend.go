package secret

import "context"

// Backend is the capability contract every credential-storage provider
// satisfies. Implementations typically shell out to a password-manager
// CLI, so every method may block on external I/O and takes a context.
type Backend interface {
	// Store writes or overwrites the stored secret for a connection.
	Store(ctx context.Context, connectionID string, creds *Credentials) error

	// Retrieve returns the stored credentials, or (nil, nil) when the
	// backend is reachable but holds no item for this connection.
	Retrieve(ctx context.Context, connectionID string) (*Credentials, error)

	// Delete removes the stored secret. Deleting an absent item succeeds.
	Delete(ctx context.Context, connectionID string) error

	// Available reports whether the provider can serve requests right
	// now: CLI installed and vault authenticated/unlocked. This may
	// itself spawn a process, so it is not guaranteed cheap.
	Available(ctx context.Context) bool

	// ID is the stable machine identity of the backend.
	ID() string

	// DisplayName is the human-readable label for UI and CLI output.
	DisplayName() string
}
