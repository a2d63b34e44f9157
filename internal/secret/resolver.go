package secret

import (
	"context"

	"github.com/google/uuid"
)

// Connection is the interface boundary to the connection data model:
// an opaque identifier plus optional username/domain hints. Nothing
// else about a connection matters to credential resolution.
type Connection struct {
	ID       uuid.UUID
	Name     string
	Username string
	Domain   string
}

// Resolver turns a connection into resolved credentials by consulting
// the secret manager. Stored values win; the connection's hints only
// fill fields the store left empty.
type Resolver struct {
	manager *Manager
}

// NewResolver creates a resolver over the given manager.
func NewResolver(manager *Manager) *Resolver {
	return &Resolver{manager: manager}
}

// Manager returns the underlying secret manager.
func (r *Resolver) Manager() *Manager {
	return r.manager
}

// Resolve returns the credentials for a connection, or (nil, nil) when
// nothing is stored and the connection carries no hints.
func (r *Resolver) Resolve(ctx context.Context, conn *Connection) (*Credentials, error) {
	creds, err := r.manager.Retrieve(ctx, conn.ID.String())
	if err != nil {
		return nil, err
	}

	if creds == nil {
		if conn.Username == "" && conn.Domain == "" {
			return nil, nil
		}
		return &Credentials{Username: conn.Username, Domain: conn.Domain}, nil
	}

	if creds.Username == "" {
		creds.Username = conn.Username
	}
	if creds.Domain == "" {
		creds.Domain = conn.Domain
	}
	return creds, nil
}
