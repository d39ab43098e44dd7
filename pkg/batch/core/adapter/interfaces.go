// Package adapter defines the connection contracts shared by the database and storage adapters.
package adapter

import (
	"context"
)

// ResourceConnection represents a generic connection to any resource (e.g., database, storage).
type ResourceConnection interface {
	// Close closes the resource connection.
	Close() error
	// Type returns the type of the resource (e.g., "postgres", "gcs").
	Type() string
	// Name returns the connection name (e.g., "recipients", "source").
	Name() string
}

// ResourceConnectionResolver resolves a named resource connection.
type ResourceConnectionResolver interface {
	// ResolveConnection resolves a resource connection instance by name.
	// The returned connection is valid; implementations re-establish it if necessary.
	ResolveConnection(ctx context.Context, name string) (ResourceConnection, error)
}

// Closer is implemented by providers that own connections which must be released on shutdown.
type Closer interface {
	CloseAll() error
	Type() string
}
