// Package storage provides the archival sink used to persist raw search
// snapshots and full README bodies outside the Postgres row that references
// them.
package storage

import (
	"context"
)

// ArchiveStore defines the interface for the archival object store. It is
// the infrastructure-level counterpart of domain/service.ArchiveStore; stage
// code depends on the narrower domain interface, while main.go wires a
// concrete ArchiveStore implementation into it.
type ArchiveStore interface {
	// GetContent retrieves raw content from storage.
	GetContent(ctx context.Context, path string) ([]byte, error)

	// PutContent stores raw content to storage.
	PutContent(ctx context.Context, path string, content []byte, contentType string) error

	// Exists reports whether an object is already present at path.
	Exists(ctx context.Context, path string) (bool, error)
}
