// Package store implements the client registry: a keyed store mapping the
// unique client name to its identity and document location. Backends return
// sentinel errors; the service layer translates them into domain errors.
package store

import (
	"context"

	"detour/internal/provision/models"
)

// Registry is the persistence contract the provisioning service consumes.
//
// Put is insert-if-absent and must enforce name uniqueness atomically; it is
// the single coordination point preventing two concurrent provisioning
// workflows for the same name from both succeeding.
type Registry interface {
	Exists(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, record *models.Record) error
	Get(ctx context.Context, name string) (*models.Record, error)
	Delete(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]*models.Record, error)

	// UpdateDocument replaces the stored document location for an existing
	// client, bumping UpdatedAt. Returns sentinel.ErrNotFound for unknown
	// names.
	UpdateDocument(ctx context.Context, name string, ref models.DocumentRef) error
}
