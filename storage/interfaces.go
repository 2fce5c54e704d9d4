package storage

import (
	"context"

	"github.com/poiesic/affinity/core"
	"github.com/poiesic/affinity/filter"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// EntityRepository provides operations for managing entity records.
type EntityRepository interface {
	Repository

	// AddEntities adds one or more entities to storage.
	// For entities with ID=0, derives a content-based ID from type and name.
	// Sets InsertedAt timestamp if not already set.
	// Returns the entities with IDs and timestamps populated.
	AddEntities(ctx context.Context, entities ...*core.Entity) ([]*core.Entity, error)

	// UpdateEntities updates existing entities.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any entity doesn't exist.
	UpdateEntities(ctx context.Context, entities ...*core.Entity) ([]*core.Entity, error)

	// DeleteEntities removes entities by their IDs.
	// Also removes associated indices.
	// Returns ErrNotFound if any entity doesn't exist.
	DeleteEntities(ctx context.Context, ids ...core.ID) error

	// GetEntity retrieves a single entity by ID.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id core.ID) (*core.Entity, error)

	// GetEntities retrieves multiple entities by their IDs.
	// Returns only the entities that exist (no error for missing entities).
	GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error)

	// ListEntitiesByType retrieves all entities of the given type.
	// EntityTypeUnspecified lists every entity.
	ListEntitiesByType(ctx context.Context, entityType core.EntityType) ([]*core.Entity, error)

	// FilterEntityIds evaluates a push-downable filter tree during the
	// store-side scan and returns the IDs of matching entities. The same
	// evaluator runs here as in-process, so pushing a filter down never
	// changes its semantics, including privacy gating.
	FilterEntityIds(ctx context.Context, node filter.Node, requestingUserId core.ID, enforcePrivacy bool) (map[core.ID]bool, error)
}

// EmbeddingRepository provides operations for managing embedding records.
// The matching engine consumes these read-only; mutation belongs to the
// ingestion pipeline.
type EmbeddingRepository interface {
	Repository

	// PutEmbedding upserts the active embedding record for an entity.
	// There is one active record per entity; a second Put replaces the
	// first. Sets InsertedAt on first write and UpdatedAt always.
	PutEmbedding(ctx context.Context, record *core.EmbeddingRecord) (*core.EmbeddingRecord, error)

	// GetEmbedding retrieves the embedding record for an entity.
	// Returns ErrNotFound if no record exists.
	GetEmbedding(ctx context.Context, entityId core.ID) (*core.EmbeddingRecord, error)

	// GetEmbeddingsByStatus retrieves records in the given lifecycle
	// status, up to limit results. A non-positive limit returns all.
	GetEmbeddingsByStatus(ctx context.Context, status core.EmbeddingStatus, limit int) ([]*core.EmbeddingRecord, error)

	// DeleteEmbedding removes the embedding record for an entity.
	// Returns ErrNotFound if no record exists.
	DeleteEmbedding(ctx context.Context, entityId core.ID) error
}
