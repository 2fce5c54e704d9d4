package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/affinity/core"
	"github.com/poiesic/affinity/filter"
	"github.com/poiesic/affinity/storage"
)

// EntityRepository implements storage.EntityRepository for BadgerDB.
type EntityRepository struct {
	backend *Backend
}

var _ storage.EntityRepository = (*EntityRepository)(nil)

// NewEntityRepository creates a new EntityRepository.
func NewEntityRepository(backend *Backend) (storage.EntityRepository, error) {
	return &EntityRepository{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *EntityRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *EntityRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddEntities adds one or more entities to storage.
func (r *EntityRepository) AddEntities(ctx context.Context, entities ...*core.Entity) ([]*core.Entity, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entity := range entities {
			if err := core.ValidateEntity(entity); err != nil {
				return err
			}
			if entity.Id == 0 {
				entity.Id = core.IDFromContent(entity.Type.String() + ":" + entity.Name)
			}

			entity.InsertedAt = time.Now().UTC()
			entity.UpdatedAt = entity.InsertedAt

			value, err := storage.MarshalEntity(entity)
			if err != nil {
				return err
			}
			if err := tx.Set(makeEntityKey(entity.Id), value); err != nil {
				return err
			}

			// Update type index
			typeKey := makeEntityTypeKey(entity.Type, entity.Id)
			if err := tx.Set(typeKey, storage.MarshalID(entity.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return entities, err
}

// UpdateEntities updates existing entities.
func (r *EntityRepository) UpdateEntities(ctx context.Context, entities ...*core.Entity) ([]*core.Entity, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entity := range entities {
			key := makeEntityKey(entity.Id)

			// Read old entity to detect index changes
			old, err := r.readEntity(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			entity.InsertedAt = old.InsertedAt
			entity.UpdatedAt = time.Now().UTC()

			value, err := storage.MarshalEntity(entity)
			if err != nil {
				return err
			}
			if err := tx.Set(key, value); err != nil {
				return err
			}

			// Update type index if the type changed
			if old.Type != entity.Type {
				if err := tx.Delete(makeEntityTypeKey(old.Type, old.Id)); err != nil {
					return err
				}
				if err := tx.Set(makeEntityTypeKey(entity.Type, entity.Id), storage.MarshalID(entity.Id)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)

	return entities, err
}

// DeleteEntities removes entities by their IDs.
func (r *EntityRepository) DeleteEntities(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeEntityKey(id)

			entity, err := r.readEntity(tx, key)
			if err != nil {
				return err
			}
			if entity == nil {
				return storage.ErrNotFound
			}

			if err := tx.Delete(makeEntityTypeKey(entity.Type, entity.Id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetEntity retrieves a single entity by ID.
func (r *EntityRepository) GetEntity(ctx context.Context, id core.ID) (*core.Entity, error) {
	var result *core.Entity
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readEntity(tx, makeEntityKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetEntities retrieves multiple entities by their IDs.
// Missing entities are skipped without error.
func (r *EntityRepository) GetEntities(ctx context.Context, ids ...core.ID) ([]*core.Entity, error) {
	results := make([]*core.Entity, 0, len(ids))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			entity, err := r.readEntity(tx, makeEntityKey(id))
			if err != nil {
				return err
			}
			if entity != nil {
				results = append(results, entity)
			}
		}
		return nil
	}, false)
	return results, err
}

// ListEntitiesByType retrieves all entities of the given type via the
// type index. EntityTypeUnspecified scans every entity.
func (r *EntityRepository) ListEntitiesByType(ctx context.Context, entityType core.EntityType) ([]*core.Entity, error) {
	var results []*core.Entity

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if entityType == core.EntityTypeUnspecified {
			return r.scanEntities(tx, func(entity *core.Entity) error {
				results = append(results, entity)
				return nil
			})
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialEntityTypeKey(entityType)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var id core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			entity, err := r.readEntity(tx, makeEntityKey(id))
			if err != nil {
				return err
			}
			if entity != nil {
				results = append(results, entity)
			}
		}
		return nil
	}, false)

	return results, err
}

// FilterEntityIds evaluates a filter tree against every stored entity
// during the scan and returns the IDs that match. Intended for
// push-downable trees; the evaluator is the same one used in-process,
// so privacy gating holds here too.
func (r *EntityRepository) FilterEntityIds(ctx context.Context, node filter.Node, requestingUserId core.ID, enforcePrivacy bool) (map[core.ID]bool, error) {
	matched := make(map[core.ID]bool)

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return r.scanEntities(tx, func(entity *core.Entity) error {
			if filter.Matches(entity, node, requestingUserId, enforcePrivacy) {
				matched[entity.Id] = true
			}
			return nil
		})
	}, false)

	if err != nil {
		return nil, err
	}
	return matched, nil
}

// scanEntities iterates all primary entity records.
func (r *EntityRepository) scanEntities(tx *badger.Txn, fn func(*core.Entity) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(entityRecordPrefix + ":")
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		var entity *core.Entity
		err := iter.Item().Value(func(val []byte) error {
			var err error
			entity, err = storage.UnmarshalEntity(val)
			return err
		})
		if err != nil {
			return err
		}
		if entity == nil {
			continue
		}
		if err := fn(entity); err != nil {
			return err
		}
	}
	return nil
}

// readEntity reads an entity by key within a transaction.
// Returns nil (no error) if the key doesn't exist.
func (r *EntityRepository) readEntity(tx *badger.Txn, key []byte) (*core.Entity, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var entity *core.Entity
	err = item.Value(func(val []byte) error {
		var err error
		entity, err = storage.UnmarshalEntity(val)
		return err
	})
	return entity, err
}
