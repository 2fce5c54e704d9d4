package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/affinity/core"
	"github.com/poiesic/affinity/storage"
)

// EmbeddingRepository implements storage.EmbeddingRepository for BadgerDB.
type EmbeddingRepository struct {
	backend *Backend
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(backend *Backend) (storage.EmbeddingRepository, error) {
	return &EmbeddingRepository{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *EmbeddingRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *EmbeddingRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// PutEmbedding upserts the active embedding record for an entity.
// The record's status and vector must be a legal combination; the
// model dimensionality itself is enforced by the ingestion pipeline,
// which knows the configured model.
func (r *EmbeddingRepository) PutEmbedding(ctx context.Context, record *core.EmbeddingRecord) (*core.EmbeddingRecord, error) {
	if err := core.ValidateEmbeddingRecord(record, 0); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEmbeddingKey(record.EntityId)

		old, err := r.readRecord(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if old == nil {
			record.InsertedAt = now
		} else {
			record.InsertedAt = old.InsertedAt
		}
		record.UpdatedAt = now

		if err := tx.Set(key, storage.MarshalEmbeddingRecord(record)); err != nil {
			return err
		}

		// Maintain the status index; the old status entry goes away
		// when the lifecycle state changes.
		if old != nil && old.Status != record.Status {
			if err := tx.Delete(makeEmbeddingStatusKey(old.Status, old.EntityId)); err != nil {
				return err
			}
		}
		statusKey := makeEmbeddingStatusKey(record.Status, record.EntityId)
		if err := tx.Set(statusKey, storage.MarshalID(record.EntityId)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)

	return record, err
}

// GetEmbedding retrieves the embedding record for an entity.
func (r *EmbeddingRepository) GetEmbedding(ctx context.Context, entityId core.ID) (*core.EmbeddingRecord, error) {
	var result *core.EmbeddingRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readRecord(tx, makeEmbeddingKey(entityId))
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

// GetEmbeddingsByStatus retrieves records in the given lifecycle status
// via the status index. A non-positive limit returns all.
func (r *EmbeddingRepository) GetEmbeddingsByStatus(ctx context.Context, status core.EmbeddingStatus, limit int) ([]*core.EmbeddingRecord, error) {
	var results []*core.EmbeddingRecord

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makePartialEmbeddingStatusKey(status)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}

			var entityId core.ID
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entityId, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				return err
			}

			record, err := r.readRecord(tx, makeEmbeddingKey(entityId))
			if err != nil {
				return err
			}
			if record != nil {
				results = append(results, record)
			}
		}
		return nil
	}, false)

	return results, err
}

// DeleteEmbedding removes the embedding record for an entity.
func (r *EmbeddingRepository) DeleteEmbedding(ctx context.Context, entityId core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeEmbeddingKey(entityId)

		record, err := r.readRecord(tx, key)
		if err != nil {
			return err
		}
		if record == nil {
			return storage.ErrNotFound
		}

		if err := tx.Delete(makeEmbeddingStatusKey(record.Status, record.EntityId)); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}

		return tx.Commit()
	}, true)
}

// readRecord reads an embedding record by key within a transaction.
// Returns nil (no error) if the key doesn't exist.
func (r *EmbeddingRepository) readRecord(tx *badger.Txn, key []byte) (*core.EmbeddingRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var record *core.EmbeddingRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalEmbeddingRecord(val)
		return err
	})
	return record, err
}
