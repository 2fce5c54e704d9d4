package ingestion

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/affinity/ai"
	"github.com/poiesic/affinity/core"
	"github.com/poiesic/affinity/storage"
	"github.com/poiesic/affinity/vector"
)

// Pipeline orchestrates entity ingestion and embedding generation.
// Entities are written synchronously; their embeddings are generated
// asynchronously on a bounded worker pool.
type Pipeline struct {
	entityRepository    storage.EntityRepository
	embeddingRepository storage.EmbeddingRepository
	embedder            ai.Embedder
	pool                *ants.Pool
	maxRetries          int
	retryDelay          time.Duration
	dimensions          int
	logger              *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding generation.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithDimensions declares the embedding model's dimensionality.
// Vectors of any other length are recorded as failures instead of
// being stored as Generated. Zero accepts whatever the model returns.
func WithDimensions(dims int) Option {
	return func(p *Pipeline) error {
		if dims < 0 {
			dims = 0
		}
		p.dimensions = dims
		return nil
	}
}

// WithRetry configures embedding retry behavior.
// Default is 3 attempts with a 1 second base delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxRetries = maxAttempts
		p.retryDelay = baseDelay
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	entityRepository storage.EntityRepository,
	embeddingRepository storage.EmbeddingRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if entityRepository == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if embeddingRepository == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		entityRepository:    entityRepository,
		embeddingRepository: embeddingRepository,
		embedder:            provider.Embedder(),
		pool:                pool,
		maxRetries:          3,
		retryDelay:          1 * time.Second,
		logger:              slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// EmbeddableText is the text an entity embeds: the summary when
// present, the name and description otherwise.
func EmbeddableText(entity *core.Entity) string {
	if entity.Summary != "" {
		return entity.Summary
	}
	if entity.Description != "" {
		return entity.Name + ". " + entity.Description
	}
	return entity.Name
}

// IngestEntities upserts entities and schedules embedding generation.
//
// An entity whose embedding is already generated from the same summary
// text is skipped; staleness is detected by comparing summary hashes.
// Errors during async embedding are logged and recorded on the
// embedding record, they do not fail the ingestion.
func (p *Pipeline) IngestEntities(ctx context.Context, entities ...*core.Entity) ([]*core.Entity, error) {
	added, err := p.entityRepository.AddEntities(ctx, entities...)
	if err != nil {
		return nil, err
	}

	for _, entity := range added {
		text := EmbeddableText(entity)
		hash := core.HashSummary(text)

		existing, err := p.embeddingRepository.GetEmbedding(ctx, entity.Id)
		if err == nil &&
			existing.Status == core.EmbeddingStatusGenerated &&
			existing.SummaryHash == hash {
			p.logger.Debug("embedding up to date, skipping", "entityId", entity.Id)
			continue
		}

		if _, err := p.embeddingRepository.PutEmbedding(ctx, &core.EmbeddingRecord{
			EntityId:    entity.Id,
			Status:      core.EmbeddingStatusPending,
			SummaryHash: hash,
		}); err != nil {
			return nil, err
		}

		entityId := entity.Id
		if err := p.pool.Submit(func() {
			p.generateEmbedding(context.Background(), entityId, text, hash)
		}); err != nil {
			p.logger.Error("failed to schedule embedding generation", "entityId", entityId, "err", err)
		}
	}

	return added, nil
}

// generateEmbedding embeds text and transitions the entity's record to
// Generated, or to Failed with the error recorded.
func (p *Pipeline) generateEmbedding(ctx context.Context, entityId core.ID, text, hash string) {
	var vec []float32
	err := RetryWithBackoff(ctx, func() error {
		var embedErr error
		vec, embedErr = p.embedder.EmbedText(ctx, text)
		return embedErr
	}, p.maxRetries, p.retryDelay)

	if err != nil {
		p.logger.Error("embedding generation failed", "entityId", entityId, "err", err)
		p.recordFailure(ctx, entityId, hash, err)
		return
	}

	// Normalized vectors make cosine scoring a plain dot product and
	// keep stored magnitudes uniform.
	record := &core.EmbeddingRecord{
		EntityId:    entityId,
		Vector:      vector.Normalize(vec),
		Status:      core.EmbeddingStatusGenerated,
		SummaryHash: hash,
	}

	// A model returning the wrong dimensionality is a generation
	// failure: the vector never reaches the store.
	if err := core.ValidateEmbeddingRecord(record, p.dimensions); err != nil {
		p.logger.Error("embedding has unexpected dimensionality",
			"entityId", entityId, "got", len(record.Vector), "want", p.dimensions)
		p.recordFailure(ctx, entityId, hash, err)
		return
	}

	if _, err := p.embeddingRepository.PutEmbedding(ctx, record); err != nil {
		p.logger.Error("failed to store generated embedding", "entityId", entityId, "err", err)
	}
}

func (p *Pipeline) recordFailure(ctx context.Context, entityId core.ID, hash string, cause error) {
	retryCount := 0
	if existing, err := p.embeddingRepository.GetEmbedding(ctx, entityId); err == nil {
		retryCount = existing.RetryCount
	}

	record := &core.EmbeddingRecord{
		EntityId:     entityId,
		Status:       core.EmbeddingStatusFailed,
		SummaryHash:  hash,
		RetryCount:   retryCount + 1,
		ErrorMessage: cause.Error(),
	}
	if _, err := p.embeddingRepository.PutEmbedding(ctx, record); err != nil {
		p.logger.Error("failed to record embedding failure", "entityId", entityId, "err", err)
	}
}

// ProcessPending synchronously embeds entities whose records are still
// pending, typically after a crash left scheduled work unfinished.
// A non-positive limit processes all pending records.
func (p *Pipeline) ProcessPending(ctx context.Context, limit int) error {
	return p.sweep(ctx, core.EmbeddingStatusPending, limit)
}

// RetryFailed synchronously re-embeds entities whose last attempt
// failed. A non-positive limit processes all failed records.
func (p *Pipeline) RetryFailed(ctx context.Context, limit int) error {
	return p.sweep(ctx, core.EmbeddingStatusFailed, limit)
}

func (p *Pipeline) sweep(ctx context.Context, status core.EmbeddingStatus, limit int) error {
	records, err := p.embeddingRepository.GetEmbeddingsByStatus(ctx, status, limit)
	if err != nil {
		return err
	}

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		entity, err := p.entityRepository.GetEntity(ctx, record.EntityId)
		if err != nil {
			// Orphaned record: the entity is gone, so the record goes too.
			p.logger.Warn("dropping embedding record without entity", "entityId", record.EntityId)
			if delErr := p.embeddingRepository.DeleteEmbedding(ctx, record.EntityId); delErr != nil {
				p.logger.Error("failed to drop orphaned record", "entityId", record.EntityId, "err", delErr)
			}
			continue
		}

		text := EmbeddableText(entity)
		p.generateEmbedding(ctx, entity.Id, text, core.HashSummary(text))
	}
	return nil
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
