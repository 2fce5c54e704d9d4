package ingestion

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/affinity/ai/mock"
	"github.com/poiesic/affinity/core"
	"github.com/poiesic/affinity/storage"
	"github.com/poiesic/affinity/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepos(t *testing.T) (storage.EntityRepository, storage.EmbeddingRepository) {
	t.Helper()
	entityRepo, embeddingRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		embeddingRepo.Close()
		entityRepo.Close()
		backend.Close()
	})
	return entityRepo, embeddingRepo
}

func TestNewPipeline(t *testing.T) {
	entityRepo, embeddingRepo := newTestRepos(t)
	provider := mock.NewMockProvider()

	t.Run("valid configuration", func(t *testing.T) {
		pipeline, err := NewPipeline(entityRepo, embeddingRepo, provider)
		require.NoError(t, err)
		require.NotNil(t, pipeline)
		pipeline.Release()
	})

	t.Run("nil entity repository", func(t *testing.T) {
		_, err := NewPipeline(nil, embeddingRepo, provider)
		assert.Equal(t, ErrEntityRepositoryRequired, err)
	})

	t.Run("nil embedding repository", func(t *testing.T) {
		_, err := NewPipeline(entityRepo, nil, provider)
		assert.Equal(t, ErrEmbeddingRepositoryRequired, err)
	})

	t.Run("nil provider", func(t *testing.T) {
		_, err := NewPipeline(entityRepo, embeddingRepo, nil)
		assert.Equal(t, ErrAIProviderRequired, err)
	})

	t.Run("invalid retry configuration", func(t *testing.T) {
		_, err := NewPipeline(entityRepo, embeddingRepo, provider, WithRetry(0, time.Second))
		assert.Equal(t, ErrInvalidMaxAttempts, err)
	})
}

func TestEmbeddableText(t *testing.T) {
	tests := []struct {
		name   string
		entity core.Entity
		want   string
	}{
		{
			"summary wins",
			core.Entity{Name: "Ada", Description: "Pioneer", Summary: "Mathematician and writer"},
			"Mathematician and writer",
		},
		{
			"name plus description",
			core.Entity{Name: "Ada", Description: "Pioneer"},
			"Ada. Pioneer",
		},
		{
			"name only",
			core.Entity{Name: "Ada"},
			"Ada",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EmbeddableText(&tt.entity))
		})
	}
}

func waitForStatus(t *testing.T, repo storage.EmbeddingRepository, id core.ID, status core.EmbeddingStatus) *core.EmbeddingRecord {
	t.Helper()
	var record *core.EmbeddingRecord
	require.Eventually(t, func() bool {
		r, err := repo.GetEmbedding(context.Background(), id)
		if err != nil {
			return false
		}
		record = r
		return r.Status == status
	}, 5*time.Second, 10*time.Millisecond)
	return record
}

func TestIngestEntities_GeneratesEmbedding(t *testing.T) {
	entityRepo, embeddingRepo := newTestRepos(t)
	ctx := context.Background()

	pipeline, err := NewPipeline(entityRepo, embeddingRepo, mock.NewMockProvider())
	require.NoError(t, err)
	defer pipeline.Release()

	added, err := pipeline.IngestEntities(ctx, &core.Entity{
		Type:    core.EntityTypePerson,
		Name:    "Ada",
		Summary: "Remote backend engineer who loves dogs",
	})
	require.NoError(t, err)
	require.Len(t, added, 1)

	record := waitForStatus(t, embeddingRepo, added[0].Id, core.EmbeddingStatusGenerated)
	assert.NotEmpty(t, record.Vector)
	assert.Equal(t, core.HashSummary("Remote backend engineer who loves dogs"), record.SummaryHash)

	// Stored vectors are normalized to unit length
	var sumSquares float64
	for _, v := range record.Vector {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sumSquares, 1e-3)
}

func TestIngestEntities_SkipsFreshEmbedding(t *testing.T) {
	entityRepo, embeddingRepo := newTestRepos(t)
	ctx := context.Background()

	var embedCalls atomic.Int32
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		embedCalls.Add(1)
		return []float32{1, 0, 0}, nil
	}

	pipeline, err := NewPipeline(entityRepo, embeddingRepo, mock.NewMockProviderWithEmbedder(embedder))
	require.NoError(t, err)
	defer pipeline.Release()

	entity := &core.Entity{Type: core.EntityTypePerson, Name: "Ada", Summary: "Unchanged summary"}

	added, err := pipeline.IngestEntities(ctx, entity)
	require.NoError(t, err)
	waitForStatus(t, embeddingRepo, added[0].Id, core.EmbeddingStatusGenerated)
	require.Equal(t, int32(1), embedCalls.Load())

	// Re-ingesting the identical entity must not re-embed
	_, err = pipeline.IngestEntities(ctx, &core.Entity{
		Type: core.EntityTypePerson, Name: "Ada", Summary: "Unchanged summary",
	})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), embedCalls.Load())

	// A changed summary goes stale and re-embeds
	_, err = pipeline.IngestEntities(ctx, &core.Entity{
		Type: core.EntityTypePerson, Name: "Ada", Summary: "Completely new summary",
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return embedCalls.Load() == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestIngestEntities_FailureRecorded(t *testing.T) {
	entityRepo, embeddingRepo := newTestRepos(t)
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("model not loaded")
	}

	pipeline, err := NewPipeline(entityRepo, embeddingRepo, mock.NewMockProviderWithEmbedder(embedder),
		WithRetry(2, time.Millisecond))
	require.NoError(t, err)
	defer pipeline.Release()

	added, err := pipeline.IngestEntities(ctx, &core.Entity{
		Type: core.EntityTypePerson, Name: "Ada", Summary: "Will fail",
	})
	require.NoError(t, err)

	record := waitForStatus(t, embeddingRepo, added[0].Id, core.EmbeddingStatusFailed)
	assert.Equal(t, 1, record.RetryCount)
	assert.Contains(t, record.ErrorMessage, "model not loaded")
	assert.Empty(t, record.Vector)
}

func TestIngestEntities_EnforcesDimensionality(t *testing.T) {
	entityRepo, embeddingRepo := newTestRepos(t)
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = 3

	t.Run("wrong length is recorded as failure", func(t *testing.T) {
		pipeline, err := NewPipeline(entityRepo, embeddingRepo, mock.NewMockProviderWithEmbedder(embedder),
			WithDimensions(768))
		require.NoError(t, err)
		defer pipeline.Release()

		added, err := pipeline.IngestEntities(ctx, &core.Entity{
			Type: core.EntityTypePerson, Name: "Ada", Summary: "Model shrank overnight",
		})
		require.NoError(t, err)

		record := waitForStatus(t, embeddingRepo, added[0].Id, core.EmbeddingStatusFailed)
		assert.Empty(t, record.Vector)
		assert.Contains(t, record.ErrorMessage, "dimension")
	})

	t.Run("matching length is stored", func(t *testing.T) {
		pipeline, err := NewPipeline(entityRepo, embeddingRepo, mock.NewMockProviderWithEmbedder(embedder),
			WithDimensions(3))
		require.NoError(t, err)
		defer pipeline.Release()

		added, err := pipeline.IngestEntities(ctx, &core.Entity{
			Type: core.EntityTypePerson, Name: "Grace", Summary: "Right-sized model",
		})
		require.NoError(t, err)

		record := waitForStatus(t, embeddingRepo, added[0].Id, core.EmbeddingStatusGenerated)
		assert.Len(t, record.Vector, 3)
	})
}

func TestRetryFailed(t *testing.T) {
	entityRepo, embeddingRepo := newTestRepos(t)
	ctx := context.Background()

	var healthy atomic.Bool
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if !healthy.Load() {
			return nil, errors.New("temporarily unavailable")
		}
		return []float32{0, 1, 0}, nil
	}

	pipeline, err := NewPipeline(entityRepo, embeddingRepo, mock.NewMockProviderWithEmbedder(embedder),
		WithRetry(1, time.Millisecond))
	require.NoError(t, err)
	defer pipeline.Release()

	added, err := pipeline.IngestEntities(ctx, &core.Entity{
		Type: core.EntityTypePerson, Name: "Ada", Summary: "Flaky service",
	})
	require.NoError(t, err)
	waitForStatus(t, embeddingRepo, added[0].Id, core.EmbeddingStatusFailed)

	// Service recovers; the sweep turns the record around
	healthy.Store(true)
	require.NoError(t, pipeline.RetryFailed(ctx, 0))

	record, err := embeddingRepo.GetEmbedding(ctx, added[0].Id)
	require.NoError(t, err)
	assert.Equal(t, core.EmbeddingStatusGenerated, record.Status)
	assert.NotEmpty(t, record.Vector)
}

func TestProcessPending(t *testing.T) {
	entityRepo, embeddingRepo := newTestRepos(t)
	ctx := context.Background()

	added, err := entityRepo.AddEntities(ctx, &core.Entity{
		Type: core.EntityTypePerson, Name: "Stranded", Summary: "Left pending by a crash",
	})
	require.NoError(t, err)
	_, err = embeddingRepo.PutEmbedding(ctx, &core.EmbeddingRecord{
		EntityId: added[0].Id,
		Status:   core.EmbeddingStatusPending,
	})
	require.NoError(t, err)

	// An orphaned record whose entity no longer exists
	_, err = embeddingRepo.PutEmbedding(ctx, &core.EmbeddingRecord{
		EntityId: 999999,
		Status:   core.EmbeddingStatusPending,
	})
	require.NoError(t, err)

	pipeline, err := NewPipeline(entityRepo, embeddingRepo, mock.NewMockProvider())
	require.NoError(t, err)
	defer pipeline.Release()

	require.NoError(t, pipeline.ProcessPending(ctx, 0))

	record, err := embeddingRepo.GetEmbedding(ctx, added[0].Id)
	require.NoError(t, err)
	assert.Equal(t, core.EmbeddingStatusGenerated, record.Status)

	_, err = embeddingRepo.GetEmbedding(ctx, 999999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after retries", func(t *testing.T) {
		attempts := 0
		err := RetryWithBackoff(ctx, func() error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		}, 5, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		wantErr := errors.New("persistent")
		err := RetryWithBackoff(ctx, func() error { return wantErr }, 3, time.Millisecond)
		assert.Equal(t, wantErr, err)
	})

	t.Run("invalid max attempts", func(t *testing.T) {
		err := RetryWithBackoff(ctx, func() error { return nil }, 0, time.Millisecond)
		assert.Equal(t, ErrInvalidMaxAttempts, err)
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := RetryWithBackoff(cancelled, func() error { return errors.New("never runs") }, 3, time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestReindexer(t *testing.T) {
	entityRepo, embeddingRepo := newTestRepos(t)
	ctx := context.Background()

	entities := []*core.Entity{
		{Type: core.EntityTypePerson, Name: "Ada", Summary: "First"},
		{Type: core.EntityTypePerson, Name: "Grace", Summary: "Second"},
		{Type: core.EntityTypeJob, Name: "Backend Role", Summary: "Third"},
	}
	added, err := entityRepo.AddEntities(ctx, entities...)
	require.NoError(t, err)

	pipeline, err := NewPipeline(entityRepo, embeddingRepo, mock.NewMockProvider())
	require.NoError(t, err)
	defer pipeline.Release()

	var progress bytes.Buffer
	reindexer := NewReindexer(pipeline, &progress, 1)
	require.NoError(t, reindexer.Run(ctx))

	for _, entity := range added {
		record, err := embeddingRepo.GetEmbedding(ctx, entity.Id)
		require.NoError(t, err)
		assert.Equal(t, core.EmbeddingStatusGenerated, record.Status)
		assert.NotEmpty(t, record.Vector)
	}

	assert.True(t, strings.Contains(progress.String(), "Reindex complete"))
}

func TestReindexer_EmptyStore(t *testing.T) {
	entityRepo, embeddingRepo := newTestRepos(t)

	pipeline, err := NewPipeline(entityRepo, embeddingRepo, mock.NewMockProvider())
	require.NoError(t, err)
	defer pipeline.Release()

	var progress bytes.Buffer
	reindexer := NewReindexer(pipeline, &progress, 1)
	require.NoError(t, reindexer.Run(context.Background()))
	assert.True(t, strings.Contains(progress.String(), "No entities"))
}
