package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/affinity/ai"
	"github.com/poiesic/affinity/core"
	"github.com/poiesic/affinity/filter"
	"github.com/poiesic/affinity/storage"
	"github.com/poiesic/affinity/vector"
)

// Engine ranks entities by semantic similarity and attribute filters.
type Engine struct {
	entityRepository    storage.EntityRepository
	embeddingRepository storage.EmbeddingRepository
	embedder            ai.Embedder
	logger              *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a new search engine.
func NewEngine(
	entityRepository storage.EntityRepository,
	embeddingRepository storage.EmbeddingRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Engine, error) {
	if entityRepository == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if embeddingRepository == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	e := &Engine{
		entityRepository:    entityRepository,
		embeddingRepository: embeddingRepository,
		embedder:            provider.Embedder(),
		logger:              slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Search executes a query, embedding its text first.
// Blank text runs in attribute-only mode.
func (e *Engine) Search(ctx context.Context, query *Query) (*Result, error) {
	return e.SearchWithMonitor(ctx, query, nil)
}

// SearchWithMonitor executes a query with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (e *Engine) SearchWithMonitor(ctx context.Context, query *Query, monitor SearchMonitor) (*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if strings.TrimSpace(query.Text) == "" {
		return e.attributeOnlySearch(ctx, query, monitor)
	}

	queryVector, err := e.embedder.EmbedText(ctx, query.Text)
	if err != nil {
		e.logger.Error("error generating embedding for query", "err", err)
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}

	return e.SearchVectorWithMonitor(ctx, queryVector, query, monitor)
}

// SearchVector executes a query against a precomputed query vector,
// skipping the embedding step. The mutual match engine uses this to
// reuse stored vectors for reverse lookups.
func (e *Engine) SearchVector(ctx context.Context, queryVector []float32, query *Query) (*Result, error) {
	return e.SearchVectorWithMonitor(ctx, queryVector, query, nil)
}

// SearchVectorWithMonitor executes a vector query with monitoring.
func (e *Engine) SearchVectorWithMonitor(ctx context.Context, queryVector []float32, query *Query, monitor SearchMonitor) (*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	started := time.Now()
	monitor.Start(query)

	allowed, err := e.allowedCandidates(ctx, query)
	if err != nil {
		return nil, err
	}

	records, err := e.embeddingRepository.GetEmbeddingsByStatus(ctx, core.EmbeddingStatusGenerated, 0)
	if err != nil {
		e.logger.Error("error fetching embedding records", "err", err)
		return nil, err
	}
	monitor.AfterCandidateFetch(len(records))

	excluded := make(map[core.ID]bool, len(query.ExcludeIds))
	for _, id := range query.ExcludeIds {
		excluded[id] = true
	}

	// Score every candidate with a usable vector. A record with the
	// wrong dimensionality is that record's problem, not the query's.
	scored := make(map[core.ID]float32)
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if excluded[record.EntityId] {
			continue
		}
		if allowed != nil && !allowed[record.EntityId] {
			continue
		}

		similarity, err := vector.CosineSimilarity(queryVector, record.Vector)
		if err != nil {
			e.logger.Warn("skipping candidate with unusable vector",
				"entityId", record.EntityId, "dimensions", len(record.Vector), "err", err)
			continue
		}
		// Opposite-direction vectors mean "not similar", not "negatively
		// ranked"; clamp to the [0, 1] range callers reason about.
		if similarity < 0 {
			similarity = 0
		}
		if similarity < query.MinSimilarity {
			continue
		}
		scored[record.EntityId] = similarity
	}
	monitor.AfterScoring(scored)

	return e.assemble(ctx, query, scored, started, len(records), monitor)
}

// attributeOnlySearch ranks by filter match strength instead of vector
// similarity. MinSimilarity does not apply.
func (e *Engine) attributeOnlySearch(ctx context.Context, query *Query, monitor SearchMonitor) (*Result, error) {
	started := time.Now()
	monitor.Start(query)

	entities, err := e.entityRepository.ListEntitiesByType(ctx, query.Type)
	if err != nil {
		e.logger.Error("error listing candidate entities", "type", query.Type, "err", err)
		return nil, err
	}
	monitor.AfterCandidateFetch(len(entities))

	excluded := make(map[core.ID]bool, len(query.ExcludeIds))
	for _, id := range query.ExcludeIds {
		excluded[id] = true
	}

	scored := make(map[core.ID]float32)
	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if excluded[entity.Id] {
			continue
		}
		scored[entity.Id] = float32(filter.CountMatchingLeaves(
			entity, query.Filter, query.RequestingUserId, query.EnforcePrivacy))
	}
	monitor.AfterScoring(scored)

	return e.assemble(ctx, query, scored, started, len(entities), monitor)
}

// allowedCandidates resolves type scoping and push-downable filters to
// an entity ID set. Nil means unrestricted.
func (e *Engine) allowedCandidates(ctx context.Context, query *Query) (map[core.ID]bool, error) {
	var allowed map[core.ID]bool

	if query.Type != core.EntityTypeUnspecified {
		entities, err := e.entityRepository.ListEntitiesByType(ctx, query.Type)
		if err != nil {
			e.logger.Error("error listing entities by type", "type", query.Type, "err", err)
			return nil, err
		}
		allowed = make(map[core.ID]bool, len(entities))
		for _, entity := range entities {
			allowed[entity.Id] = true
		}
	}

	if query.Filter != nil && filter.IsPushDownable(query.Filter) {
		matched, err := e.entityRepository.FilterEntityIds(
			ctx, query.Filter, query.RequestingUserId, query.EnforcePrivacy)
		if err != nil {
			e.logger.Error("error pushing filter down to storage", "err", err)
			return nil, err
		}
		if allowed == nil {
			return matched, nil
		}
		for id := range allowed {
			if !matched[id] {
				delete(allowed, id)
			}
		}
	}

	return allowed, nil
}

// assemble loads scored entities, applies the post-scoring filters,
// ranks, and paginates.
func (e *Engine) assemble(ctx context.Context, query *Query, scored map[core.ID]float32, started time.Time, scanned int, monitor SearchMonitor) (*Result, error) {
	limit := query.EffectiveLimit()
	result := &Result{
		Matches: []*Match{},
		Metadata: Metadata{
			CandidatesScanned: scanned,
			MinSimilarity:     query.MinSimilarity,
			Limit:             limit,
		},
	}

	if len(scored) == 0 {
		result.Metadata.Duration = time.Since(started)
		monitor.Finish(result)
		return result, nil
	}

	ids := make([]core.ID, 0, len(scored))
	for id := range scored {
		ids = append(ids, id)
	}

	// Missing entities are skipped here; an embedding record whose
	// entity is gone just produces no match.
	entities, err := e.entityRepository.GetEntities(ctx, ids...)
	if err != nil {
		e.logger.Error("error retrieving entities", "entityCount", len(ids), "err", err)
		return nil, err
	}

	matches := make([]*Match, 0, len(entities))
	surviving := make([]core.ID, 0, len(entities))
	for _, entity := range entities {
		if entity == nil || !entity.IsSearchable {
			continue
		}
		if !filter.Matches(entity, query.Filter, query.RequestingUserId, query.EnforcePrivacy) {
			continue
		}
		if !e.metadataMatches(entity, query.Metadata) {
			continue
		}
		if entity.Reputation < query.MinReputation {
			continue
		}
		if entity.RatingCount < query.MinRatingCount {
			continue
		}

		matches = append(matches, &Match{
			EntityId:   entity.Id,
			EntityName: entity.Name,
			EntityType: entity.Type,
			Score:      scored[entity.Id],
			MatchedAttributes: filter.ExtractMatchedAttributes(
				entity, query.Filter, query.RequestingUserId, query.EnforcePrivacy),
			LastModified: entity.UpdatedAt,
		})
		surviving = append(surviving, entity.Id)
	}
	monitor.AfterFiltering(surviving)

	// Deterministic ranking: score, then recency, then ID.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if !matches[i].LastModified.Equal(matches[j].LastModified) {
			return matches[i].LastModified.After(matches[j].LastModified)
		}
		return matches[i].EntityId < matches[j].EntityId
	})

	result.TotalMatches = len(matches)

	if query.Offset > 0 {
		if query.Offset >= len(matches) {
			matches = matches[:0]
		} else {
			matches = matches[query.Offset:]
		}
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	result.Matches = matches

	result.Metadata.Duration = time.Since(started)
	monitor.Finish(result)
	return result, nil
}

func (e *Engine) metadataMatches(entity *core.Entity, required map[string]string) bool {
	for key, want := range required {
		if entity.Metadata[key] != want {
			return false
		}
	}
	return true
}
