package mutual

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/affinity/core"
	"github.com/poiesic/affinity/search"
	"github.com/poiesic/affinity/storage"
)

// DefaultOverfetchFactor widens the forward search so that candidates
// dropped by the reverse check still leave a full page of results.
const DefaultOverfetchFactor = 3

// ScoreFunc combines the two directional similarity scores into one
// mutual score.
type ScoreFunc func(aToB, bToA float32) float32

// AverageScore is the default ScoreFunc: the arithmetic mean of both
// directions.
func AverageScore(aToB, bToA float32) float32 {
	return (aToB + bToA) / 2
}

// MutualMatch is one bidirectional match between a source entity (A)
// and a candidate (B).
type MutualMatch struct {
	EntityAId   core.ID
	EntityBId   core.ID
	EntityAType core.EntityType
	EntityBType core.EntityType

	// AToBScore is how well B matches A's embedding.
	AToBScore float32

	// BToAScore is how well A matches B's embedding.
	BToAScore float32

	// MutualScore combines both directions via the configured ScoreFunc.
	MutualScore float32

	MatchType  string
	DetectedAt time.Time
}

// Metadata reports how a mutual match run executed.
type Metadata struct {
	CandidatesEvaluated int
	ReverseLookups      int
	Duration            time.Duration
	MinSimilarity       float32
}

// Result is a ranked list of mutual matches plus execution metadata.
type Result struct {
	Matches []*MutualMatch

	// TotalMatches counts all confirmed mutual pairs before truncation
	// to the requested limit.
	TotalMatches int

	Metadata Metadata
}

// Engine finds entities that match each other in both directions.
// The forward direction ranks candidates against the source's embedding;
// a candidate only survives if the source also appears among that
// candidate's own top matches.
type Engine struct {
	searchEngine        *search.Engine
	entityRepository    storage.EntityRepository
	embeddingRepository storage.EmbeddingRepository
	pool                *ants.Pool
	overfetchFactor     int
	scoreFunc           ScoreFunc
	logger              *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithPoolSize sets the worker pool size for concurrent reverse lookups.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		if e.pool != nil {
			e.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		e.pool = pool
		return nil
	}
}

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

// WithOverfetchFactor sets how much wider than the requested limit the
// forward search runs. Must be at least 1.
func WithOverfetchFactor(factor int) Option {
	return func(e *Engine) error {
		if factor < 1 {
			factor = 1
		}
		e.overfetchFactor = factor
		return nil
	}
}

// WithScoreFunc replaces the mutual scoring function.
// Default is AverageScore.
func WithScoreFunc(fn ScoreFunc) Option {
	return func(e *Engine) error {
		if fn == nil {
			fn = AverageScore
		}
		e.scoreFunc = fn
		return nil
	}
}

// NewEngine creates a new mutual match engine.
func NewEngine(
	searchEngine *search.Engine,
	entityRepository storage.EntityRepository,
	embeddingRepository storage.EmbeddingRepository,
	opts ...Option,
) (*Engine, error) {
	if searchEngine == nil {
		return nil, ErrSearchEngineRequired
	}
	if entityRepository == nil {
		return nil, ErrEntityRepositoryRequired
	}
	if embeddingRepository == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}

	poolSize := runtime.NumCPU()
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		searchEngine:        searchEngine,
		entityRepository:    entityRepository,
		embeddingRepository: embeddingRepository,
		pool:                pool,
		overfetchFactor:     DefaultOverfetchFactor,
		scoreFunc:           AverageScore,
		logger:              slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.Release()
			return nil, err
		}
	}

	return e, nil
}

// FindMutualMatches finds entities of targetType that the source
// matches and that match the source back, both above minSimilarity.
//
// Candidate failures during reverse lookup are contained: a candidate
// whose embedding cannot be read or searched is logged and treated as
// not mutual, it never fails the run.
func (e *Engine) FindMutualMatches(ctx context.Context, sourceId core.ID, minSimilarity float32, targetType core.EntityType, limit int) (*Result, error) {
	started := time.Now()

	if limit <= 0 {
		limit = search.DefaultLimit
	}

	source, err := e.entityRepository.GetEntity(ctx, sourceId)
	if err != nil {
		// Only a missing record means the source doesn't exist; storage
		// failures propagate as themselves.
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrSourceNotFound, err)
		}
		return nil, err
	}

	sourceRecord, err := e.embeddingRepository.GetEmbedding(ctx, sourceId)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrSourceNotFound, err)
		}
		return nil, err
	}
	if sourceRecord.Status != core.EmbeddingStatusGenerated {
		return nil, fmt.Errorf("%w: embedding status is %s", ErrSourceNotFound, sourceRecord.Status)
	}

	overfetch := limit * e.overfetchFactor

	forward, err := e.searchEngine.SearchVector(ctx, sourceRecord.Vector, &search.Query{
		Type:          targetType,
		MinSimilarity: minSimilarity,
		Limit:         overfetch,
		ExcludeIds:    []core.ID{sourceId},
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Matches: []*MutualMatch{},
		Metadata: Metadata{
			CandidatesEvaluated: len(forward.Matches),
			MinSimilarity:       minSimilarity,
		},
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		matches []*MutualMatch
	)

	for _, candidate := range forward.Matches {
		// Cancellation stops scheduling further lookups; lookups already
		// in flight observe ctx themselves.
		if ctx.Err() != nil {
			break
		}

		// Forward candidates arrive ranked best-first, so once enough
		// mutual pairs are confirmed the remaining lookups can be
		// skipped. Advisory: in-flight lookups still land and surplus
		// matches are truncated after sorting.
		mu.Lock()
		confirmed := len(matches)
		mu.Unlock()
		if confirmed >= limit {
			break
		}

		candidate := candidate
		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()

			match, ok := e.reverseLookup(ctx, source, candidate, minSimilarity, overfetch)
			if !ok {
				return
			}
			mu.Lock()
			matches = append(matches, match)
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			e.logger.Warn("failed to schedule reverse lookup",
				"candidateId", candidate.EntityId, "err", submitErr)
			continue
		}
		result.Metadata.ReverseLookups++
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Deterministic ranking: mutual score, then candidate ID.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].MutualScore != matches[j].MutualScore {
			return matches[i].MutualScore > matches[j].MutualScore
		}
		return matches[i].EntityBId < matches[j].EntityBId
	})
	result.TotalMatches = len(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	result.Matches = matches
	result.Metadata.Duration = time.Since(started)
	return result, nil
}

// reverseLookup checks whether the source shows up among the
// candidate's own top matches above the threshold.
func (e *Engine) reverseLookup(ctx context.Context, source *core.Entity, candidate *search.Match, minSimilarity float32, reverseLimit int) (*MutualMatch, bool) {
	record, err := e.embeddingRepository.GetEmbedding(ctx, candidate.EntityId)
	if err != nil {
		e.logger.Warn("reverse lookup skipped: no embedding for candidate",
			"candidateId", candidate.EntityId, "err", err)
		return nil, false
	}
	if record.Status != core.EmbeddingStatusGenerated {
		return nil, false
	}

	reverse, err := e.searchEngine.SearchVector(ctx, record.Vector, &search.Query{
		Type:          source.Type,
		MinSimilarity: minSimilarity,
		Limit:         reverseLimit,
		ExcludeIds:    []core.ID{candidate.EntityId},
	})
	if err != nil {
		e.logger.Warn("reverse lookup failed for candidate",
			"candidateId", candidate.EntityId, "err", err)
		return nil, false
	}

	for _, reverseMatch := range reverse.Matches {
		if reverseMatch.EntityId != source.Id {
			continue
		}
		return &MutualMatch{
			EntityAId:   source.Id,
			EntityBId:   candidate.EntityId,
			EntityAType: source.Type,
			EntityBType: candidate.EntityType,
			AToBScore:   candidate.Score,
			BToAScore:   reverseMatch.Score,
			MutualScore: e.scoreFunc(candidate.Score, reverseMatch.Score),
			MatchType:   "Mutual",
			DetectedAt:  time.Now().UTC(),
		}, true
	}
	return nil, false
}

// Release releases the worker pool.
// The engine should not be used after calling Release.
func (e *Engine) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}
