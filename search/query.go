package search

import (
	"time"

	"github.com/poiesic/affinity/core"
	"github.com/poiesic/affinity/filter"
)

// DefaultLimit caps result pages when a query does not set one.
const DefaultLimit = 10

// Query describes one similarity search.
type Query struct {
	// Text is the natural-language query. Blank text switches the engine
	// into attribute-only mode, which ranks by filter match strength
	// instead of vector similarity.
	Text string

	// Type restricts candidates to one entity type.
	// EntityTypeUnspecified searches across all types.
	Type core.EntityType

	// Filter is an optional attribute filter tree. Nil matches everything.
	Filter filter.Node

	// RequestingUserId identifies who is asking. core.AnonymousUser for
	// unauthenticated callers.
	RequestingUserId core.ID

	// EnforcePrivacy gates filter evaluation on per-field visibility.
	// Trusted internal callers may disable it.
	EnforcePrivacy bool

	// MinSimilarity drops candidates scoring below this threshold.
	// Ignored in attribute-only mode.
	MinSimilarity float32

	// Limit caps the number of returned matches. Non-positive means
	// DefaultLimit.
	Limit int

	// Offset skips that many ranked matches before the returned page.
	Offset int

	// Metadata requires exact equality on each listed entity metadata key.
	Metadata map[string]string

	// MinReputation drops entities below this reputation score.
	MinReputation float64

	// MinRatingCount drops entities with fewer ratings than this.
	MinRatingCount int

	// ExcludeIds removes specific entities from the candidate set.
	// The mutual match engine uses it to keep the source out of its
	// own results.
	ExcludeIds []core.ID
}

// EffectiveLimit resolves the page size, applying the default.
func (q *Query) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Match is one ranked search hit.
type Match struct {
	EntityId   core.ID
	EntityName string
	EntityType core.EntityType

	// Score is the ranking score: cosine similarity in [0, 1] for text
	// queries, matched leaf count for attribute-only queries.
	Score float32

	// MatchedAttributes explains the hit: field paths the filter matched
	// on, with their values. Privacy-gated fields never appear here.
	MatchedAttributes map[string]core.AttrValue

	LastModified time.Time
}

// Metadata reports how a search executed. It is populated on every
// result, including empty ones.
type Metadata struct {
	CandidatesScanned int
	Duration          time.Duration
	MinSimilarity     float32
	Limit             int
}

// Result is a page of ranked matches plus execution metadata.
type Result struct {
	Matches []*Match

	// TotalMatches counts all matches before pagination.
	TotalMatches int

	Metadata Metadata
}
