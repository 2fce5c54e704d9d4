package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities and users.
// It is generated using content-based hashing or assigned by callers.
type ID uint64

// AnonymousUser is the requesting-user ID for unauthenticated callers.
// Anonymous callers only ever see Public fields.
const AnonymousUser ID = 0

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// HashSummary computes a hex digest of an entity's summary text.
// Stored on EmbeddingRecord to detect whether the source text changed
// and the vector is stale.
func HashSummary(text string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// EntityType categorizes an entity.
type EntityType int

const (
	// EntityTypeUnspecified matches any entity type when used as a search scope.
	EntityTypeUnspecified EntityType = iota
	// EntityTypePerson represents a person profile.
	EntityTypePerson
	// EntityTypeJob represents a job listing.
	EntityTypeJob
	// EntityTypeProperty represents a property listing.
	EntityTypeProperty
	// EntityTypeCareer represents a career track.
	EntityTypeCareer
	// EntityTypeMajor represents an academic major.
	EntityTypeMajor
)

// String returns the lowercase name of the entity type.
func (t EntityType) String() string {
	switch t {
	case EntityTypePerson:
		return "person"
	case EntityTypeJob:
		return "job"
	case EntityTypeProperty:
		return "property"
	case EntityTypeCareer:
		return "career"
	case EntityTypeMajor:
		return "major"
	default:
		return "unspecified"
	}
}

// ParseEntityType parses a lowercase entity type name.
// Returns EntityTypeUnspecified for unknown or empty names.
func ParseEntityType(name string) EntityType {
	switch name {
	case "person":
		return EntityTypePerson
	case "job":
		return EntityTypeJob
	case "property":
		return EntityTypeProperty
	case "career":
		return EntityTypeCareer
	case "major":
		return EntityTypeMajor
	default:
		return EntityTypeUnspecified
	}
}

// Visibility is the access level of an entity field.
type Visibility int

const (
	// VisibilityPublic fields are visible to every caller.
	VisibilityPublic Visibility = iota + 1
	// VisibilityConnections fields are visible to authenticated callers.
	// There is no social graph in this system; any non-anonymous caller
	// other than the owner counts as connected.
	VisibilityConnections
	// VisibilityPrivate fields are visible to the owner only.
	VisibilityPrivate
)

// PrivacySettings holds the default visibility for an entity's fields
// plus per-field overrides keyed by dot-path.
type PrivacySettings struct {
	DefaultVisibility Visibility            `json:"defaultVisibility"`
	FieldOverrides    map[string]Visibility `json:"fieldOverrides,omitempty"`
}

// EffectiveVisibility resolves the visibility of a field.
// A field with no explicit override inherits the default; a zero-valued
// default is treated as Private (fail-closed).
func (p PrivacySettings) EffectiveVisibility(field string) Visibility {
	if v, ok := p.FieldOverrides[field]; ok {
		return v
	}
	if p.DefaultVisibility == 0 {
		return VisibilityPrivate
	}
	return p.DefaultVisibility
}

// Entity is a heterogeneous record that can be matched against others.
// The matching engine reads entities; lifecycle is owned by callers.
type Entity struct {
	Id            ID                   `json:"id"`
	Type          EntityType           `json:"type"`
	Name          string               `json:"name"`
	Description   string               `json:"description,omitempty"`
	Summary       string               `json:"summary,omitempty"` // externally supplied plain text, source of the embedding
	Attributes    map[string]AttrValue `json:"attributes,omitempty"`
	Metadata      map[string]string    `json:"metadata,omitempty"`
	Reputation    float64              `json:"reputation,omitempty"`
	RatingCount   int                  `json:"ratingCount,omitempty"`
	OwnedByUserId ID                   `json:"ownedByUserId"`
	IsSearchable  bool                 `json:"isSearchable"`
	Privacy       PrivacySettings      `json:"privacy"`
	InsertedAt    time.Time            `json:"insertedAt"`
	UpdatedAt     time.Time            `json:"updatedAt"`
}

// FieldVisibleTo reports whether requestingUserId is authorized to see
// the given field of this entity. The owner sees everything; anonymous
// callers see Public fields only. If the entity is not searchable, no
// field is visible to anyone regardless of per-field settings.
func (e *Entity) FieldVisibleTo(field string, requestingUserId ID) bool {
	if !e.IsSearchable {
		return false
	}
	if requestingUserId != AnonymousUser && requestingUserId == e.OwnedByUserId {
		return true
	}
	switch e.Privacy.EffectiveVisibility(field) {
	case VisibilityPublic:
		return true
	case VisibilityConnections:
		return requestingUserId != AnonymousUser
	default:
		return false
	}
}

// EmbeddingStatus is the lifecycle state of an embedding record.
type EmbeddingStatus int

const (
	// EmbeddingStatusPending indicates the vector has not been generated yet.
	EmbeddingStatusPending EmbeddingStatus = iota + 1
	// EmbeddingStatusGenerated indicates the vector is present and usable.
	EmbeddingStatusGenerated
	// EmbeddingStatusFailed indicates generation failed; see ErrorMessage.
	EmbeddingStatusFailed
)

// String returns the lowercase name of the status.
func (s EmbeddingStatus) String() string {
	switch s {
	case EmbeddingStatusPending:
		return "pending"
	case EmbeddingStatusGenerated:
		return "generated"
	case EmbeddingStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EmbeddingRecord holds the semantic fingerprint of one entity.
// There is one active record per entity. Only Generated records carry
// a vector; Pending and Failed records carry none.
type EmbeddingRecord struct {
	EntityId     ID
	Vector       []float32
	Status       EmbeddingStatus
	SummaryHash  string // detects stale vectors when the summary text changes
	RetryCount   int
	ErrorMessage string
	InsertedAt   time.Time
	UpdatedAt    time.Time
}
