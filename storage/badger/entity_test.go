package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/affinity/core"
	"github.com/poiesic/affinity/filter"
	"github.com/poiesic/affinity/storage"
)

func TestEntityBasics(t *testing.T) {
	entityRepo, embeddingRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() {
		embeddingRepo.Close()
		entityRepo.Close()
		backend.Close()
	}()

	ctx := context.Background()

	entity := &core.Entity{
		Type:          core.EntityTypePerson,
		Name:          "Ada Lovelace",
		Summary:       "Mathematician interested in analytical engines",
		OwnedByUserId: 7,
		IsSearchable:  true,
	}

	added, err := entityRepo.AddEntities(ctx, entity)
	if err != nil {
		t.Fatalf("Failed to add entity: %v", err)
	}

	if len(added) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(added))
	}

	if added[0].Id == 0 {
		t.Fatal("Expected non-zero ID")
	}

	if added[0].InsertedAt.IsZero() || added[0].UpdatedAt.IsZero() {
		t.Fatal("Expected timestamps to be populated")
	}

	retrieved, err := entityRepo.GetEntity(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get entity: %v", err)
	}

	if retrieved.Name != "Ada Lovelace" {
		t.Fatalf("Expected 'Ada Lovelace', got '%s'", retrieved.Name)
	}
	if retrieved.Type != core.EntityTypePerson {
		t.Fatalf("Expected person type, got %v", retrieved.Type)
	}
}

func TestEntityContentBasedID(t *testing.T) {
	entityRepo, embeddingRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { embeddingRepo.Close(); entityRepo.Close(); backend.Close() }()

	ctx := context.Background()

	first := &core.Entity{Type: core.EntityTypeJob, Name: "Backend Engineer"}
	second := &core.Entity{Type: core.EntityTypeJob, Name: "Backend Engineer"}

	addedFirst, err := entityRepo.AddEntities(ctx, first)
	if err != nil {
		t.Fatalf("Failed to add first entity: %v", err)
	}
	addedSecond, err := entityRepo.AddEntities(ctx, second)
	if err != nil {
		t.Fatalf("Failed to add second entity: %v", err)
	}

	// Same type and name derive the same content-based ID, so the
	// second add is an overwrite rather than a duplicate.
	if addedFirst[0].Id != addedSecond[0].Id {
		t.Fatalf("Expected identical IDs, got %d and %d", addedFirst[0].Id, addedSecond[0].Id)
	}

	// A different type derives a different ID for the same name
	other := &core.Entity{Type: core.EntityTypePerson, Name: "Backend Engineer"}
	addedOther, err := entityRepo.AddEntities(ctx, other)
	if err != nil {
		t.Fatalf("Failed to add other entity: %v", err)
	}
	if addedOther[0].Id == addedFirst[0].Id {
		t.Fatal("Expected type to participate in ID derivation")
	}
}

func TestEntityUpdate(t *testing.T) {
	entityRepo, embeddingRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { embeddingRepo.Close(); entityRepo.Close(); backend.Close() }()

	ctx := context.Background()

	entity := &core.Entity{Type: core.EntityTypeProperty, Name: "Lakeside Cottage"}
	added, err := entityRepo.AddEntities(ctx, entity)
	if err != nil {
		t.Fatalf("Failed to add entity: %v", err)
	}

	insertedAt := added[0].InsertedAt

	added[0].Summary = "Two bedroom cottage near the lake"
	updated, err := entityRepo.UpdateEntities(ctx, added[0])
	if err != nil {
		t.Fatalf("Failed to update entity: %v", err)
	}

	if !updated[0].InsertedAt.Equal(insertedAt) {
		t.Fatal("Expected InsertedAt to be preserved on update")
	}
	if !updated[0].UpdatedAt.After(insertedAt) && !updated[0].UpdatedAt.Equal(insertedAt) {
		t.Fatal("Expected UpdatedAt to advance on update")
	}

	retrieved, err := entityRepo.GetEntity(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get entity: %v", err)
	}
	if retrieved.Summary != "Two bedroom cottage near the lake" {
		t.Fatalf("Expected updated summary, got '%s'", retrieved.Summary)
	}

	// Updating a missing entity errors
	missing := &core.Entity{Id: 999999, Type: core.EntityTypePerson, Name: "Ghost"}
	_, err = entityRepo.UpdateEntities(ctx, missing)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestEntityTypeIndexMaintenance(t *testing.T) {
	entityRepo, embeddingRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { embeddingRepo.Close(); entityRepo.Close(); backend.Close() }()

	ctx := context.Background()

	entities := []*core.Entity{
		{Type: core.EntityTypePerson, Name: "Alice"},
		{Type: core.EntityTypePerson, Name: "Bob"},
		{Type: core.EntityTypeJob, Name: "Data Analyst"},
	}
	added, err := entityRepo.AddEntities(ctx, entities...)
	if err != nil {
		t.Fatalf("Failed to add entities: %v", err)
	}

	people, err := entityRepo.ListEntitiesByType(ctx, core.EntityTypePerson)
	if err != nil {
		t.Fatalf("Failed to list people: %v", err)
	}
	if len(people) != 2 {
		t.Fatalf("Expected 2 people, got %d", len(people))
	}

	all, err := entityRepo.ListEntitiesByType(ctx, core.EntityTypeUnspecified)
	if err != nil {
		t.Fatalf("Failed to list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 entities, got %d", len(all))
	}

	// Changing the type moves the entity across index buckets
	added[1].Type = core.EntityTypeJob
	if _, err := entityRepo.UpdateEntities(ctx, added[1]); err != nil {
		t.Fatalf("Failed to update entity: %v", err)
	}

	people, err = entityRepo.ListEntitiesByType(ctx, core.EntityTypePerson)
	if err != nil {
		t.Fatalf("Failed to list people: %v", err)
	}
	if len(people) != 1 {
		t.Fatalf("Expected 1 person after type change, got %d", len(people))
	}

	jobs, err := entityRepo.ListEntitiesByType(ctx, core.EntityTypeJob)
	if err != nil {
		t.Fatalf("Failed to list jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs after type change, got %d", len(jobs))
	}

	// Deleting removes the index entry too
	if err := entityRepo.DeleteEntities(ctx, added[0].Id); err != nil {
		t.Fatalf("Failed to delete entity: %v", err)
	}
	people, err = entityRepo.ListEntitiesByType(ctx, core.EntityTypePerson)
	if err != nil {
		t.Fatalf("Failed to list people: %v", err)
	}
	if len(people) != 0 {
		t.Fatalf("Expected 0 people after delete, got %d", len(people))
	}
}

func TestGetEntitiesSkipsMissing(t *testing.T) {
	entityRepo, embeddingRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { embeddingRepo.Close(); entityRepo.Close(); backend.Close() }()

	ctx := context.Background()

	added, err := entityRepo.AddEntities(ctx, &core.Entity{Type: core.EntityTypePerson, Name: "Carol"})
	if err != nil {
		t.Fatalf("Failed to add entity: %v", err)
	}

	results, err := entityRepo.GetEntities(ctx, added[0].Id, 123456789)
	if err != nil {
		t.Fatalf("Failed to get entities: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(results))
	}

	_, err = entityRepo.GetEntity(ctx, 123456789)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestFilterEntityIds(t *testing.T) {
	entityRepo, embeddingRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { embeddingRepo.Close(); entityRepo.Close(); backend.Close() }()

	ctx := context.Background()

	entities := []*core.Entity{
		{
			Type: core.EntityTypePerson, Name: "Dog Person", IsSearchable: true,
			Attributes: map[string]core.AttrValue{"hasPets": core.BoolValue(true)},
			Privacy:    core.PrivacySettings{DefaultVisibility: core.VisibilityPublic},
		},
		{
			Type: core.EntityTypePerson, Name: "Cat Person", IsSearchable: true,
			Attributes: map[string]core.AttrValue{"hasPets": core.BoolValue(true)},
			Privacy:    core.PrivacySettings{DefaultVisibility: core.VisibilityPublic},
		},
		{
			Type: core.EntityTypePerson, Name: "No Pets", IsSearchable: true,
			Attributes: map[string]core.AttrValue{"hasPets": core.BoolValue(false)},
			Privacy:    core.PrivacySettings{DefaultVisibility: core.VisibilityPublic},
		},
	}
	added, err := entityRepo.AddEntities(ctx, entities...)
	if err != nil {
		t.Fatalf("Failed to add entities: %v", err)
	}

	node := filter.Where("hasPets", filter.OpIsTrue, core.Absent())
	matched, err := entityRepo.FilterEntityIds(ctx, node, core.AnonymousUser, true)
	if err != nil {
		t.Fatalf("Failed to filter: %v", err)
	}
	if len(matched) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matched))
	}
	if !matched[added[0].Id] || !matched[added[1].Id] {
		t.Fatal("Expected both pet owners to match")
	}

	// A nil node matches everything
	matched, err = entityRepo.FilterEntityIds(ctx, nil, core.AnonymousUser, true)
	if err != nil {
		t.Fatalf("Failed to filter with nil node: %v", err)
	}
	if len(matched) != 3 {
		t.Fatalf("Expected 3 matches for nil node, got %d", len(matched))
	}
}

func TestFilterEntityIdsPrivacyGating(t *testing.T) {
	entityRepo, embeddingRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { embeddingRepo.Close(); entityRepo.Close(); backend.Close() }()

	ctx := context.Background()

	entity := &core.Entity{
		Type: core.EntityTypePerson, Name: "Private Salary", IsSearchable: true,
		OwnedByUserId: 42,
		Attributes:    map[string]core.AttrValue{"salary": core.NumberValue(120000)},
		Privacy: core.PrivacySettings{
			DefaultVisibility: core.VisibilityPublic,
			FieldOverrides:    map[string]core.Visibility{"salary": core.VisibilityPrivate},
		},
	}
	added, err := entityRepo.AddEntities(ctx, entity)
	if err != nil {
		t.Fatalf("Failed to add entity: %v", err)
	}

	node := filter.Where("salary", filter.OpGreaterThan, core.NumberValue(100000))

	// Gated for a stranger, even though the underlying value matches
	matched, err := entityRepo.FilterEntityIds(ctx, node, core.AnonymousUser, true)
	if err != nil {
		t.Fatalf("Failed to filter: %v", err)
	}
	if len(matched) != 0 {
		t.Fatalf("Expected 0 matches under privacy gating, got %d", len(matched))
	}

	// The owner sees through
	matched, err = entityRepo.FilterEntityIds(ctx, node, 42, true)
	if err != nil {
		t.Fatalf("Failed to filter as owner: %v", err)
	}
	if !matched[added[0].Id] {
		t.Fatal("Expected owner to match own private field")
	}
}
