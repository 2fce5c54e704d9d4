package main

import (
	"bufio"
	"context"
	"flag"
	"iter"
	"log/slog"
	"os"

	"github.com/poiesic/affinity"
	"github.com/poiesic/affinity/core"
	"github.com/poiesic/affinity/ingestion"
	"github.com/poiesic/affinity/storage"
)

func person(name, summary string, attrs map[string]core.AttrValue, overrides map[string]core.Visibility) *core.Entity {
	return &core.Entity{
		Type:         core.EntityTypePerson,
		Name:         name,
		Summary:      summary,
		Attributes:   attrs,
		IsSearchable: true,
		Privacy: core.PrivacySettings{
			DefaultVisibility: core.VisibilityPublic,
			FieldOverrides:    overrides,
		},
	}
}

func job(name, summary string, attrs map[string]core.AttrValue) *core.Entity {
	return &core.Entity{
		Type:         core.EntityTypeJob,
		Name:         name,
		Summary:      summary,
		Attributes:   attrs,
		IsSearchable: true,
		Privacy: core.PrivacySettings{
			DefaultVisibility: core.VisibilityPublic,
		},
	}
}

var roster = []*core.Entity{
	person("Ada Thompson",
		"Backend engineer who loves distributed systems, key-value stores, and long trail runs.",
		map[string]core.AttrValue{
			"skills":          core.ListValue(core.StringValue("go"), core.StringValue("postgres"), core.StringValue("kubernetes")),
			"yearsExperience": core.NumberValue(9),
			"remote":          core.BoolValue(true),
			"salary":          core.NumberValue(145000),
		},
		map[string]core.Visibility{"salary": core.VisibilityPrivate}),
	person("Marcus Webb",
		"Frontend developer focused on accessible interfaces and design systems.",
		map[string]core.AttrValue{
			"skills":          core.ListValue(core.StringValue("typescript"), core.StringValue("react")),
			"yearsExperience": core.NumberValue(4),
			"remote":          core.BoolValue(false),
		},
		nil),
	person("Priya Natarajan",
		"Machine learning engineer working on embedding models and vector retrieval.",
		map[string]core.AttrValue{
			"skills":          core.ListValue(core.StringValue("python"), core.StringValue("pytorch"), core.StringValue("go")),
			"yearsExperience": core.NumberValue(6),
			"remote":          core.BoolValue(true),
		},
		nil),
	person("Leo Fischer",
		"Site reliability engineer who keeps fleets of services honest.",
		map[string]core.AttrValue{
			"skills":          core.ListValue(core.StringValue("terraform"), core.StringValue("prometheus"), core.StringValue("go")),
			"yearsExperience": core.NumberValue(11),
			"remote":          core.BoolValue(true),
		},
		nil),
	job("Senior Backend Engineer",
		"Build and operate high-throughput storage services in Go. Strong distributed systems background required.",
		map[string]core.AttrValue{
			"requiredSkills": core.ListValue(core.StringValue("go"), core.StringValue("kubernetes")),
			"minExperience":  core.NumberValue(7),
			"remote":         core.BoolValue(true),
		}),
	job("ML Platform Engineer",
		"Own the embedding and retrieval infrastructure behind our recommendation products.",
		map[string]core.AttrValue{
			"requiredSkills": core.ListValue(core.StringValue("python"), core.StringValue("go")),
			"minExperience":  core.NumberValue(4),
			"remote":         core.BoolValue(true),
		}),
	job("Design Systems Engineer",
		"Grow a component library used by every product team. Accessibility first.",
		map[string]core.AttrValue{
			"requiredSkills": core.ListValue(core.StringValue("typescript"), core.StringValue("react")),
			"minExperience":  core.NumberValue(3),
			"remote":         core.BoolValue(false),
		}),
	{
		Type:         core.EntityTypeProperty,
		Name:         "Sunny two-bedroom near the river",
		Summary:      "Bright two-bedroom apartment with a balcony, five minutes from the riverside trail.",
		IsSearchable: true,
		Attributes: map[string]core.AttrValue{
			"bedrooms": core.NumberValue(2),
			"petsOk":   core.BoolValue(true),
			"rent":     core.NumberValue(1850),
		},
		Privacy: core.PrivacySettings{DefaultVisibility: core.VisibilityPublic},
	},
}

var (
	seedFileName = flag.String("src", "", "file of seed entities, one JSON object per line")
	dbPath       = flag.String("db", "./affinity_db", "path to BadgerDB database directory")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// entitiesFromFile returns an iterator over JSON-encoded entities in a file.
func entitiesFromFile(filename string) (iter.Seq[*core.Entity], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(*core.Entity) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			entity, err := storage.UnmarshalEntity(line)
			if err != nil {
				slog.Error("skipping malformed seed line", "err", err)
				continue
			}
			if !yield(entity) {
				return
			}
		}
	}, nil
}

// entitiesFromSlice returns an iterator over a slice of entities.
func entitiesFromSlice(entities []*core.Entity) iter.Seq[*core.Entity] {
	return func(yield func(*core.Entity) bool) {
		for _, entity := range entities {
			if !yield(entity) {
				return
			}
		}
	}
}

// ingestBatched reads from a source iterator and ingests entities in batches.
func ingestBatched(ctx context.Context, pipeline *ingestion.Pipeline, source iter.Seq[*core.Entity], batchSize int) error {
	batch := make([]*core.Entity, 0, batchSize)

	for entity := range source {
		batch = append(batch, entity)
		if len(batch) == batchSize {
			if _, err := pipeline.IngestEntities(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	// Process any remaining entities
	if len(batch) > 0 {
		if _, err := pipeline.IngestEntities(ctx, batch...); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	db, err := affinity.NewDatabase(*dbPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ingester, err := db.NewIngestionPipeline()
	if err != nil {
		panic(err)
	}
	defer ingester.Release()

	ctx := context.Background()

	// Determine source of seed data
	var source iter.Seq[*core.Entity]
	if seedFileName != nil && *seedFileName != "" {
		source, err = entitiesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = entitiesFromSlice(roster)
	}

	// Ingest in batches of 5
	if err := ingestBatched(ctx, ingester, source, 5); err != nil {
		panic(err)
	}
}
