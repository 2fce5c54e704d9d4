// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/affinity/ai"
	"github.com/poiesic/affinity/ai/openai"
	"github.com/poiesic/affinity/core"
	"github.com/poiesic/affinity/filter"
	"github.com/poiesic/affinity/ingestion"
	"github.com/poiesic/affinity/mutual"
	"github.com/poiesic/affinity/search"
	"github.com/poiesic/affinity/storage"
	"github.com/poiesic/affinity/storage/badger"
	"github.com/urfave/cli/v2"
)

var dbFlag = &cli.StringFlag{
	Name:     "db",
	Aliases:  []string{"d"},
	Usage:    "Path to BadgerDB database directory",
	Required: true,
}

var embeddingFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "embedding-host",
		Usage: "Embedding service host URL",
		Value: "http://localhost:11434/v1",
	},
	&cli.StringFlag{
		Name:     "embedding-model",
		Usage:    "Embedding model name",
		Required: true,
	},
	&cli.IntFlag{
		Name:  "embedding-dimensions",
		Usage: "Embedding model dimensionality",
		Value: 768,
	},
}

func main() {
	app := &cli.App{
		Name:  "affinity",
		Usage: "Semantic entity matching engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "search",
				Usage:  "Search entities by semantic similarity and attribute filters",
				Action: searchCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   "Natural-language query text (blank for attribute-only search)",
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Restrict to one entity type (person, job, property, career, major)",
					},
					&cli.StringFlag{
						Name:  "filter",
						Usage: "Attribute filter tree as JSON",
					},
					&cli.Uint64Flag{
						Name:  "user",
						Usage: "Requesting user ID (0 for anonymous)",
					},
					&cli.BoolFlag{
						Name:  "enforce-privacy",
						Usage: "Gate filter evaluation on per-field visibility",
						Value: true,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Drop candidates scoring below this threshold",
						Value: 0.6,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Skip this many ranked results",
					},
				}, embeddingFlags...),
			},
			{
				Name:   "mutual",
				Usage:  "Find entities that match the source and match it back",
				Action: mutualCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.Uint64Flag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Source entity ID",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "target-type",
						Usage:    "Entity type to match against (person, job, property, career, major)",
						Required: true,
					},
					&cli.Float64Flag{
						Name:  "min-similarity",
						Usage: "Both directions must score above this threshold",
						Value: 0.6,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of mutual matches",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Worker pool size for reverse lookups (0 for CPU count)",
					},
					&cli.IntFlag{
						Name:  "overfetch",
						Usage: "Forward search over-fetch factor",
						Value: mutual.DefaultOverfetchFactor,
					},
				}, embeddingFlags...),
			},
			{
				Name:   "ingest",
				Usage:  "Ingest entities from a file of JSON objects, one per line",
				Action: ingestCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.StringFlag{
						Name:     "src",
						Usage:    "File of entities to ingest, one JSON object per line",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of entities to write in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				}, embeddingFlags...),
			},
			{
				Name:   "reindex",
				Usage:  "Regenerate embeddings for all entities",
				Action: reindexCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N entities",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				}, embeddingFlags...),
			},
			{
				Name:   "retry-failed",
				Usage:  "Re-embed entities whose last embedding attempt failed",
				Action: retryFailedCommand,
				Flags: append([]cli.Flag{
					dbFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of failed records to retry (0 for all)",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				}, embeddingFlags...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openRepositories opens the backend and both repositories.
// The returned closer tears them down in reverse order.
func openRepositories(dbPath string) (storage.EntityRepository, storage.EmbeddingRepository, func(), error) {
	backend, err := badger.OpenBackend(dbPath, false)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	entityRepo, err := badger.NewEntityRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, fmt.Errorf("failed to create entity repository: %w", err)
	}

	embeddingRepo, err := badger.NewEmbeddingRepository(backend)
	if err != nil {
		entityRepo.Close()
		backend.Close()
		return nil, nil, nil, fmt.Errorf("failed to create embedding repository: %w", err)
	}

	closer := func() {
		embeddingRepo.Close()
		entityRepo.Close()
		backend.Close()
	}
	return entityRepo, embeddingRepo, closer, nil
}

func newProvider(c *cli.Context) (ai.AIProvider, error) {
	config := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithDimensions(c.Int("embedding-dimensions")),
	)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return openai.NewProvider(config)
}

func parseTypeFlag(value string, required bool) (core.EntityType, error) {
	if value == "" {
		if required {
			return core.EntityTypeUnspecified, fmt.Errorf("entity type is required")
		}
		return core.EntityTypeUnspecified, nil
	}
	entityType := core.ParseEntityType(value)
	if entityType == core.EntityTypeUnspecified {
		return core.EntityTypeUnspecified, fmt.Errorf("unknown entity type %q", value)
	}
	return entityType, nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	entityRepo, embeddingRepo, closer, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer closer()

	provider, err := newProvider(c)
	if err != nil {
		return err
	}
	defer provider.Close()

	entityType, err := parseTypeFlag(c.String("type"), false)
	if err != nil {
		return err
	}

	var node filter.Node
	if filterJSON := c.String("filter"); filterJSON != "" {
		node, err = filter.ParseJSON([]byte(filterJSON))
		if err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}
	}

	engine, err := search.NewEngine(entityRepo, embeddingRepo, provider)
	if err != nil {
		return err
	}

	result, err := engine.Search(ctx, &search.Query{
		Text:             c.String("query"),
		Type:             entityType,
		Filter:           node,
		RequestingUserId: core.ID(c.Uint64("user")),
		EnforcePrivacy:   c.Bool("enforce-privacy"),
		MinSimilarity:    float32(c.Float64("min-similarity")),
		Limit:            c.Int("limit"),
		Offset:           c.Int("offset"),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("Found %d matches (%d candidates scanned in %v)\n\n",
		result.TotalMatches, result.Metadata.CandidatesScanned, result.Metadata.Duration.Round(time.Millisecond))

	for i, match := range result.Matches {
		fmt.Printf("%d. [%.4f] %s (%s, id=%d, modified %s)\n",
			c.Int("offset")+i+1, match.Score, match.EntityName, match.EntityType,
			match.EntityId, match.LastModified.Format(time.RFC3339))
		for field, value := range match.MatchedAttributes {
			fmt.Printf("     %s = %s\n", field, formatAttr(value))
		}
	}
	return nil
}

func mutualCommand(c *cli.Context) error {
	ctx := context.Background()

	entityRepo, embeddingRepo, closer, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer closer()

	provider, err := newProvider(c)
	if err != nil {
		return err
	}
	defer provider.Close()

	targetType, err := parseTypeFlag(c.String("target-type"), true)
	if err != nil {
		return err
	}

	searchEngine, err := search.NewEngine(entityRepo, embeddingRepo, provider)
	if err != nil {
		return err
	}

	opts := []mutual.Option{
		mutual.WithOverfetchFactor(c.Int("overfetch")),
	}
	if poolSize := c.Int("pool-size"); poolSize > 0 {
		opts = append(opts, mutual.WithPoolSize(poolSize))
	}

	engine, err := mutual.NewEngine(searchEngine, entityRepo, embeddingRepo, opts...)
	if err != nil {
		return err
	}
	defer engine.Release()

	result, err := engine.FindMutualMatches(ctx,
		core.ID(c.Uint64("source")),
		float32(c.Float64("min-similarity")),
		targetType,
		c.Int("limit"))
	if err != nil {
		return fmt.Errorf("mutual match failed: %w", err)
	}

	fmt.Printf("Found %d mutual matches (%d candidates, %d reverse lookups in %v)\n\n",
		result.TotalMatches, result.Metadata.CandidatesEvaluated,
		result.Metadata.ReverseLookups, result.Metadata.Duration.Round(time.Millisecond))

	for i, match := range result.Matches {
		fmt.Printf("%d. [%.4f] entity %d (%s): forward %.4f, reverse %.4f\n",
			i+1, match.MutualScore, match.EntityBId, match.EntityBType,
			match.AToBScore, match.BToAScore)
	}
	return nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	entityRepo, embeddingRepo, closer, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer closer()

	provider, err := newProvider(c)
	if err != nil {
		return err
	}
	defer provider.Close()

	pipeline, err := ingestion.NewPipeline(entityRepo, embeddingRepo, provider,
		ingestion.WithDimensions(c.Int("embedding-dimensions")),
		ingestion.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	f, err := os.Open(c.String("src"))
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer f.Close()

	batchSize := c.Int("batch-size")
	if batchSize < 1 {
		batchSize = 1
	}

	ingested := 0
	batch := make([]*core.Entity, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := pipeline.IngestEntities(ctx, batch...); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		ingested += len(batch)
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		entity, err := storage.UnmarshalEntity(line)
		if err != nil {
			return fmt.Errorf("malformed entity on line %d: %w", ingested+len(batch)+1, err)
		}
		batch = append(batch, entity)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}
	if err := flush(); err != nil {
		return err
	}

	// Embedding generation runs on the pipeline's pool; drain whatever
	// is still pending before the repositories close.
	if err := pipeline.ProcessPending(ctx, 0); err != nil {
		return fmt.Errorf("embedding generation failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Ingested %d entities\n", ingested)
	return nil
}

func reindexCommand(c *cli.Context) error {
	ctx := context.Background()

	entityRepo, embeddingRepo, closer, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer closer()

	provider, err := newProvider(c)
	if err != nil {
		return err
	}
	defer provider.Close()

	pipeline, err := ingestion.NewPipeline(entityRepo, embeddingRepo, provider,
		ingestion.WithDimensions(c.Int("embedding-dimensions")),
		ingestion.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	reindexer := ingestion.NewReindexer(pipeline, os.Stderr, c.Int("report-interval"))
	if err := reindexer.Run(ctx); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
}

func retryFailedCommand(c *cli.Context) error {
	ctx := context.Background()

	entityRepo, embeddingRepo, closer, err := openRepositories(c.String("db"))
	if err != nil {
		return err
	}
	defer closer()

	provider, err := newProvider(c)
	if err != nil {
		return err
	}
	defer provider.Close()

	pipeline, err := ingestion.NewPipeline(entityRepo, embeddingRepo, provider,
		ingestion.WithDimensions(c.Int("embedding-dimensions")),
		ingestion.WithRetry(c.Int("max-retries"), c.Duration("retry-delay")))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	if err := pipeline.RetryFailed(ctx, c.Int("limit")); err != nil {
		return fmt.Errorf("retry failed: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Retry sweep complete")
	return nil
}

func formatAttr(value core.AttrValue) string {
	switch value.Kind {
	case core.AttrString:
		return value.Str
	case core.AttrNumber:
		return fmt.Sprintf("%g", value.Num)
	case core.AttrBool:
		return fmt.Sprintf("%t", value.Bool)
	case core.AttrList:
		items := make([]string, len(value.List))
		for i, item := range value.List {
			items[i] = formatAttr(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case core.AttrMap:
		return fmt.Sprintf("{%d fields}", len(value.Map))
	default:
		return "(absent)"
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
