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


package ingestion

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/affinity/core"
)

// Reindexer regenerates the embedding of every stored entity, for
// example after switching embedding models. Work runs synchronously so
// the caller knows when the store is fully reindexed.
type Reindexer struct {
	pipeline       *Pipeline
	progress       io.Writer
	reportInterval int
}

// NewReindexer creates a new reindexer.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(pipeline *Pipeline, progress io.Writer, reportInterval int) *Reindexer {
	if reportInterval <= 0 {
		reportInterval = 100
	}
	return &Reindexer{
		pipeline:       pipeline,
		progress:       progress,
		reportInterval: reportInterval,
	}
}

// Run reindexes all entities in the store.
// Progress is reported to the configured writer.
func (r *Reindexer) Run(ctx context.Context) error {
	entities, err := r.pipeline.entityRepository.ListEntitiesByType(ctx, core.EntityTypeUnspecified)
	if err != nil {
		return fmt.Errorf("failed to list entities: %w", err)
	}

	total := len(entities)
	if total == 0 {
		fmt.Fprintf(r.progress, "No entities found in database (0 entities)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d entities\n", total)

	tracker := NewProgressTracker(r.progress, total, r.reportInterval)
	tracker.Start()

	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return err
		}

		text := EmbeddableText(entity)
		r.pipeline.generateEmbedding(ctx, entity.Id, text, core.HashSummary(text))
		tracker.Increment(1)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reindex complete. Processed %d entities in %v (%.1f entities/sec)\n",
		total, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())

	return nil
}
