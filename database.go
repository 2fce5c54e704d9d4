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


package affinity

import (
	"log/slog"

	"github.com/poiesic/affinity/ai"
	"github.com/poiesic/affinity/ai/openai"
	"github.com/poiesic/affinity/ingestion"
	"github.com/poiesic/affinity/mutual"
	"github.com/poiesic/affinity/search"
	"github.com/poiesic/affinity/storage"
	"github.com/poiesic/affinity/storage/badger"
)

// Database bundles the storage backend, repositories, and AI provider
// behind one lifecycle, and builds the engines that run on top of them.
type Database struct {
	backend       *badger.Backend
	entityRepo    storage.EntityRepository
	embeddingRepo storage.EmbeddingRepository
	provider      ai.AIProvider
	aiConfig      *ai.Config
	logger        *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
}

// WithAIConfig sets the configuration for the OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects a pre-built AI provider, bypassing the
// OpenAI-compatible default. Tests use it to plug in mocks.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	// Apply options
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
	}
	for _, opt := range opts {
		opt(options)
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}

	// Create entity repository
	entityRepo, err := badger.NewEntityRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Create embedding repository
	embeddingRepo, err := badger.NewEmbeddingRepository(backend)
	if err != nil {
		entityRepo.Close()
		backend.Close()
		return nil, err
	}

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			embeddingRepo.Close()
			entityRepo.Close()
			backend.Close()
			return nil, err
		}
	}

	return &Database{
		backend:       backend,
		entityRepo:    entityRepo,
		embeddingRepo: embeddingRepo,
		provider:      provider,
		aiConfig:      options.aiConfig,
		logger:        slog.Default(),
	}, nil
}

func (db *Database) Close() error {
	// Close AI provider first
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	// Close repositories
	if err := db.embeddingRepo.Close(); err != nil {
		db.logger.Error("error closing embedding repository", "err", err)
		return err
	}
	if err := db.entityRepo.Close(); err != nil {
		db.logger.Error("error closing entity repository", "err", err)
		return err
	}

	// Close backend
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) EntityRepository() storage.EntityRepository {
	return db.entityRepo
}

func (db *Database) EmbeddingRepository() storage.EmbeddingRepository {
	return db.embeddingRepo
}

func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	// The configured model dimensionality travels with the pipeline so
	// generated vectors are checked before they are stored. Callers can
	// still override it through opts.
	opts = append([]ingestion.Option{ingestion.WithDimensions(db.aiConfig.Dimensions)}, opts...)
	return ingestion.NewPipeline(db.entityRepo, db.embeddingRepo, db.provider, opts...)
}

func (db *Database) NewSearchEngine(opts ...search.Option) (*search.Engine, error) {
	return search.NewEngine(db.entityRepo, db.embeddingRepo, db.provider, opts...)
}

func (db *Database) NewMutualEngine(opts ...mutual.Option) (*mutual.Engine, error) {
	searchEngine, err := db.NewSearchEngine()
	if err != nil {
		return nil, err
	}
	return mutual.NewEngine(searchEngine, db.entityRepo, db.embeddingRepo, opts...)
}
