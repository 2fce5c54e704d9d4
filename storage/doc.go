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


// Package storage provides the storage abstraction layer for affinity.
//
// This package defines repository interfaces that decouple storage
// implementation from the matching engine. It allows for different
// storage backends (BadgerDB, in-memory, etc.) to be used interchangeably.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - EntityRepository: operations for entity records and push-downable
//     filter scans
//   - EmbeddingRepository: operations for embedding records
//
// Public constructors return interface types to enforce abstraction:
//
//	repo, err := badger.NewEntityRepository(backend)  // returns storage.EntityRepository
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. The matching engine only
// reads entity and embedding records; writes come from the ingestion
// pipeline and callers.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
