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


// Package ingestion feeds entities into the store and keeps their
// embeddings current.
//
// The Pipeline writes entities synchronously and generates embeddings
// asynchronously on a bounded worker pool. Each embedding record moves
// through a lifecycle: Pending while scheduled, then Generated or
// Failed. Staleness is detected by hashing the embedded text, so
// re-ingesting an unchanged entity does not re-embed it.
//
// The Reindexer regenerates every stored embedding synchronously, for
// use after an embedding model change.
package ingestion
