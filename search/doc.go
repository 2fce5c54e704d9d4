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


// Package search provides similarity search over entities.
//
// The Engine type implements a multi-stage pipeline:
//
//   - Candidate fetch over generated embedding records
//   - Cosine similarity scoring against the query vector
//   - Attribute filtering with per-field privacy gating
//   - Deterministic ranking and pagination
//
// Blank query text switches the engine into attribute-only mode, which
// ranks candidates by how many filter leaves they match instead of by
// vector similarity.
//
// Scoring is a linear scan over stored vectors. Result pages are
// deterministic for a fixed store: ties break on recency, then ID.
package search
