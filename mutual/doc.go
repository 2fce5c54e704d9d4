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


// Package mutual finds entities that match each other in both directions.
//
// A mutual match requires two conditions: the candidate ranks among the
// source's top matches, and the source ranks among the candidate's top
// matches, both above the similarity threshold. Popular candidates can
// crowd a source out of their reverse results, so mutuality is stricter
// than symmetric similarity alone.
//
// The forward search over-fetches by a configurable factor, and reverse
// lookups fan out across a bounded worker pool. A failure on one
// candidate is logged and dropped; it never fails the whole run.
package mutual
