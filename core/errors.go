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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidInput indicates malformed caller input (vectors, filter
	// trees, query parameters). Surfaced synchronously, never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidEntity indicates an Entity failed validation.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrInvalidEmbeddingRecord indicates an EmbeddingRecord failed validation.
	ErrInvalidEmbeddingRecord = errors.New("invalid embedding record")

	// ErrEmptyEntityName indicates the Name field is empty.
	ErrEmptyEntityName = errors.New("entity name cannot be empty")

	// ErrInvalidEntityType indicates an unknown EntityType value.
	ErrInvalidEntityType = errors.New("invalid entity type")

	// ErrInvalidEmbeddingStatus indicates an unknown EmbeddingStatus value.
	ErrInvalidEmbeddingStatus = errors.New("invalid embedding status")

	// ErrVectorDimensionMismatch indicates a Generated record's vector
	// length does not equal the declared model dimensionality.
	ErrVectorDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnexpectedVector indicates a Pending or Failed record carries a vector.
	ErrUnexpectedVector = errors.New("pending and failed records carry no vector")
)
