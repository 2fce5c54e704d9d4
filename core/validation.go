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

import "fmt"

// ValidateEntity validates an Entity according to domain rules.
//
// Validation rules:
//   - Name must not be empty
//   - Type must be a known entity type (not Unspecified)
//
// NOT validated (owned by callers or populated later):
//   - Summary (entities without a summary simply never get an embedding)
//   - Attributes (open mapping, any shape is legal)
//   - ID (0 is replaced with a content-based ID at ingestion)
func ValidateEntity(entity *Entity) error {
	if entity == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalidEntity)
	}

	if entity.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, ErrEmptyEntityName)
	}

	if err := ValidateEntityType(entity.Type); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}

	return nil
}

// ValidateEntityType validates that an EntityType is a known concrete type.
func ValidateEntityType(entityType EntityType) error {
	switch entityType {
	case EntityTypePerson, EntityTypeJob, EntityTypeProperty, EntityTypeCareer, EntityTypeMajor:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidEntityType, entityType)
	}
}

// ValidateEmbeddingStatus validates that an EmbeddingStatus has a valid value.
func ValidateEmbeddingStatus(status EmbeddingStatus) error {
	switch status {
	case EmbeddingStatusPending, EmbeddingStatusGenerated, EmbeddingStatusFailed:
		return nil
	default:
		return fmt.Errorf("%w: value %d", ErrInvalidEmbeddingStatus, status)
	}
}

// ValidateEmbeddingRecord validates an EmbeddingRecord against the
// declared model dimensionality.
//
// Validation rules:
//   - Status must be valid
//   - A Generated record's vector length must equal dimensions; a
//     non-positive dimensions only requires the vector to be non-empty
//     (for callers that store records without knowing the model)
//   - Pending and Failed records must carry no vector
func ValidateEmbeddingRecord(record *EmbeddingRecord, dimensions int) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidEmbeddingRecord)
	}

	if err := ValidateEmbeddingStatus(record.Status); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEmbeddingRecord, err)
	}

	switch record.Status {
	case EmbeddingStatusGenerated:
		if len(record.Vector) == 0 {
			return fmt.Errorf("%w: %w: generated record has no vector",
				ErrInvalidEmbeddingRecord, ErrVectorDimensionMismatch)
		}
		if dimensions > 0 && len(record.Vector) != dimensions {
			return fmt.Errorf("%w: %w: got %d, want %d",
				ErrInvalidEmbeddingRecord, ErrVectorDimensionMismatch, len(record.Vector), dimensions)
		}
	default:
		if len(record.Vector) != 0 {
			return fmt.Errorf("%w: %w", ErrInvalidEmbeddingRecord, ErrUnexpectedVector)
		}
	}

	return nil
}
