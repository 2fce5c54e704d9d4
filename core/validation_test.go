package core

import (
	"errors"
	"testing"
)

func TestValidateEntity(t *testing.T) {
	tests := []struct {
		name    string
		entity  *Entity
		wantErr error
	}{
		{
			name: "valid entity",
			entity: &Entity{
				Id:   1,
				Type: EntityTypePerson,
				Name: "Ada",
			},
			wantErr: nil,
		},
		{
			name: "valid entity without summary",
			entity: &Entity{
				Id:      2,
				Type:    EntityTypeJob,
				Name:    "Backend Engineer",
				Summary: "",
			},
			wantErr: nil,
		},
		{
			name:    "nil entity",
			entity:  nil,
			wantErr: ErrInvalidEntity,
		},
		{
			name: "empty name",
			entity: &Entity{
				Id:   3,
				Type: EntityTypePerson,
			},
			wantErr: ErrEmptyEntityName,
		},
		{
			name: "unspecified type",
			entity: &Entity{
				Id:   4,
				Name: "Mystery",
			},
			wantErr: ErrInvalidEntityType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntity(tt.entity)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEntity() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEntity() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmbeddingRecord(t *testing.T) {
	const dims = 4

	tests := []struct {
		name    string
		record  *EmbeddingRecord
		wantErr error
	}{
		{
			name: "valid generated record",
			record: &EmbeddingRecord{
				EntityId: 1,
				Status:   EmbeddingStatusGenerated,
				Vector:   []float32{0.1, 0.2, 0.3, 0.4},
			},
			wantErr: nil,
		},
		{
			name: "valid pending record",
			record: &EmbeddingRecord{
				EntityId: 2,
				Status:   EmbeddingStatusPending,
			},
			wantErr: nil,
		},
		{
			name: "valid failed record",
			record: &EmbeddingRecord{
				EntityId:     3,
				Status:       EmbeddingStatusFailed,
				RetryCount:   2,
				ErrorMessage: "embedding service unreachable",
			},
			wantErr: nil,
		},
		{
			name:    "nil record",
			record:  nil,
			wantErr: ErrInvalidEmbeddingRecord,
		},
		{
			name: "generated with wrong dimensionality",
			record: &EmbeddingRecord{
				EntityId: 4,
				Status:   EmbeddingStatusGenerated,
				Vector:   []float32{0.1, 0.2},
			},
			wantErr: ErrVectorDimensionMismatch,
		},
		{
			name: "generated with no vector",
			record: &EmbeddingRecord{
				EntityId: 5,
				Status:   EmbeddingStatusGenerated,
			},
			wantErr: ErrVectorDimensionMismatch,
		},
		{
			name: "pending with vector",
			record: &EmbeddingRecord{
				EntityId: 6,
				Status:   EmbeddingStatusPending,
				Vector:   []float32{0.1, 0.2, 0.3, 0.4},
			},
			wantErr: ErrUnexpectedVector,
		},
		{
			name: "unknown status",
			record: &EmbeddingRecord{
				EntityId: 7,
				Status:   EmbeddingStatus(99),
			},
			wantErr: ErrInvalidEmbeddingStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmbeddingRecord(tt.record, dims)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateEmbeddingRecord() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEmbeddingRecord() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmbeddingRecordUnknownDimensionality(t *testing.T) {
	// With a non-positive dimensionality only the shape is checked:
	// Generated needs some vector, Pending and Failed need none.
	err := ValidateEmbeddingRecord(&EmbeddingRecord{
		EntityId: 1,
		Status:   EmbeddingStatusGenerated,
		Vector:   []float32{0.5, 0.5},
	}, 0)
	if err != nil {
		t.Errorf("ValidateEmbeddingRecord() error = %v, want nil", err)
	}

	err = ValidateEmbeddingRecord(&EmbeddingRecord{
		EntityId: 2,
		Status:   EmbeddingStatusGenerated,
	}, 0)
	if !errors.Is(err, ErrVectorDimensionMismatch) {
		t.Errorf("ValidateEmbeddingRecord() error = %v, want %v", err, ErrVectorDimensionMismatch)
	}

	err = ValidateEmbeddingRecord(&EmbeddingRecord{
		EntityId: 3,
		Status:   EmbeddingStatusFailed,
		Vector:   []float32{0.5},
	}, 0)
	if !errors.Is(err, ErrUnexpectedVector) {
		t.Errorf("ValidateEmbeddingRecord() error = %v, want %v", err, ErrUnexpectedVector)
	}
}
