package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/affinity/core"
)

// Key prefixes for different data types
const (
	entityRecordPrefix    = "entrec"
	entityTypePrefix      = "enttyp"
	embeddingRecordPrefix = "embrec"
	embeddingStatusPrefix = "embsta"
)

// makeEntityKey generates a key for an entity by ID.
func makeEntityKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", entityRecordPrefix, id))
}

// makeEntityTypeKey generates a composite key for the type index.
// Format: prefix:type:id
func makeEntityTypeKey(entityType core.EntityType, id core.ID) []byte {
	prefix := entityTypePrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for type + 8 bytes for ID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(entityType))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialEntityTypeKey generates a partial key for type scans.
// Format: prefix:type
func makePartialEntityTypeKey(entityType core.EntityType) []byte {
	prefix := entityTypePrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(entityType))
	return buf
}

// makeEmbeddingKey generates a key for an embedding record by entity ID.
func makeEmbeddingKey(entityId core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", embeddingRecordPrefix, entityId))
}

// makeEmbeddingStatusKey generates a composite key for the status index.
// Format: prefix:status:entityId
func makeEmbeddingStatusKey(status core.EmbeddingStatus, entityId core.ID) []byte {
	prefix := embeddingStatusPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for status + 8 bytes for entity ID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(status))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(entityId))
	return buf
}

// makePartialEmbeddingStatusKey generates a partial key for status scans.
// Format: prefix:status
func makePartialEmbeddingStatusKey(status core.EmbeddingStatus) []byte {
	prefix := embeddingStatusPrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(status))
	return buf
}
