package models

import "time"

// DivergenceKind names the two ways metadata and object-store state can
// disagree.
type DivergenceKind string

const (
	// DivergenceOrphanedObject: an object exists with no referencing record.
	DivergenceOrphanedObject DivergenceKind = "orphaned_object"
	// DivergenceDanglingRecord: a record references a missing object.
	DivergenceDanglingRecord DivergenceKind = "dangling_record"
)

// Divergence is a single detected mismatch between the metadata store and
// the object store.
type Divergence struct {
	Kind       DivergenceKind `json:"kind"`
	BasketName string         `json:"basket_name"`
	StorageKey string         `json:"storage_key"`
	// FileID is set for dangling records only.
	FileID     string    `json:"file_id,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}
