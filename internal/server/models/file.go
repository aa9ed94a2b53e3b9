package models

import "time"

// Integrity status values carried by a file record. The auditor marks a
// record suspect when its object is missing, for operator review.
const (
	IntegrityOK      = "ok"
	IntegritySuspect = "suspect"
)

// FileRecord describes metadata for a binary payload stored in the object
// store. A record exists if and only if an object exists at StorageKey;
// temporary violations of that invariant during failure windows are
// detected by the consistency auditor.
type FileRecord struct {
	// ID is a generated identifier, unique within the basket.
	ID string
	// BasketName links the file to its parent basket.
	BasketName string

	// Filename is the original client-supplied name, used for downloads.
	Filename string
	// ContentType is the MIME type reported at upload.
	ContentType string
	// Size is the payload length in bytes.
	Size int64
	// Checksum is the hex-encoded SHA-256 of the payload.
	Checksum string
	// StorageKey is the object-store key, derived from basket and id.
	// Immutable for the lifetime of the record.
	StorageKey string

	// Version is incremented by every metadata update and guards
	// compare-and-set replacement.
	Version int64
	// IntegrityStatus is IntegrityOK or IntegritySuspect.
	IntegrityStatus string

	CreatedAt time.Time
	UpdatedAt time.Time
}
