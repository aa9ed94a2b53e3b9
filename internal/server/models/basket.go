// Package models defines the data models persisted by the metadata store.
package models

import "time"

// Basket is a named logical container for files. The name is slug-normalized
// and immutable once created; renaming is modeled as delete+create.
type Basket struct {
	// Name is the unique, URL-safe identity of the basket.
	Name string
	// Description is optional free text.
	Description string
	// FileCount is derived at read time from the files table, never stored.
	FileCount int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
