package files

import (
	"context"

	"github.com/sfstore/sfs/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.FileRecord) error
	Get(ctx context.Context, basket, id string) (*models.FileRecord, error)
	// Update replaces the record's mutable fields using compare-and-set on
	// file.Version. On success the version is bumped in place.
	Update(ctx context.Context, file *models.FileRecord) error
	Delete(ctx context.Context, basket, id string) error
	List(ctx context.Context, basket string, limit, offset int) ([]*models.FileRecord, error)
	// SelectKeys returns id and storage key for every record in the basket,
	// for the auditor's set comparison.
	SelectKeys(ctx context.Context, basket string) ([]*models.FileRecord, error)
	MarkIntegritySuspect(ctx context.Context, basket, id string) error
}
