// Package services implements the storage coordination layer: basket
// lifecycle, the file upload/download/replace/delete protocols spanning the
// object store and the metadata store, and the consistency auditor.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sfstore/sfs/internal/common"
	"github.com/sfstore/sfs/internal/dbx"
	"github.com/sfstore/sfs/internal/logging"
	"github.com/sfstore/sfs/internal/server/models"
	"github.com/sfstore/sfs/internal/server/repositories/repomanager"
)

const defaultPageLimit = 50

// BasketService owns basket lifecycle. Baskets are a metadata-only concept:
// nothing is created in the object store for them, objects simply share the
// basket name as a key prefix.
type BasketService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	files  *FileService
	logger logging.Logger
}

func NewBasketService(db *sql.DB, repos repomanager.RepositoryManager, files *FileService, logger logging.Logger) *BasketService {
	return &BasketService{
		db:     db,
		repos:  repos,
		files:  files,
		logger: logger.With("service", "baskets"),
	}
}

// Create normalizes the name and creates the basket record. A duplicate
// name returns ErrConflict.
func (s *BasketService) Create(ctx context.Context, name, description string) (*models.Basket, error) {
	slug, err := NormalizeBasketName(name)
	if err != nil {
		return nil, err
	}

	basket := &models.Basket{Name: slug, Description: description}
	if err := s.repos.Baskets(s.db).Create(ctx, basket); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "basket created", "basket", slug)
	return basket, nil
}

// Get returns the basket with its derived file count, or ErrNotFound.
func (s *BasketService) Get(ctx context.Context, name string) (*models.Basket, error) {
	slug, err := NormalizeBasketName(name)
	if err != nil {
		return nil, err
	}
	return s.repos.Baskets(s.db).Get(ctx, slug)
}

// List returns baskets with the caller's pagination parameters.
func (s *BasketService) List(ctx context.Context, limit, offset int) ([]*models.Basket, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.Baskets(s.db).List(ctx, limit, offset)
}

// Delete removes a basket. Without cascade, a basket holding at least one
// file is refused with ErrNotEmpty. With cascade, every contained file is
// deleted through the file coordinator first; if any of those deletions
// fail, the basket record is left untouched and a CascadeError names the
// files that could not be removed.
func (s *BasketService) Delete(ctx context.Context, name string, cascade bool) error {
	slug, err := NormalizeBasketName(name)
	if err != nil {
		return err
	}

	if _, err := s.repos.Baskets(s.db).Get(ctx, slug); err != nil {
		return err
	}

	if cascade {
		failed, err := s.files.DeleteAllInBasket(ctx, slug)
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			return &common.CascadeError{Basket: slug, FileIDs: failed}
		}
	}

	// Emptiness check and row delete share a transaction so a concurrent
	// upload cannot slip a file into a basket that is being removed.
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Baskets(tx)
		n, err := repo.CountFiles(ctx, slug)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("basket %q holds %d file(s): %w", slug, n, common.ErrNotEmpty)
		}
		return repo.Delete(ctx, slug)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "basket deleted", "basket", slug, "cascade", cascade)
	return nil
}
