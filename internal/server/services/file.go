package services

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/sfstore/sfs/internal/common"
	"github.com/sfstore/sfs/internal/logging"
	sc "github.com/sfstore/sfs/internal/server/config"
	"github.com/sfstore/sfs/internal/server/models"
	"github.com/sfstore/sfs/internal/server/objstore"
	"github.com/sfstore/sfs/internal/server/repositories/repomanager"
)

// Flagger receives divergences detected by the coordinator so the auditor
// can inspect them later. Implemented by AuditService.
type Flagger interface {
	Flag(d models.Divergence)
}

// FileService is the central coordinator. Each operation is a short-lived
// multi-step protocol across the object store and the metadata store, with
// a fixed write order and explicit compensation on partial failure:
// object before metadata on create, metadata before object on delete. The
// cheaper-to-detect inconsistency (an orphaned object) is the only failure
// mode either ordering can leave behind.
type FileService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	store   objstore.Store
	config  *sc.Config
	flagger Flagger
	logger  logging.Logger
}

func NewFileService(db *sql.DB, repos repomanager.RepositoryManager, store objstore.Store,
	config *sc.Config, flagger Flagger, logger logging.Logger) *FileService {
	return &FileService{
		db:      db,
		repos:   repos,
		store:   store,
		config:  config,
		flagger: flagger,
		logger:  logger.With("service", "files"),
	}
}

// StorageKey derives the object-store key for a file from its basket and id.
// The derivation is deterministic and the inputs are immutable, so the key
// never changes for the lifetime of a record.
func StorageKey(basket, id string) string {
	return basket + "/" + id
}

// stepCtx bounds a single backend call. It deliberately ignores caller
// cancellation: a protocol step that has started must complete or be
// compensated, never abandoned halfway. Cancellation is honored between
// steps instead.
func (s *FileService) stepCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.config.StepTimeout)
}

// Upload stores content as a new file in the basket.
//
// Protocol: verify basket, write the object, then create the metadata
// record. A failed object write aborts with nothing to clean up. A failed
// record create triggers compensation (delete the just-written object);
// if compensation also fails the orphaned key is flagged for audit and the
// caller sees ErrUploadDiverged instead of a plain ErrUploadFailed.
func (s *FileService) Upload(ctx context.Context, basketName, filename, contentType string, content io.Reader) (*models.FileRecord, error) {
	slug, err := NormalizeBasketName(basketName)
	if err != nil {
		return nil, err
	}

	stepCtx, cancel := s.stepCtx(ctx)
	_, err = s.repos.Baskets(s.db).Get(stepCtx, slug)
	cancel()
	if err != nil {
		return nil, err
	}

	// Buffer the payload to know size and checksum before the object write.
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	sum := sha256.Sum256(data)

	record := &models.FileRecord{
		ID:          uuid.New().String(),
		BasketName:  slug,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Checksum:    hex.EncodeToString(sum[:]),
	}
	record.StorageKey = StorageKey(slug, record.ID)

	stepCtx, cancel = s.stepCtx(ctx)
	err = s.store.Put(stepCtx, record.StorageKey, bytesReader(data), record.Size, contentType)
	cancel()
	if err != nil {
		// Nothing was written, nothing to compensate.
		return nil, fmt.Errorf("%w: object write: %w", common.ErrUploadFailed, err)
	}

	// A caller that disconnected while the object was being written gets
	// the same treatment as a metadata failure: compensate, then report.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, s.compensateUpload(ctx, record.StorageKey, ctxErr)
	}

	stepCtx, cancel = s.stepCtx(ctx)
	err = s.repos.Files(s.db).Create(stepCtx, record)
	cancel()
	if err != nil {
		return nil, s.compensateUpload(ctx, record.StorageKey, err)
	}

	s.logger.Info(ctx, "upload committed", "basket", slug, "file", record.ID, "size", record.Size,
		"outcome", models.OutcomeCommitted.String())
	return record, nil
}

// compensateUpload deletes the object written by a failed upload. Success
// means the system is back in a clean state (ErrUploadFailed); failure
// means the object is orphaned, which is flagged and surfaced as
// ErrUploadDiverged rather than downgraded to a generic failure.
func (s *FileService) compensateUpload(ctx context.Context, key string, cause error) error {
	stepCtx, cancel := s.stepCtx(ctx)
	delErr := s.store.Delete(stepCtx, key)
	cancel()

	if delErr != nil {
		s.flagger.Flag(models.Divergence{
			Kind:       models.DivergenceOrphanedObject,
			BasketName: basketOfKey(key),
			StorageKey: key,
			ObservedAt: nowUTC(),
		})
		s.logger.Error(ctx, "upload diverged, orphaned object flagged",
			"key", key, "cause", cause, "compensation_error", delErr,
			"outcome", models.OutcomeDiverged.String())
		return fmt.Errorf("%w: metadata create: %w (compensation failed: %v)", common.ErrUploadDiverged, cause, delErr)
	}

	s.logger.Warn(ctx, "upload compensated", "key", key, "cause", cause,
		"outcome", models.OutcomeCompensated.String())
	return fmt.Errorf("%w: metadata create: %w", common.ErrUploadFailed, cause)
}

// Download returns the file record and a reader over the object bytes.
// A record whose object is missing is a detected divergence: the record is
// marked suspect, flagged for audit, and the caller gets ErrIntegrity so
// "never existed" and "corrupted state" stay distinguishable.
func (s *FileService) Download(ctx context.Context, basketName, id string) (*models.FileRecord, io.ReadCloser, error) {
	slug, err := NormalizeBasketName(basketName)
	if err != nil {
		return nil, nil, err
	}

	stepCtx, cancel := s.stepCtx(ctx)
	record, err := s.repos.Files(s.db).Get(stepCtx, slug, id)
	cancel()
	if err != nil {
		return nil, nil, err
	}

	body, _, err := s.store.Get(ctx, record.StorageKey)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.flagDangling(ctx, record)
			return nil, nil, fmt.Errorf("object %q missing for existing record: %w", record.StorageKey, common.ErrIntegrity)
		}
		return nil, nil, err
	}

	return record, body, nil
}

// Get returns the file record only, or ErrNotFound.
func (s *FileService) Get(ctx context.Context, basketName, id string) (*models.FileRecord, error) {
	slug, err := NormalizeBasketName(basketName)
	if err != nil {
		return nil, err
	}
	return s.repos.Files(s.db).Get(ctx, slug, id)
}

// List returns file records in the basket with the caller's pagination.
func (s *FileService) List(ctx context.Context, basketName string, limit, offset int) ([]*models.FileRecord, error) {
	slug, err := NormalizeBasketName(basketName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.Files(s.db).List(ctx, slug, limit, offset)
}

// Replace overwrites a file's content in place, reusing the storage key.
//
// The new object is written first, then the record's size/checksum/filename
// are updated with compare-and-set. A failed metadata update after a
// successful object write leaves the old record pointing at the new bytes
// under the same key: no orphan exists, the next successful update heals
// the record, so nothing is flagged.
func (s *FileService) Replace(ctx context.Context, basketName, id, filename, contentType string, content io.Reader) (*models.FileRecord, error) {
	slug, err := NormalizeBasketName(basketName)
	if err != nil {
		return nil, err
	}

	stepCtx, cancel := s.stepCtx(ctx)
	record, err := s.repos.Files(s.db).Get(stepCtx, slug, id)
	cancel()
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	sum := sha256.Sum256(data)

	stepCtx, cancel = s.stepCtx(ctx)
	err = s.store.Put(stepCtx, record.StorageKey, bytesReader(data), int64(len(data)), contentType)
	cancel()
	if err != nil {
		// Old object and old record are both intact.
		return nil, fmt.Errorf("%w: object write: %w", common.ErrUploadFailed, err)
	}

	if filename != "" {
		record.Filename = filename
	}
	if contentType != "" {
		record.ContentType = contentType
	}
	record.Size = int64(len(data))
	record.Checksum = hex.EncodeToString(sum[:])
	record.IntegrityStatus = models.IntegrityOK

	stepCtx, cancel = s.stepCtx(ctx)
	err = s.repos.Files(s.db).Update(stepCtx, record)
	cancel()
	if err != nil {
		s.logger.Warn(ctx, "replace wrote object but metadata update failed; key unchanged, will self-heal",
			"basket", slug, "file", id, "error", err)
		return nil, fmt.Errorf("%w: metadata update: %w", common.ErrUploadFailed, err)
	}

	s.logger.Info(ctx, "replace committed", "basket", slug, "file", id, "size", record.Size,
		"outcome", models.OutcomeCommitted.String())
	return record, nil
}

// Delete removes a file. Ordering is the reverse of Upload: the metadata
// record goes first, so the file is logically gone the moment the record
// is. A failed object deletion afterwards leaves a reclaimable orphan,
// which is flagged, and the caller still sees success.
func (s *FileService) Delete(ctx context.Context, basketName, id string) error {
	slug, err := NormalizeBasketName(basketName)
	if err != nil {
		return err
	}

	stepCtx, cancel := s.stepCtx(ctx)
	record, err := s.repos.Files(s.db).Get(stepCtx, slug, id)
	cancel()
	if err != nil {
		return err
	}

	stepCtx, cancel = s.stepCtx(ctx)
	err = s.repos.Files(s.db).Delete(stepCtx, slug, id)
	cancel()
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// Lost the race with a concurrent delete.
			return err
		}
		// Record untouched, object untouched: fully intact and queryable.
		return fmt.Errorf("%w: metadata delete: %w", common.ErrDeleteFailed, err)
	}

	stepCtx, cancel = s.stepCtx(ctx)
	err = s.store.Delete(stepCtx, record.StorageKey)
	cancel()
	if err != nil {
		s.flagger.Flag(models.Divergence{
			Kind:       models.DivergenceOrphanedObject,
			BasketName: slug,
			StorageKey: record.StorageKey,
			ObservedAt: nowUTC(),
		})
		s.logger.Warn(ctx, "file logically deleted, object deletion deferred to audit",
			"basket", slug, "file", id, "key", record.StorageKey, "error", err)
		return nil
	}

	s.logger.Info(ctx, "delete committed", "basket", slug, "file", id,
		"outcome", models.OutcomeCommitted.String())
	return nil
}

// DeleteAllInBasket deletes every file in the basket through the normal
// delete protocol and returns the ids of files that could not be removed.
// Used by cascading basket deletion.
func (s *FileService) DeleteAllInBasket(ctx context.Context, slug string) ([]string, error) {
	refs, err := s.repos.Files(s.db).SelectKeys(ctx, slug)
	if err != nil {
		return nil, err
	}

	var failed []string
	for _, ref := range refs {
		if err := s.Delete(ctx, slug, ref.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
			s.logger.Error(ctx, "cascade file delete failed", "basket", slug, "file", ref.ID, "error", err)
			failed = append(failed, ref.ID)
		}
	}
	return failed, nil
}

// flagDangling marks a record whose object is missing and journals the
// divergence. Best effort: the caller is already reporting ErrIntegrity.
func (s *FileService) flagDangling(ctx context.Context, record *models.FileRecord) {
	s.flagger.Flag(models.Divergence{
		Kind:       models.DivergenceDanglingRecord,
		BasketName: record.BasketName,
		StorageKey: record.StorageKey,
		FileID:     record.ID,
		ObservedAt: nowUTC(),
	})

	stepCtx, cancel := s.stepCtx(ctx)
	defer cancel()
	if err := s.repos.Files(s.db).MarkIntegritySuspect(stepCtx, record.BasketName, record.ID); err != nil {
		s.logger.Error(ctx, "failed to mark dangling record", "basket", record.BasketName, "file", record.ID, "error", err)
	}
}
