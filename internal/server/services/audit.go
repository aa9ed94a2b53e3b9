package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sfstore/sfs/internal/common"
	"github.com/sfstore/sfs/internal/logging"
	sc "github.com/sfstore/sfs/internal/server/config"
	"github.com/sfstore/sfs/internal/server/models"
	"github.com/sfstore/sfs/internal/server/objstore"
	"github.com/sfstore/sfs/internal/server/repositories/repomanager"
)

const auditPageLimit = 100

// AuditService detects divergences between the metadata store and the
// object store. It only flags, it never silently repairs: reconciliation
// is a separate, explicitly triggered action. Scans are read-only against
// both backends and safe to run concurrently with live traffic.
type AuditService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	store  objstore.Store
	config *sc.Config
	logger logging.Logger

	mu      sync.Mutex
	journal []models.Divergence
}

var _ Flagger = (*AuditService)(nil)

func NewAuditService(db *sql.DB, repos repomanager.RepositoryManager, store objstore.Store,
	config *sc.Config, logger logging.Logger) *AuditService {
	return &AuditService{
		db:     db,
		repos:  repos,
		store:  store,
		config: config,
		logger: logger.With("service", "audit"),
	}
}

// Flag journals a divergence observed by the coordinator mid-protocol.
func (s *AuditService) Flag(d models.Divergence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.journal {
		if existing.Kind == d.Kind && existing.StorageKey == d.StorageKey {
			return
		}
	}
	s.journal = append(s.journal, d)
}

// Flagged returns a copy of the journal of coordinator-reported divergences.
func (s *AuditService) Flagged() []models.Divergence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Divergence, len(s.journal))
	copy(out, s.journal)
	return out
}

// Scan walks every basket and compares the storage keys referenced by
// metadata against the keys actually present under the basket's prefix.
// Both views may be stale relative to in-flight traffic; that is fine,
// scanning only flags, policy decides later.
func (s *AuditService) Scan(ctx context.Context) ([]models.Divergence, error) {
	var divergences []models.Divergence

	for offset := 0; ; offset += auditPageLimit {
		page, err := s.repos.Baskets(s.db).List(ctx, auditPageLimit, offset)
		if err != nil {
			return nil, fmt.Errorf("listing baskets: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, basket := range page {
			found, err := s.scanBasket(ctx, basket.Name)
			if err != nil {
				return nil, err
			}
			divergences = append(divergences, found...)
		}

		if len(page) < auditPageLimit {
			break
		}
	}

	return divergences, nil
}

func (s *AuditService) scanBasket(ctx context.Context, basket string) ([]models.Divergence, error) {
	refs, err := s.repos.Files(s.db).SelectKeys(ctx, basket)
	if err != nil {
		return nil, fmt.Errorf("listing records of basket %q: %w", basket, err)
	}

	objects, err := s.listObjects(ctx, basket+"/")
	if err != nil {
		return nil, fmt.Errorf("listing objects of basket %q: %w", basket, err)
	}

	recorded := make(map[string]string, len(refs)) // storage key -> file id
	for _, ref := range refs {
		recorded[ref.StorageKey] = ref.ID
	}
	present := make(map[string]struct{}, len(objects))
	for _, obj := range objects {
		present[obj.Key] = struct{}{}
	}

	now := nowUTC()
	var divergences []models.Divergence

	for _, obj := range objects {
		if _, ok := recorded[obj.Key]; !ok {
			divergences = append(divergences, models.Divergence{
				Kind:       models.DivergenceOrphanedObject,
				BasketName: basket,
				StorageKey: obj.Key,
				ObservedAt: now,
			})
		}
	}
	for _, ref := range refs {
		if _, ok := present[ref.StorageKey]; !ok {
			divergences = append(divergences, models.Divergence{
				Kind:       models.DivergenceDanglingRecord,
				BasketName: basket,
				StorageKey: ref.StorageKey,
				FileID:     ref.ID,
				ObservedAt: now,
			})
		}
	}

	return divergences, nil
}

// listObjects lists a prefix, retrying transient backend failures with
// fibonacci backoff. Foreground operations never retry; the auditor is
// background work where a retry masks nothing.
func (s *AuditService) listObjects(ctx context.Context, prefix string) ([]objstore.ObjectInfo, error) {
	var objects []objstore.ObjectInfo

	backoff := retry.WithMaxRetries(s.config.AuditRetryMax, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		objects, err = s.store.List(ctx, prefix)
		if err != nil && errors.Is(err, common.ErrTransient) {
			return retry.RetryableError(err)
		}
		return err
	})
	return objects, err
}

// Reconcile applies the reconciliation policy to a fresh scan:
//
//   - orphaned objects older than the grace period are deleted; younger
//     ones are skipped so an in-flight upload that has not committed its
//     metadata yet is never raced;
//   - dangling records are marked suspect for operator review, never
//     auto-deleted.
//
// Returns the number of reclaimed objects and marked records.
func (s *AuditService) Reconcile(ctx context.Context) (reclaimed, marked int, err error) {
	divergences, err := s.Scan(ctx)
	if err != nil {
		return 0, 0, err
	}

	cutoff := nowUTC().Add(-s.config.OrphanGracePeriod)

	for _, d := range divergences {
		switch d.Kind {
		case models.DivergenceOrphanedObject:
			info, err := s.store.Head(ctx, d.StorageKey)
			if err != nil {
				if errors.Is(err, common.ErrNotFound) {
					continue // already gone
				}
				s.logger.Error(ctx, "head failed during reclaim", "key", d.StorageKey, "error", err)
				continue
			}
			if info.LastModified.After(cutoff) {
				continue // inside the grace period
			}
			if err := s.store.Delete(ctx, d.StorageKey); err != nil {
				s.logger.Error(ctx, "orphan reclaim failed", "key", d.StorageKey, "error", err)
				continue
			}
			reclaimed++
			s.logger.Info(ctx, "orphaned object reclaimed", "key", d.StorageKey)

		case models.DivergenceDanglingRecord:
			if err := s.repos.Files(s.db).MarkIntegritySuspect(ctx, d.BasketName, d.FileID); err != nil {
				s.logger.Error(ctx, "failed to mark dangling record", "basket", d.BasketName, "file", d.FileID, "error", err)
				continue
			}
			marked++
			s.Flag(d)
		}
	}

	return reclaimed, marked, nil
}

// Run executes scans on the configured interval until ctx is canceled.
// Divergences are logged and journaled; nothing is repaired automatically.
func (s *AuditService) Run(ctx context.Context) {
	if s.config.AuditInterval <= 0 {
		s.logger.Info(ctx, "background auditor disabled")
		return
	}

	ticker := time.NewTicker(s.config.AuditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			divergences, err := s.Scan(ctx)
			if err != nil {
				s.logger.Error(ctx, "consistency scan failed", "error", err)
				continue
			}
			for _, d := range divergences {
				s.logger.Warn(ctx, "divergence detected",
					"kind", string(d.Kind), "basket", d.BasketName, "key", d.StorageKey, "file", d.FileID)
				s.Flag(d)
			}
			s.logger.Info(ctx, "consistency scan finished", "divergences", len(divergences))
		}
	}
}
