package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sfstore/sfs/internal/common"
	"github.com/sfstore/sfs/internal/dbx"
	"github.com/sfstore/sfs/internal/server/models"
	"github.com/sfstore/sfs/internal/server/objstore"
	"github.com/sfstore/sfs/internal/server/repositories/baskets"
	"github.com/sfstore/sfs/internal/server/repositories/files"
)

// -------- stateful test fakes --------

type fakeBasketsRepo struct {
	mu      sync.Mutex
	items   map[string]*models.Basket
	deleted []string

	// filesRepo backs the derived file count, mirroring the LEFT JOIN.
	filesRepo *fakeFilesRepo

	createErr error
	getErr    error
	deleteErr error
	countErr  error
}

func newFakeBasketsRepo() *fakeBasketsRepo {
	return &fakeBasketsRepo{items: map[string]*models.Basket{}}
}

func (f *fakeBasketsRepo) Create(ctx context.Context, b *models.Basket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.items[b.Name]; ok {
		return fmt.Errorf("basket %q: %w", b.Name, common.ErrConflict)
	}
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	f.items[b.Name] = b
	return nil
}

func (f *fakeBasketsRepo) Get(ctx context.Context, name string) (*models.Basket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.items[name]
	if !ok {
		return nil, fmt.Errorf("basket %q: %w", name, common.ErrNotFound)
	}
	return b, nil
}

func (f *fakeBasketsRepo) List(ctx context.Context, limit, offset int) ([]*models.Basket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Basket
	for _, b := range f.items {
		out = append(out, b)
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:], nil
}

func (f *fakeBasketsRepo) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.items[name]; !ok {
		return fmt.Errorf("basket %q: %w", name, common.ErrNotFound)
	}
	delete(f.items, name)
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeBasketsRepo) CountFiles(ctx context.Context, name string) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	if f.filesRepo == nil {
		return 0, nil
	}
	f.filesRepo.mu.Lock()
	defer f.filesRepo.mu.Unlock()
	var n int64
	for _, rec := range f.filesRepo.items {
		if rec.BasketName == name {
			n++
		}
	}
	return n, nil
}

type fakeFilesRepo struct {
	mu    sync.Mutex
	items map[string]*models.FileRecord // basket/id -> record

	createErr error
	getErr    error
	updateErr error
	deleteErr error
	markErr   error

	marked []string
}

func newFakeFilesRepo() *fakeFilesRepo {
	return &fakeFilesRepo{items: map[string]*models.FileRecord{}}
}

func fileKey(basket, id string) string { return basket + "/" + id }

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	file.Version = 1
	file.IntegrityStatus = models.IntegrityOK
	file.CreatedAt = time.Now()
	file.UpdatedAt = file.CreatedAt
	clone := *file
	f.items[fileKey(file.BasketName, file.ID)] = &clone
	return nil
}

func (f *fakeFilesRepo) Get(ctx context.Context, basket, id string) (*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.items[fileKey(basket, id)]
	if !ok {
		return nil, fmt.Errorf("file %s/%s: %w", basket, id, common.ErrNotFound)
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeFilesRepo) Update(ctx context.Context, file *models.FileRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	current, ok := f.items[fileKey(file.BasketName, file.ID)]
	if !ok || current.Version != file.Version {
		return fmt.Errorf("file %s/%s: %w", file.BasketName, file.ID, common.ErrVersionConflict)
	}
	file.Version++
	clone := *file
	f.items[fileKey(file.BasketName, file.ID)] = &clone
	return nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, basket, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.items[fileKey(basket, id)]; !ok {
		return fmt.Errorf("file %s/%s: %w", basket, id, common.ErrNotFound)
	}
	delete(f.items, fileKey(basket, id))
	return nil
}

func (f *fakeFilesRepo) List(ctx context.Context, basket string, limit, offset int) ([]*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.FileRecord
	for _, rec := range f.items {
		if rec.BasketName == basket {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeFilesRepo) SelectKeys(ctx context.Context, basket string) ([]*models.FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.FileRecord
	for _, rec := range f.items {
		if rec.BasketName == basket {
			out = append(out, &models.FileRecord{ID: rec.ID, BasketName: basket, StorageKey: rec.StorageKey})
		}
	}
	return out, nil
}

func (f *fakeFilesRepo) MarkIntegritySuspect(ctx context.Context, basket, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, fileKey(basket, id))
	if rec, ok := f.items[fileKey(basket, id)]; ok {
		rec.IntegrityStatus = models.IntegritySuspect
	}
	return nil
}

type fakeRepoManager struct {
	basketsRepo *fakeBasketsRepo
	filesRepo   *fakeFilesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	m := &fakeRepoManager{basketsRepo: newFakeBasketsRepo(), filesRepo: newFakeFilesRepo()}
	m.basketsRepo.filesRepo = m.filesRepo
	return m
}

func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (m *fakeRepoManager) Baskets(db dbx.DBTX) baskets.Repository { return m.basketsRepo }

func (m *fakeRepoManager) Files(db dbx.DBTX) files.Repository { return m.filesRepo }

type fakeStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modified map[string]time.Time
	deleted  []string

	putErr  error
	getErr  error
	delErr  error
	headErr error

	// listErrs are returned by successive List calls before listing succeeds.
	listErrs []error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, modified: map[string]time.Time{}}
}

func (s *fakeStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[key] = data
	s.modified[key] = time.Now()
	return nil
}

func (s *fakeStore) Get(ctx context.Context, key string) (io.ReadCloser, objstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, objstore.ObjectInfo{}, s.getErr
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, objstore.ObjectInfo{}, fmt.Errorf("get %q: %w", key, common.ErrNotFound)
	}
	info := objstore.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: s.modified[key]}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (s *fakeStore) Head(ctx context.Context, key string) (objstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headErr != nil {
		return objstore.ObjectInfo{}, s.headErr
	}
	data, ok := s.objects[key]
	if !ok {
		return objstore.ObjectInfo{}, fmt.Errorf("head %q: %w", key, common.ErrNotFound)
	}
	return objstore.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: s.modified[key]}, nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.objects, key)
	delete(s.modified, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) List(ctx context.Context, prefix string) ([]objstore.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.listErrs) > 0 {
		err := s.listErrs[0]
		s.listErrs = s.listErrs[1:]
		return nil, err
	}
	var out []objstore.ObjectInfo
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, objstore.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: s.modified[key]})
		}
	}
	return out, nil
}

type fakeFlagger struct {
	mu      sync.Mutex
	flagged []models.Divergence
}

func (f *fakeFlagger) Flag(d models.Divergence) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagged = append(f.flagged, d)
}
