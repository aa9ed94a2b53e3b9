package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sfstore/sfs/internal/common"
	"github.com/sfstore/sfs/internal/dbx"
	"github.com/sfstore/sfs/internal/server/models"
	"github.com/sfstore/sfs/internal/server/objstore"
	"github.com/sfstore/sfs/internal/server/repositories/baskets"
	"github.com/sfstore/sfs/internal/server/repositories/files"
)

// In-memory backends exercising the real services through the REST layer.

type fakeBasketsRepo struct {
	items map[string]*models.Basket
	files *fakeFilesRepo
}

func (r *fakeBasketsRepo) Create(_ context.Context, basket *models.Basket) error {
	if _, ok := r.items[basket.Name]; ok {
		return fmt.Errorf("basket %q: %w", basket.Name, common.ErrConflict)
	}
	now := time.Now().UTC()
	basket.CreatedAt = now
	basket.UpdatedAt = now
	copied := *basket
	r.items[basket.Name] = &copied
	return nil
}

func (r *fakeBasketsRepo) Get(_ context.Context, name string) (*models.Basket, error) {
	item, ok := r.items[name]
	if !ok {
		return nil, fmt.Errorf("basket %q: %w", name, common.ErrNotFound)
	}
	copied := *item
	copied.FileCount = r.countFiles(name)
	return &copied, nil
}

func (r *fakeBasketsRepo) List(_ context.Context, limit, offset int) ([]*models.Basket, error) {
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)

	var result []*models.Basket
	for i, name := range names {
		if i < offset {
			continue
		}
		if len(result) >= limit {
			break
		}
		copied := *r.items[name]
		copied.FileCount = r.countFiles(name)
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeBasketsRepo) Delete(_ context.Context, name string) error {
	if _, ok := r.items[name]; !ok {
		return fmt.Errorf("basket %q: %w", name, common.ErrNotFound)
	}
	delete(r.items, name)
	return nil
}

func (r *fakeBasketsRepo) CountFiles(_ context.Context, name string) (int64, error) {
	return r.countFiles(name), nil
}

func (r *fakeBasketsRepo) countFiles(name string) int64 {
	var n int64
	for _, f := range r.files.items {
		if f.BasketName == name {
			n++
		}
	}
	return n
}

type fakeFilesRepo struct {
	items map[string]*models.FileRecord
}

func fileKey(basket, id string) string { return basket + "/" + id }

func (r *fakeFilesRepo) Create(_ context.Context, file *models.FileRecord) error {
	key := fileKey(file.BasketName, file.ID)
	if _, ok := r.items[key]; ok {
		return fmt.Errorf("file %s: %w", key, common.ErrConflict)
	}
	now := time.Now().UTC()
	file.Version = 1
	file.IntegrityStatus = models.IntegrityOK
	file.CreatedAt = now
	file.UpdatedAt = now
	copied := *file
	r.items[key] = &copied
	return nil
}

func (r *fakeFilesRepo) Get(_ context.Context, basket, id string) (*models.FileRecord, error) {
	item, ok := r.items[fileKey(basket, id)]
	if !ok {
		return nil, fmt.Errorf("file %s/%s: %w", basket, id, common.ErrNotFound)
	}
	copied := *item
	return &copied, nil
}

func (r *fakeFilesRepo) Update(_ context.Context, file *models.FileRecord) error {
	key := fileKey(file.BasketName, file.ID)
	current, ok := r.items[key]
	if !ok || current.Version != file.Version {
		return fmt.Errorf("file %s: %w", key, common.ErrVersionConflict)
	}
	file.Version++
	file.UpdatedAt = time.Now().UTC()
	copied := *file
	r.items[key] = &copied
	return nil
}

func (r *fakeFilesRepo) Delete(_ context.Context, basket, id string) error {
	key := fileKey(basket, id)
	if _, ok := r.items[key]; !ok {
		return fmt.Errorf("file %s: %w", key, common.ErrNotFound)
	}
	delete(r.items, key)
	return nil
}

func (r *fakeFilesRepo) List(_ context.Context, basket string, limit, offset int) ([]*models.FileRecord, error) {
	var all []*models.FileRecord
	for _, f := range r.items {
		if f.BasketName == basket {
			copied := *f
			all = append(all, &copied)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	var result []*models.FileRecord
	for i, f := range all {
		if i < offset {
			continue
		}
		if len(result) >= limit {
			break
		}
		result = append(result, f)
	}
	return result, nil
}

func (r *fakeFilesRepo) SelectKeys(_ context.Context, basket string) ([]*models.FileRecord, error) {
	var result []*models.FileRecord
	for _, f := range r.items {
		if f.BasketName == basket {
			result = append(result, &models.FileRecord{
				ID: f.ID, BasketName: basket, StorageKey: f.StorageKey,
			})
		}
	}
	return result, nil
}

func (r *fakeFilesRepo) MarkIntegritySuspect(_ context.Context, basket, id string) error {
	item, ok := r.items[fileKey(basket, id)]
	if !ok {
		return fmt.Errorf("file %s/%s: %w", basket, id, common.ErrNotFound)
	}
	item.IntegrityStatus = models.IntegritySuspect
	return nil
}

type fakeRepoManager struct {
	baskets *fakeBasketsRepo
	files   *fakeFilesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	filesRepo := &fakeFilesRepo{items: map[string]*models.FileRecord{}}
	basketsRepo := &fakeBasketsRepo{items: map[string]*models.Basket{}, files: filesRepo}
	return &fakeRepoManager{baskets: basketsRepo, files: filesRepo}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Baskets(dbx.DBTX) baskets.Repository          { return m.baskets }
func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository              { return m.files }

type fakeStore struct {
	objects  map[string][]byte
	modified map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, modified: map[string]time.Time{}}
}

func (s *fakeStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[key] = data
	s.modified[key] = time.Now().UTC()
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) (io.ReadCloser, objstore.ObjectInfo, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, objstore.ObjectInfo{}, fmt.Errorf("get %q: %w", key, common.ErrNotFound)
	}
	info := objstore.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: s.modified[key]}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (s *fakeStore) Head(_ context.Context, key string) (objstore.ObjectInfo, error) {
	data, ok := s.objects[key]
	if !ok {
		return objstore.ObjectInfo{}, fmt.Errorf("head %q: %w", key, common.ErrNotFound)
	}
	return objstore.ObjectInfo{Key: key, Size: int64(len(data)), LastModified: s.modified[key]}, nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	delete(s.modified, key)
	return nil
}

func (s *fakeStore) List(_ context.Context, prefix string) ([]objstore.ObjectInfo, error) {
	var result []objstore.ObjectInfo
	for key, data := range s.objects {
		if strings.HasPrefix(key, prefix) {
			result = append(result, objstore.ObjectInfo{
				Key: key, Size: int64(len(data)), LastModified: s.modified[key],
			})
		}
	}
	return result, nil
}
