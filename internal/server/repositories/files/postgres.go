package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sfstore/sfs/internal/common"
	"github.com/sfstore/sfs/internal/dbx"
	"github.com/sfstore/sfs/internal/server/models"
)

// PostgresRepository implements file-record storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a file record. A duplicate id or storage key returns
// ErrConflict; the coordinator treats that as a fatal internal error since
// keys are uuid-derived.
func (r *PostgresRepository) Create(ctx context.Context, file *models.FileRecord) error {
	query := `
		INSERT INTO files (id, basket_name, filename, content_type, size, checksum, storage_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING version, integrity_status, created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query,
		file.ID, file.BasketName, file.Filename, file.ContentType, file.Size, file.Checksum, file.StorageKey).
		Scan(&file.Version, &file.IntegrityStatus, &file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("file %s/%s: %w", file.BasketName, file.ID, common.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the record for (basket, id), or ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, basket, id string) (*models.FileRecord, error) {
	query := `
		SELECT id, basket_name, filename, content_type, size, checksum, storage_key,
		       version, integrity_status, created_at, updated_at
		FROM files
		WHERE basket_name = $1 AND id = $2;
	`
	result := &models.FileRecord{}
	err := r.db.QueryRowContext(ctx, query, basket, id).Scan(
		&result.ID, &result.BasketName, &result.Filename, &result.ContentType,
		&result.Size, &result.Checksum, &result.StorageKey,
		&result.Version, &result.IntegrityStatus, &result.CreatedAt, &result.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("file %s/%s: %w", basket, id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return result, nil
}

// Update replaces the mutable fields of a record, guarded by compare-and-set
// on the version the caller loaded. Zero rows affected means another writer
// committed in between: ErrVersionConflict.
func (r *PostgresRepository) Update(ctx context.Context, file *models.FileRecord) error {
	query := `
		UPDATE files
		SET filename = $1, content_type = $2, size = $3, checksum = $4,
		    integrity_status = $5, version = version + 1, updated_at = now()
		WHERE basket_name = $6 AND id = $7 AND version = $8;
	`
	result, err := r.db.ExecContext(ctx, query,
		file.Filename, file.ContentType, file.Size, file.Checksum,
		file.IntegrityStatus, file.BasketName, file.ID, file.Version)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		file.Version++
		return nil
	case 0:
		return fmt.Errorf("file %s/%s: %w", file.BasketName, file.ID, common.ErrVersionConflict)
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// Delete removes the record for (basket, id), or returns ErrNotFound.
func (r *PostgresRepository) Delete(ctx context.Context, basket, id string) error {
	query := `DELETE FROM files WHERE basket_name = $1 AND id = $2;`
	result, err := r.db.ExecContext(ctx, query, basket, id)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("file %s/%s: %w", basket, id, common.ErrNotFound)
	}
	return nil
}

// List returns records in the basket ordered by creation time with the
// caller's pagination.
func (r *PostgresRepository) List(ctx context.Context, basket string, limit, offset int) ([]*models.FileRecord, error) {
	query := `
		SELECT id, basket_name, filename, content_type, size, checksum, storage_key,
		       version, integrity_status, created_at, updated_at
		FROM files
		WHERE basket_name = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3;
	`
	rows, err := r.db.QueryContext(ctx, query, basket, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		var item models.FileRecord
		if err := rows.Scan(
			&item.ID, &item.BasketName, &item.Filename, &item.ContentType,
			&item.Size, &item.Checksum, &item.StorageKey,
			&item.Version, &item.IntegrityStatus, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SelectKeys returns a minimal row (id, storage_key) per record in the
// basket, used by the auditor's set comparison.
func (r *PostgresRepository) SelectKeys(ctx context.Context, basket string) ([]*models.FileRecord, error) {
	query := `SELECT id, storage_key FROM files WHERE basket_name = $1;`
	rows, err := r.db.QueryContext(ctx, query, basket)
	if err != nil {
		return nil, fmt.Errorf("failed to select keys: %w", err)
	}
	defer rows.Close()

	var result []*models.FileRecord
	for rows.Next() {
		item := models.FileRecord{BasketName: basket}
		if err := rows.Scan(&item.ID, &item.StorageKey); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkIntegritySuspect flags a record whose object is missing. Exactly one
// row must be affected.
func (r *PostgresRepository) MarkIntegritySuspect(ctx context.Context, basket, id string) error {
	query := `UPDATE files SET integrity_status = 'suspect', updated_at = now() WHERE basket_name = $1 AND id = $2;`
	result, err := r.db.ExecContext(ctx, query, basket, id)
	if err != nil {
		return fmt.Errorf("failed to mark file: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("wrong rows affected count: %d", n)
	}
	return nil
}
