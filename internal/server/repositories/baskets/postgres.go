package baskets

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

// PostgresRepository implements basket storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a basket record. A duplicate name returns ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, basket *models.Basket) error {
	query := `
		INSERT INTO baskets (name, description)
		VALUES ($1, $2)
		RETURNING created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query, basket.Name, basket.Description).
		Scan(&basket.CreatedAt, &basket.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("basket %q: %w", basket.Name, common.ErrConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the basket with the given name, including its derived file
// count. Returns ErrNotFound when absent.
func (r *PostgresRepository) Get(ctx context.Context, name string) (*models.Basket, error) {
	query := `
		SELECT b.name, b.description, b.created_at, b.updated_at, count(f.id)
		FROM baskets b
		LEFT JOIN files f ON f.basket_name = b.name
		WHERE b.name = $1
		GROUP BY b.name;
	`
	result := &models.Basket{}
	err := r.db.QueryRowContext(ctx, query, name).
		Scan(&result.Name, &result.Description, &result.CreatedAt, &result.UpdatedAt, &result.FileCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("basket %q: %w", name, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to select basket: %w", err)
	}
	return result, nil
}

// List returns baskets ordered by name with the caller's pagination.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*models.Basket, error) {
	query := `
		SELECT b.name, b.description, b.created_at, b.updated_at, count(f.id)
		FROM baskets b
		LEFT JOIN files f ON f.basket_name = b.name
		GROUP BY b.name
		ORDER BY b.name
		LIMIT $1 OFFSET $2;
	`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to select baskets: %w", err)
	}
	defer rows.Close()

	var result []*models.Basket
	for rows.Next() {
		var item models.Basket
		if err := rows.Scan(&item.Name, &item.Description, &item.CreatedAt, &item.UpdatedAt, &item.FileCount); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the basket record. Returns ErrNotFound when absent.
// Contained files are the caller's problem; the foreign key makes deleting
// a non-empty basket a hard error rather than a silent cascade.
func (r *PostgresRepository) Delete(ctx context.Context, name string) error {
	query := `DELETE FROM baskets WHERE name = $1;`
	result, err := r.db.ExecContext(ctx, query, name)
	if err != nil {
		return fmt.Errorf("failed to delete basket: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("basket %q: %w", name, common.ErrNotFound)
	}
	return nil
}

// CountFiles returns the number of file records in the basket.
func (r *PostgresRepository) CountFiles(ctx context.Context, name string) (int64, error) {
	query := `SELECT count(*) FROM files WHERE basket_name = $1;`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}
