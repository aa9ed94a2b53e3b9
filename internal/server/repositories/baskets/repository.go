package baskets

import (
	"context"

	"github.com/sfstore/sfs/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, basket *models.Basket) error
	Get(ctx context.Context, name string) (*models.Basket, error)
	List(ctx context.Context, limit, offset int) ([]*models.Basket, error)
	Delete(ctx context.Context, name string) error
	CountFiles(ctx context.Context, name string) (int64, error)
}
