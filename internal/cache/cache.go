package cache

import (
	"context"
	"time"

	"go-pos-ws/internal/model"
)

// ProductCache holds the rendered product list between catalog writes.
type ProductCache interface {
	GetProducts(ctx context.Context) ([]model.Product, bool, error)
	SetProducts(ctx context.Context, products []model.Product, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopProductCache struct{}

func (NoopProductCache) GetProducts(_ context.Context) ([]model.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) SetProducts(_ context.Context, _ []model.Product, _ time.Duration) error {
	return nil
}

func (NoopProductCache) Invalidate(_ context.Context) error {
	return nil
}
