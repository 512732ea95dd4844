package cache

import (
	"context"
	"time"

	"gympos/backend/internal/domain"
)

// Catalog holds the browse payload served to terminals. Authorization
// never reads it; price checks always go to the store of record.
type Catalog struct {
	Items []domain.InventoryItem `json:"items"`
	Plans []domain.Plan          `json:"plans"`
}

type CatalogCache interface {
	Get(ctx context.Context, key string) (*Catalog, bool, error)
	Set(ctx context.Context, key string, value *Catalog, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) Get(_ context.Context, _ string) (*Catalog, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) Set(_ context.Context, _ string, _ *Catalog, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
