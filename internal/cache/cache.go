package cache

import (
	"context"
	"time"

	"gooeytea/backend/internal/domain"
)

type VariantCache interface {
	Get(ctx context.Context, signature string) (*domain.DrinkVariant, bool, error)
	Set(ctx context.Context, signature string, value *domain.DrinkVariant, ttl time.Duration) error
}

// Locker serializes work on a key across processes. release must be called
// once the work is done.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type NoopVariantCache struct{}

func (NoopVariantCache) Get(_ context.Context, _ string) (*domain.DrinkVariant, bool, error) {
	return nil, false, nil
}

func (NoopVariantCache) Set(_ context.Context, _ string, _ *domain.DrinkVariant, _ time.Duration) error {
	return nil
}

type NoopLocker struct{}

func (NoopLocker) Obtain(_ context.Context, _ string, _ time.Duration) (func(), error) {
	return func() {}, nil
}
