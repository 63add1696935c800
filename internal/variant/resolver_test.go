package variant

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gooeytea/backend/internal/cache"
	"gooeytea/backend/internal/domain"
	"gooeytea/backend/internal/store/memory"
)

func newTestResolver() (*Resolver, *memory.Store) {
	repo := memory.NewSeeded()
	return NewResolver(repo, cache.NoopVariantCache{}, cache.NoopLocker{}, time.Minute, nil), repo
}

func TestPriceDeterminism(t *testing.T) {
	got := Price(domain.SizeMedium, 2, 1)
	if !got.Equal(decimal.RequireFromString("8.75")) {
		t.Fatalf("expected 8.75, got %s", got)
	}
	if small := Price(domain.SizeSmall, 0, 0); !small.Equal(decimal.RequireFromString("5.5")) {
		t.Fatalf("expected 5.5, got %s", small)
	}
	if large := Price(domain.SizeLarge, 1, 4); !large.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("expected 10.5, got %s", large)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	resolver, _ := newTestResolver()
	ctx := context.Background()
	req := domain.ResolveDrinkRequest{
		TeaID:      10,
		FlavorIDs:  []int{23, 0, 21},
		ToppingIDs: []int{31, 0},
		Sugar:      50,
		Ice:        100,
		Size:       domain.SizeMedium,
	}

	first, err := resolver.Resolve(ctx, req)
	if err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	second, err := resolver.Resolve(ctx, req)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if first.ID != second.ID || !first.Price.Equal(second.Price) {
		t.Fatalf("expected same variant, got %d/%s and %d/%s", first.ID, first.Price, second.ID, second.Price)
	}
	if !first.Price.Equal(decimal.RequireFromString("8.75")) {
		t.Fatalf("expected price 8.75, got %s", first.Price)
	}
}

func TestResolveIgnoresSlotOrderAndZeros(t *testing.T) {
	resolver, _ := newTestResolver()
	ctx := context.Background()

	a, err := resolver.Resolve(ctx, domain.ResolveDrinkRequest{TeaID: 11, FlavorIDs: []int{22, 21}, Sugar: 100, Ice: 0, Size: domain.SizeSmall})
	if err != nil {
		t.Fatalf("resolve a: %v", err)
	}
	b, err := resolver.Resolve(ctx, domain.ResolveDrinkRequest{TeaID: 11, FlavorIDs: []int{0, 21, 0, 22}, Sugar: 100, Ice: 0, Size: domain.SizeSmall})
	if err != nil {
		t.Fatalf("resolve b: %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("expected reordered selection to share a variant, got %d and %d", a.ID, b.ID)
	}
}

func TestResolveDoesNotReuseSuperset(t *testing.T) {
	resolver, _ := newTestResolver()
	ctx := context.Background()

	rich, err := resolver.Resolve(ctx, domain.ResolveDrinkRequest{TeaID: 10, FlavorIDs: []int{21, 22}, ToppingIDs: []int{31}, Sugar: 50, Ice: 50, Size: domain.SizeLarge})
	if err != nil {
		t.Fatalf("resolve rich: %v", err)
	}
	plain, err := resolver.Resolve(ctx, domain.ResolveDrinkRequest{TeaID: 10, FlavorIDs: []int{21}, Sugar: 50, Ice: 50, Size: domain.SizeLarge})
	if err != nil {
		t.Fatalf("resolve plain: %v", err)
	}
	if rich.ID == plain.ID {
		t.Fatalf("expected a subset selection to get its own variant")
	}
	if !plain.Price.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("expected 7.5, got %s", plain.Price)
	}
}

func TestConcurrentResolveCreatesOneVariant(t *testing.T) {
	resolver, repo := newTestResolver()
	ctx := context.Background()
	req := domain.ResolveDrinkRequest{TeaID: 12, FlavorIDs: []int{24}, ToppingIDs: []int{32, 33}, Sugar: 150, Ice: -1, Size: domain.SizeMedium}

	const workers = 24
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := resolver.Resolve(ctx, req)
			if err != nil {
				t.Errorf("resolve: %v", err)
				return
			}
			ids[i] = v.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("expected every caller to see variant %d, got %v", ids[0], ids)
		}
	}
	usage, err := repo.DrinkUsage(ctx)
	if err != nil {
		t.Fatalf("drink usage: %v", err)
	}
	if len(usage) != 1 {
		t.Fatalf("expected exactly one stored variant, got %d", len(usage))
	}
}

type recordingCache struct {
	mu   sync.Mutex
	data map[string]domain.DrinkVariant
	hits int
}

func (c *recordingCache) Get(_ context.Context, key string) (*domain.DrinkVariant, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return &v, ok, nil
}

func (c *recordingCache) Set(_ context.Context, key string, value *domain.DrinkVariant, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = *value
	return nil
}

func TestResolveServesFromCache(t *testing.T) {
	repo := memory.NewSeeded()
	vc := &recordingCache{data: map[string]domain.DrinkVariant{}}
	resolver := NewResolver(repo, vc, nil, time.Minute, nil)
	req := domain.ResolveDrinkRequest{TeaID: 13, Sugar: 0, Ice: 200, Size: domain.SizeSmall}

	if _, err := resolver.Resolve(context.Background(), req); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), req); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if vc.hits != 1 {
		t.Fatalf("expected second resolve to hit the cache, hits=%d", vc.hits)
	}
}
