// Package variant maps a drink customization to its stable, priced variant.
package variant

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"gooeytea/backend/internal/cache"
	"gooeytea/backend/internal/domain"
	"gooeytea/backend/internal/store"
)

var (
	basePrice    = decimal.RequireFromString("5.50")
	flavorPrice  = decimal.NewFromInt(1)
	toppingPrice = decimal.RequireFromString("0.75")
)

var tracer = otel.Tracer("gooeytea/variant")

type Resolver struct {
	repo     store.VariantStore
	cache    cache.VariantCache
	locker   cache.Locker
	cacheTTL time.Duration
	log      *logrus.Entry
}

func NewResolver(repo store.VariantStore, cacheStore cache.VariantCache, locker cache.Locker, cacheTTL time.Duration, logger *logrus.Logger) *Resolver {
	if cacheStore == nil {
		cacheStore = cache.NoopVariantCache{}
	}
	if locker == nil {
		locker = cache.NoopLocker{}
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Resolver{
		repo:     repo,
		cache:    cacheStore,
		locker:   locker,
		cacheTTL: cacheTTL,
		log:      logger.WithField("component", "variant"),
	}
}

// Resolve returns the variant for req, creating and pricing it on first use.
// Variants are immutable, so a cached copy never goes stale.
func (r *Resolver) Resolve(ctx context.Context, req domain.ResolveDrinkRequest) (domain.DrinkVariant, error) {
	ctx, span := tracer.Start(ctx, "variant.Resolve")
	defer span.End()

	candidate := Normalize(req)
	span.SetAttributes(attribute.String("variant.signature", candidate.Signature))

	if cached, ok, err := r.cache.Get(ctx, candidate.Signature); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		r.log.WithError(err).Warn("variant cache read failed")
	}

	existing, err := r.repo.FindVariantBySignature(ctx, candidate.Signature)
	if err == nil {
		r.remember(ctx, existing)
		return *existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.DrinkVariant{}, err
	}

	// Uniqueness is enforced by the store. The lock only narrows the insert race.
	release, lockErr := r.locker.Obtain(ctx, "variant:"+candidate.Signature, 5*time.Second)
	if lockErr != nil {
		r.log.WithError(lockErr).WithField("signature", candidate.Signature).Debug("creating variant without lock")
	} else {
		defer release()
		if existing, err := r.repo.FindVariantBySignature(ctx, candidate.Signature); err == nil {
			r.remember(ctx, existing)
			return *existing, nil
		}
	}

	created, err := r.repo.CreateVariant(ctx, candidate)
	if err != nil {
		return domain.DrinkVariant{}, fmt.Errorf("create variant: %w", err)
	}
	r.log.WithFields(logrus.Fields{
		"drink_id":  created.ID,
		"signature": created.Signature,
		"price":     created.Price.StringFixed(2),
	}).Info("drink variant created")

	r.remember(ctx, created)
	return *created, nil
}

func (r *Resolver) remember(ctx context.Context, v *domain.DrinkVariant) {
	if err := r.cache.Set(ctx, v.Signature, v, r.cacheTTL); err != nil {
		r.log.WithError(err).Warn("variant cache write failed")
	}
}

// Normalize builds the unsaved variant for req: zero ids are dropped, the
// remaining ids sorted, and the price computed.
func Normalize(req domain.ResolveDrinkRequest) domain.DrinkVariant {
	flavors := nonZeroSorted(req.FlavorIDs)
	toppings := nonZeroSorted(req.ToppingIDs)

	v := domain.DrinkVariant{
		TeaID:      req.TeaID,
		FlavorIDs:  flavors,
		ToppingIDs: toppings,
		Sugar:      req.Sugar,
		Ice:        req.Ice,
		Size:       req.Size,
		Price:      Price(req.Size, len(flavors), len(toppings)),
	}
	v.Signature = Signature(v)
	return v
}

// Price is 5.50 plus the size surcharge, 1.00 per flavor and 0.75 per topping.
func Price(size domain.Size, flavors int, toppings int) decimal.Decimal {
	return basePrice.
		Add(SizeSurcharge(size)).
		Add(flavorPrice.Mul(decimal.NewFromInt(int64(flavors)))).
		Add(toppingPrice.Mul(decimal.NewFromInt(int64(toppings))))
}

func SizeSurcharge(size domain.Size) decimal.Decimal {
	switch size {
	case domain.SizeMedium:
		return decimal.RequireFromString("0.50")
	case domain.SizeLarge:
		return decimal.NewFromInt(1)
	default:
		return decimal.Zero
	}
}

// Signature is the canonical identity of a customization. Two requests
// resolve to the same variant exactly when their signatures are equal.
func Signature(v domain.DrinkVariant) string {
	return fmt.Sprintf("t%d|f%s|p%s|s%d|i%d|%s",
		v.TeaID,
		joinInts(nonZeroSorted(v.FlavorIDs)),
		joinInts(nonZeroSorted(v.ToppingIDs)),
		v.Sugar,
		v.Ice,
		v.Size,
	)
}

func nonZeroSorted(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
