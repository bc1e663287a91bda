package cart

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheTTL  = 5 * time.Second
	defaultCacheSize = 1024
)

// Accessor serves cart snapshots from a short-lived per-shopper cache. At most
// one backend fetch is in flight per shopper and generation. Every write goes
// through the accessor and invalidates the shopper's entry before returning,
// so a read issued after a write never sees the pre-write cart.
type Accessor struct {
	backend Backend
	logger  *zap.Logger
	ttl     time.Duration
	clock   func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	epoch uint64
	cache *expirable.LRU[string, *Snapshot]
	gens  *expirable.LRU[string, uint64]
}

// AccessorOption configures an Accessor.
type AccessorOption func(*Accessor)

// WithTTL sets the revalidation window. A non-positive TTL disables caching
// while keeping single-flight fetches.
func WithTTL(ttl time.Duration) AccessorOption {
	return func(a *Accessor) {
		a.ttl = ttl
	}
}

// WithAccessorClock overrides the time source used to stamp snapshots.
func WithAccessorClock(clock func() time.Time) AccessorOption {
	return func(a *Accessor) {
		a.clock = clock
	}
}

// NewAccessor wraps backend with caching and invalidation.
func NewAccessor(backend Backend, logger *zap.Logger, opts ...AccessorOption) *Accessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Accessor{
		backend: backend,
		logger:  logger,
		ttl:     defaultCacheTTL,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.ttl > 0 {
		a.cache = expirable.NewLRU[string, *Snapshot](defaultCacheSize, nil, a.ttl)
	}
	genTTL := 10 * a.ttl
	if genTTL < time.Minute {
		genTTL = time.Minute
	}
	a.gens = expirable.NewLRU[string, uint64](defaultCacheSize, nil, genTTL)
	return a
}

// Fetch returns the shopper's cart, from cache when fresh. If ctx ends while a
// shared fetch is still running, the fetch completes in the background and the
// caller gets ctx.Err().
func (a *Accessor) Fetch(ctx context.Context, scope string) (*Snapshot, error) {
	if scope == "" {
		return nil, ErrMissingToken
	}
	if a.cache != nil {
		if snap, ok := a.cache.Get(scope); ok {
			return snap, nil
		}
	}

	gen := a.generation(scope)
	key := scope + "#" + strconv.FormatUint(gen, 10)
	fetchCtx := context.WithoutCancel(ctx)

	ch := a.group.DoChan(key, func() (any, error) {
		snap, err := a.backend.FetchCart(fetchCtx, scope)
		if err != nil {
			return nil, err
		}
		snap.FetchedAt = a.clock()
		a.store(scope, gen, snap)
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Invalidate drops the cached snapshot for scope. Fetches that started before
// the call will not repopulate the cache.
func (a *Accessor) Invalidate(scope string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.epoch++
	a.gens.Add(scope, a.epoch)
	if a.cache != nil {
		a.cache.Remove(scope)
	}
}

// MutateLine forwards a line change and invalidates the shopper's cart.
func (a *Accessor) MutateLine(ctx context.Context, scope string, m LineMutation) (MutationResult, error) {
	res, err := a.backend.MutateLine(ctx, scope, m)
	a.Invalidate(scope)
	if err != nil {
		a.logger.Warn("cart line mutation failed",
			zap.String("line_id", m.LineID),
			zap.String("product_id", m.ProductID),
			zap.Int("quantity", m.Quantity),
			zap.Error(err),
		)
	}
	return res, err
}

// CommitPackage commits the active package and invalidates the shopper's cart.
func (a *Accessor) CommitPackage(ctx context.Context, scope string, guests int) (CommitResult, error) {
	res, err := a.backend.CommitPackage(ctx, scope, guests)
	a.Invalidate(scope)
	if err != nil {
		a.logger.Warn("package commit failed", zap.Int("guests", guests), zap.Error(err))
	}
	return res, err
}

// DeletePackage removes one package, or the unfinished ones when packageID is
// empty, and invalidates the shopper's cart.
func (a *Accessor) DeletePackage(ctx context.Context, scope, packageID string) error {
	err := a.backend.DeletePackage(ctx, scope, packageID)
	a.Invalidate(scope)
	if err != nil {
		a.logger.Warn("package delete failed", zap.String("package_id", packageID), zap.Error(err))
	}
	return err
}

// SelectMenu activates a package on the backend and invalidates the
// shopper's cart.
func (a *Accessor) SelectMenu(ctx context.Context, scope string, menuID int) error {
	err := a.backend.SelectMenu(ctx, scope, menuID)
	a.Invalidate(scope)
	if err != nil {
		a.logger.Warn("menu selection failed", zap.Int("menu_id", menuID), zap.Error(err))
	}
	return err
}

// ProductsByCategory lists the products selectable for a category.
func (a *Accessor) ProductsByCategory(ctx context.Context, scope string, categoryID int) ([]Product, error) {
	return a.backend.ProductsByCategory(ctx, scope, categoryID)
}

func (a *Accessor) generation(scope string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	gen, _ := a.gens.Get(scope)
	return gen
}

func (a *Accessor) store(scope string, gen uint64, snap *Snapshot) {
	if a.cache == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if current, _ := a.gens.Get(scope); current != gen {
		return
	}
	a.cache.Add(scope, snap)
}
