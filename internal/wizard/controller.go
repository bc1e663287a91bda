package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eugenenazirov/catering-cart/internal/cart"
	"github.com/eugenenazirov/catering-cart/internal/catalog"
	"github.com/eugenenazirov/catering-cart/internal/fulfillment"
	"github.com/eugenenazirov/catering-cart/internal/storage"
)

const (
	defaultStateTTL = 24 * time.Hour
	lockStripes     = 64
)

// CartService is the part of the cart accessor the wizard depends on.
type CartService interface {
	Fetch(ctx context.Context, scope string) (*cart.Snapshot, error)
	MutateLine(ctx context.Context, scope string, m cart.LineMutation) (cart.MutationResult, error)
	CommitPackage(ctx context.Context, scope string, guests int) (cart.CommitResult, error)
	DeletePackage(ctx context.Context, scope, packageID string) error
	SelectMenu(ctx context.Context, scope string, menuID int) error
}

// Controller runs the wizard state machine. Calls for the same shopper and
// package are serialized.
type Controller struct {
	catalog *catalog.Catalog
	cart    CartService
	store   storage.Store
	logger  *zap.Logger
	ttl     time.Duration
	now     func() time.Time

	locks [lockStripes]sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithStateTTL sets how long idle wizard state is kept.
func WithStateTTL(ttl time.Duration) Option {
	return func(c *Controller) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// NewController creates a Controller.
func NewController(cat *catalog.Catalog, cartSvc CartService, store storage.Store, logger *zap.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		catalog: cat,
		cart:    cartSvc,
		store:   store,
		logger:  logger,
		ttl:     defaultStateTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open returns the persisted wizard for the package, or a fresh state awaiting
// a guest count when none exists. The fresh state is not persisted.
func (c *Controller) Open(ctx context.Context, scope, identifier string) (View, error) {
	pkg, err := c.lookup(scope, identifier)
	if err != nil {
		return View{}, err
	}

	key := storage.WizardKey(scope, pkg.ID)
	defer c.lock(key)()

	st, found, err := c.load(ctx, scope, pkg)
	if err != nil {
		return View{}, err
	}
	if !found {
		st = &State{
			Scope:       scope,
			PackageID:   pkg.ID,
			PackageName: pkg.Name,
			Phase:       PhaseAwaitingGuestCount,
			Progress:    map[string]fulfillment.Progress{},
			UpdatedAt:   c.now(),
		}
		return View{State: *st}, nil
	}
	return c.view(ctx, pkg, st, nil)
}

// ConfirmGuests validates the guest count, clears the shopper's unfinished
// packages, makes the package the backend's active menu and starts the first
// category step.
func (c *Controller) ConfirmGuests(ctx context.Context, scope, identifier string, guests int) (View, error) {
	pkg, err := c.lookup(scope, identifier)
	if err != nil {
		return View{}, err
	}
	if guests < pkg.MinimumGuests || guests <= 0 {
		return View{}, &ValidationError{Kind: KindGuestCount, MinimumGuests: pkg.MinimumGuests, Guests: guests}
	}

	key := storage.WizardKey(scope, pkg.ID)
	defer c.lock(key)()

	if err := c.cart.DeletePackage(ctx, scope, ""); err != nil {
		c.logger.Warn("clearing unfinished packages failed, continuing",
			zap.Int("package_id", pkg.ID),
			zap.Error(err),
		)
	}

	if err := c.cart.SelectMenu(ctx, scope, pkg.ID); err != nil {
		return View{}, err
	}

	snap, err := c.cart.Fetch(ctx, scope)
	if err != nil {
		return View{}, err
	}
	if err := checkActive(pkg, snap); err != nil {
		return View{}, err
	}

	st := &State{
		ID:          uuid.New(),
		Scope:       scope,
		PackageID:   pkg.ID,
		PackageName: pkg.Name,
		GuestCount:  guests,
		Phase:       PhaseSelectingCategory,
		Step:        0,
		Progress:    make(map[string]fulfillment.Progress, len(pkg.Categories)),
	}
	// Seed progress so a category that is already complete does not fire.
	for _, req := range pkg.Categories {
		p := fulfillment.Progress{}
		p.Observe(req, c.count(req, snap))
		st.Progress[req.Name] = p
	}

	if err := c.save(ctx, key, st); err != nil {
		return View{}, err
	}

	c.logger.Info("wizard started",
		zap.String("wizard_id", st.ID.String()),
		zap.Int("package_id", pkg.ID),
		zap.Int("guests", guests),
	)
	return c.view(ctx, pkg, st, snap)
}

// SetQuantity changes a cart line while a category step is open, then re-reads
// the cart and runs the upsell trigger for the current category.
func (c *Controller) SetQuantity(ctx context.Context, scope, identifier string, m cart.LineMutation) (View, error) {
	return c.update(ctx, scope, identifier, func(pkg catalog.PackageDefinition, st *State) (*cart.Snapshot, error) {
		if !st.selecting() {
			return nil, fmt.Errorf("%w: set quantity in %s", ErrInvalidTransition, st.Phase)
		}

		res, err := c.cart.MutateLine(ctx, scope, m)
		if err != nil {
			return nil, err
		}
		if !res.Success {
			return nil, fmt.Errorf("%w: %s", ErrRejected, res.Message)
		}

		snap, err := c.cart.Fetch(ctx, scope)
		if err != nil {
			return nil, err
		}
		if err := checkActive(pkg, snap); err != nil {
			return nil, err
		}
		c.observe(pkg, st, snap)
		return snap, nil
	})
}

// Refresh re-reads the cart and applies the upsell trigger, for changes made
// outside the wizard.
func (c *Controller) Refresh(ctx context.Context, scope, identifier string) (View, error) {
	return c.update(ctx, scope, identifier, func(pkg catalog.PackageDefinition, st *State) (*cart.Snapshot, error) {
		if !st.selecting() {
			return nil, nil
		}
		snap, err := c.cart.Fetch(ctx, scope)
		if err != nil {
			return nil, err
		}
		if err := checkActive(pkg, snap); err != nil {
			return nil, err
		}
		c.observe(pkg, st, snap)
		return snap, nil
	})
}

// Next advances past the current category once it is satisfied. From the
// upsell it is the "next category" choice. After the last category the
// wizard moves to Finalizing.
func (c *Controller) Next(ctx context.Context, scope, identifier string) (View, error) {
	return c.update(ctx, scope, identifier, func(pkg catalog.PackageDefinition, st *State) (*cart.Snapshot, error) {
		if !st.selecting() {
			return nil, fmt.Errorf("%w: next in %s", ErrInvalidTransition, st.Phase)
		}

		snap, err := c.cart.Fetch(ctx, scope)
		if err != nil {
			return nil, err
		}
		if err := checkActive(pkg, snap); err != nil {
			return nil, err
		}

		status := fulfillment.Status(pkg.Categories[st.Step], snap)
		if !status.Satisfied {
			return nil, shortfall(status)
		}

		if st.Step+1 < len(pkg.Categories) {
			st.Step++
			st.Phase = PhaseSelectingCategory
		} else {
			st.Phase = PhaseFinalizing
		}
		return snap, nil
	})
}

// Continue leaves the upsell and returns to the same category.
func (c *Controller) Continue(ctx context.Context, scope, identifier string) (View, error) {
	return c.update(ctx, scope, identifier, func(_ catalog.PackageDefinition, st *State) (*cart.Snapshot, error) {
		if st.Phase != PhaseShowingUpsell {
			return nil, fmt.Errorf("%w: continue in %s", ErrInvalidTransition, st.Phase)
		}
		st.Phase = PhaseSelectingCategory
		return nil, nil
	})
}

// Back moves to the previous category without checking the one being left.
func (c *Controller) Back(ctx context.Context, scope, identifier string) (View, error) {
	return c.update(ctx, scope, identifier, func(pkg catalog.PackageDefinition, st *State) (*cart.Snapshot, error) {
		switch st.Phase {
		case PhaseSelectingCategory, PhaseShowingUpsell:
			if st.Step > 0 {
				st.Step--
			}
		case PhaseFinalizing:
			st.Step = len(pkg.Categories) - 1
		default:
			return nil, fmt.Errorf("%w: back in %s", ErrInvalidTransition, st.Phase)
		}
		st.Phase = PhaseSelectingCategory
		return nil, nil
	})
}

// Finalize commits the package with the confirmed guest count. On success the
// wizard is completed and its state deleted. On failure the wizard stays in
// Finalizing and the error is returned; it is never retried automatically.
func (c *Controller) Finalize(ctx context.Context, scope, identifier string) (View, error) {
	pkg, err := c.lookup(scope, identifier)
	if err != nil {
		return View{}, err
	}

	key := storage.WizardKey(scope, pkg.ID)
	defer c.lock(key)()

	st, found, err := c.load(ctx, scope, pkg)
	if err != nil {
		return View{}, err
	}
	if !found {
		return View{}, ErrSessionGone
	}
	if st.Phase != PhaseFinalizing {
		return View{}, fmt.Errorf("%w: finalize in %s", ErrInvalidTransition, st.Phase)
	}

	snap, err := c.cart.Fetch(ctx, scope)
	if err != nil {
		return View{}, err
	}
	if err := checkActive(pkg, snap); err != nil {
		c.logger.Warn("refusing to commit a foreign active menu",
			zap.String("wizard_id", st.ID.String()),
			zap.Int("package_id", pkg.ID),
			zap.Error(err),
		)
		return View{}, err
	}
	for _, status := range fulfillment.Evaluate(pkg, snap) {
		if !status.Satisfied {
			return View{}, shortfall(status)
		}
	}

	res, err := c.cart.CommitPackage(ctx, scope, st.GuestCount)
	if err != nil {
		return View{}, err
	}
	if !res.Success {
		return View{}, fmt.Errorf("%w: %s", ErrRejected, res.Message)
	}

	st.Phase = PhaseCompleted
	st.OrderID = res.OrderID
	st.UpdatedAt = c.now()
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("deleting completed wizard state failed", zap.String("key", key), zap.Error(err))
	}

	c.logger.Info("package committed",
		zap.String("wizard_id", st.ID.String()),
		zap.Int("package_id", pkg.ID),
		zap.String("order_id", res.OrderID),
		zap.Int("guests", st.GuestCount),
	)
	return View{State: *st}, nil
}

// Abandon deletes the wizard state so no progress leaks into a later session.
func (c *Controller) Abandon(ctx context.Context, scope, identifier string) (View, error) {
	pkg, err := c.lookup(scope, identifier)
	if err != nil {
		return View{}, err
	}

	key := storage.WizardKey(scope, pkg.ID)
	defer c.lock(key)()

	st, found, err := c.load(ctx, scope, pkg)
	if err != nil {
		return View{}, err
	}
	if !found {
		st = &State{Scope: scope, PackageID: pkg.ID, PackageName: pkg.Name}
	}
	if err := c.store.Delete(ctx, key); err != nil {
		return View{}, fmt.Errorf("delete wizard state: %w", err)
	}

	st.Phase = PhaseAbandoned
	st.UpdatedAt = c.now()
	st.Progress = map[string]fulfillment.Progress{}
	return View{State: *st}, nil
}

// update runs a load-modify-save cycle. The state is only written back if its
// key still exists, so a wizard abandoned meanwhile stays gone.
func (c *Controller) update(ctx context.Context, scope, identifier string, fn func(catalog.PackageDefinition, *State) (*cart.Snapshot, error)) (View, error) {
	pkg, err := c.lookup(scope, identifier)
	if err != nil {
		return View{}, err
	}

	key := storage.WizardKey(scope, pkg.ID)
	defer c.lock(key)()

	st, found, err := c.load(ctx, scope, pkg)
	if err != nil {
		return View{}, err
	}
	if !found {
		return View{}, ErrSessionGone
	}

	snap, err := fn(pkg, st)
	if err != nil {
		return View{}, err
	}

	st.UpdatedAt = c.now()
	raw, err := json.Marshal(st)
	if err != nil {
		return View{}, fmt.Errorf("encode wizard state: %w", err)
	}
	ok, err := c.store.Replace(ctx, key, raw, c.ttl)
	if err != nil {
		return View{}, fmt.Errorf("save wizard state: %w", err)
	}
	if !ok {
		c.logger.Info("discarding result for removed wizard", zap.String("key", key))
		return View{}, ErrSessionGone
	}
	return c.view(ctx, pkg, st, snap)
}

func (c *Controller) observe(pkg catalog.PackageDefinition, st *State, snap *cart.Snapshot) {
	req := pkg.Categories[st.Step]
	count := c.count(req, snap)

	p := st.Progress[req.Name]
	fired := p.Observe(req, count)
	st.Progress[req.Name] = p

	switch {
	case fired && st.Phase == PhaseSelectingCategory:
		st.Phase = PhaseShowingUpsell
	case st.Phase == PhaseShowingUpsell && count < req.Required:
		st.Phase = PhaseSelectingCategory
	}
}

func (c *Controller) count(req catalog.CategoryRequirement, snap *cart.Snapshot) int {
	count, clamped := fulfillment.Count(req, snap)
	if clamped {
		c.logger.Warn("negative selection count clamped to zero", zap.String("category", req.Name))
	}
	return count
}

func (c *Controller) view(ctx context.Context, pkg catalog.PackageDefinition, st *State, snap *cart.Snapshot) (View, error) {
	v := View{State: *st}
	switch st.Phase {
	case PhaseSelectingCategory, PhaseShowingUpsell, PhaseFinalizing:
	default:
		return v, nil
	}

	if snap == nil {
		var err error
		if snap, err = c.cart.Fetch(ctx, st.Scope); err != nil {
			return View{}, err
		}
	}
	if st.selecting() {
		v.Current = pkg.Categories[st.Step].Name
	}
	if err := checkActive(pkg, snap); err != nil {
		c.logger.Warn("omitting step statuses", zap.Int("package_id", pkg.ID), zap.Error(err))
		return v, nil
	}
	v.Steps = fulfillment.Evaluate(pkg, snap)
	return v, nil
}

func (c *Controller) lookup(scope, identifier string) (catalog.PackageDefinition, error) {
	if strings.TrimSpace(scope) == "" {
		return catalog.PackageDefinition{}, cart.ErrMissingToken
	}
	return c.catalog.Lookup(identifier)
}

func (c *Controller) load(ctx context.Context, scope string, pkg catalog.PackageDefinition) (*State, bool, error) {
	key := storage.WizardKey(scope, pkg.ID)
	raw, found, err := c.store.Load(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("load wizard state: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		c.logger.Warn("dropping unreadable wizard state", zap.String("key", key), zap.Error(err))
		_ = c.store.Delete(ctx, key)
		return nil, false, nil
	}
	st.Scope = scope
	st.normalize(pkg)
	return &st, true, nil
}

func (c *Controller) save(ctx context.Context, key string, st *State) error {
	st.UpdatedAt = c.now()
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode wizard state: %w", err)
	}
	if err := c.store.Save(ctx, key, raw, c.ttl); err != nil {
		return fmt.Errorf("save wizard state: %w", err)
	}
	return nil
}

func (c *Controller) lock(key string) func() {
	m := &c.locks[xxhash.Sum64String(key)%lockStripes]
	m.Lock()
	return m.Unlock
}

// checkActive reports whether the backend's active menu is the package the
// wizard is building. Counts read from any other menu are meaningless.
func checkActive(pkg catalog.PackageDefinition, snap *cart.Snapshot) error {
	if snap == nil || snap.Active == nil {
		return fmt.Errorf("%w: no active menu, want package %d", cart.ErrInconsistentState, pkg.ID)
	}
	if snap.Active.ID != pkg.ID {
		return fmt.Errorf("%w: active menu %d, want package %d", cart.ErrInconsistentState, snap.Active.ID, pkg.ID)
	}
	return nil
}

func shortfall(status fulfillment.StepStatus) *ValidationError {
	return &ValidationError{
		Kind:      KindShortfall,
		Category:  status.Name,
		Required:  status.Required,
		Current:   status.Current,
		Shortfall: status.Shortfall,
	}
}
