package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/catering-cart/internal/api"
	"github.com/eugenenazirov/catering-cart/internal/cart"
	"github.com/eugenenazirov/catering-cart/internal/catalog"
	"github.com/eugenenazirov/catering-cart/internal/config"
	"github.com/eugenenazirov/catering-cart/internal/pricing"
	"github.com/eugenenazirov/catering-cart/internal/storage"
	"github.com/eugenenazirov/catering-cart/internal/wizard"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	pricing Pricing
	carts   *cart.Accessor
	store   storage.Store
	wizard  *wizard.Controller
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// Pricing bundles the catalog with the calculator and formatter built on it.
// The offline quote command needs nothing else.
type Pricing struct {
	Catalog    *catalog.Catalog
	Calculator pricing.Calculator
	Formatter  pricing.Formatter
}

// NewPricing builds the catalog and pricing engine from configuration.
func NewPricing(cfg config.Config) (Pricing, error) {
	cat, err := loadCatalog(cfg)
	if err != nil {
		return Pricing{}, err
	}
	formatter, err := pricing.NewFormatter(cfg.Locale, cfg.Currency)
	if err != nil {
		return Pricing{}, err
	}
	calc := pricing.New(cat, pricing.Rules{
		BulkBand:         cfg.BulkBand,
		DefaultExtrasIDs: cfg.ExtrasIDs,
	})
	return Pricing{Catalog: cat, Calculator: calc, Formatter: formatter}, nil
}

// New initializes the application with all dependencies from the provided
// configuration. ctx bounds the startup checks of external stores.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if strings.TrimSpace(cfg.BackendURL) == "" {
		return nil, errors.New("backend URL is required")
	}

	p, err := NewPricing(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build pricing: %w", err)
	}

	backend, err := cart.NewHTTPBackend(cfg.BackendURL, cfg.BackendTimeout, logger,
		cart.WithRoutePrefix(cfg.BackendRoutePrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	carts := cart.NewAccessor(backend, logger, cart.WithTTL(cfg.CacheTTL))

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch store: %w", err)
	}

	wiz := wizard.NewController(p.Catalog, carts, store, logger, wizard.WithStateTTL(cfg.WizardTTL))
	handler := api.NewHandler(p.Catalog, carts, wiz, p.Calculator, p.Formatter, api.WithLogger(logger))
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		pricing: p,
		carts:   carts,
		store:   store,
		wizard:  wiz,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter)),
	}, nil
}

// BuildRootHandler mounts the API under /api/ and answers everything else with 404.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.NotFoundHandler())
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases the scratch store connection, if any.
func (a *App) Close() error {
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func newStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.ScratchStore {
	case storage.KindMemory, "":
		return storage.NewMemoryStore(), nil
	case storage.KindRedis:
		store, err := storage.NewRedisStore(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownKind, cfg.ScratchStore)
	}
}

func loadCatalog(cfg config.Config) (*catalog.Catalog, error) {
	opts := []catalog.Option{catalog.WithDefaultExtrasIDs(cfg.ExtrasIDs)}
	if cfg.CatalogFile == "" {
		return catalog.Default(opts...)
	}

	path := cfg.CatalogFile
	if !filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			resolved, rerr := resolveProjectPath(path)
			if rerr != nil {
				return nil, fmt.Errorf("catalog file: %w", err)
			}
			path = resolved
		}
	}
	return catalog.LoadFile(path, opts...)
}

// resolveProjectPath locates a file or directory relative to the project root by walking up the directory tree.
func resolveProjectPath(relative string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", relative)
}
