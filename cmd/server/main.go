package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/catering-cart/internal/application"
	"github.com/eugenenazirov/catering-cart/internal/cart"
	"github.com/eugenenazirov/catering-cart/internal/config"
	"github.com/eugenenazirov/catering-cart/internal/logging"
)

var signalNotify = signal.Notify

const (
	commandServe = "serve"
	commandQuote = "quote"
)

type cli struct {
	app       *kingpin.Application
	overrides config.CLIOverrides

	port           *string
	logLevel       *string
	backendURL     *string
	catalogFile    *string
	locale         *string
	extrasIDs      *string
	scratchStore   *string
	redisAddr      *string
	rateLimitRPS   *float64
	rateLimitBurst *int

	cartFile  *string
	quoteJSON *bool
}

func newCLI() *cli {
	app := kingpin.New("catering-cart", "Catering cart service - package selection wizard and cart pricing")
	c := &cli{app: app}

	app.Flag("config", "Path to YAML configuration file").StringVar(&c.overrides.ConfigFile)
	c.catalogFile = app.Flag("catalog", "Path to a YAML package catalog replacing the built-in one").String()
	c.locale = app.Flag("locale", "Locale used for prices and messages (de-DE, en-US)").String()
	c.extrasIDs = app.Flag("extras-ids", "Comma-separated default extras category ids").String()

	c.port = app.Flag("port", "HTTP port exposed by the service").String()
	c.logLevel = app.Flag("log-level", "Log level (debug, info, warn, error)").String()
	c.backendURL = app.Flag("backend-url", "Commerce backend index.php URL").String()
	c.scratchStore = app.Flag("scratch-store", "Wizard state store (memory, redis)").String()
	c.redisAddr = app.Flag("redis-addr", "Redis address for the redis scratch store").String()
	c.rateLimitRPS = app.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	c.rateLimitBurst = app.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	app.Command(commandServe, "Run the HTTP service").Default()

	quote := app.Command(commandQuote, "Price a saved cart payload offline")
	c.cartFile = quote.Flag("cart", "Path to a cart JSON payload as returned by the backend").Required().ExistingFile()
	c.quoteJSON = quote.Flag("json", "Print totals as JSON").Bool()

	return c
}

// parse resolves the command and the CLI overrides for config.Load.
func (c *cli) parse(args []string) (string, *config.CLIOverrides, error) {
	command, err := c.app.Parse(args)
	if err != nil {
		return "", nil, err
	}

	overrides := c.overrides
	for _, f := range []struct {
		value *string
		dst   **string
	}{
		{c.port, &overrides.Port},
		{c.logLevel, &overrides.LogLevel},
		{c.backendURL, &overrides.BackendURL},
		{c.catalogFile, &overrides.CatalogFile},
		{c.locale, &overrides.Locale},
		{c.extrasIDs, &overrides.ExtrasIDsStr},
		{c.scratchStore, &overrides.ScratchStore},
		{c.redisAddr, &overrides.RedisAddr},
	} {
		if *f.value != "" {
			*f.dst = f.value
		}
	}

	if *c.rateLimitRPS >= 0 {
		overrides.RateLimitRPS = c.rateLimitRPS
	}

	if *c.rateLimitBurst >= 0 {
		overrides.RateLimitBurst = c.rateLimitBurst
	}

	return command, &overrides, nil
}

func main() {
	c := newCLI()
	command, overrides, err := c.parse(os.Args[1:])
	kingpin.FatalIfError(err, "parse arguments")

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	if command == commandQuote {
		if err := quote(os.Stdout, cfg, *c.cartFile, *c.quoteJSON); err != nil {
			fmt.Fprintf(os.Stderr, "quote failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	app, err := application.New(startCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
	if err := app.Close(); err != nil {
		logger.Warn("closing scratch store failed", zap.Error(err))
	}
}

// quote prices a cart payload read from path and writes the totals to w.
func quote(w io.Writer, cfg config.Config, path string, asJSON bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read cart: %w", err)
	}
	snap, err := cart.DecodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("decode cart: %w", err)
	}

	p, err := application.NewPricing(cfg)
	if err != nil {
		return err
	}
	totals := p.Calculator.Calculate(snap)
	formatted := p.Formatter.FormatTotals(totals)

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Totals    any `json:"totals"`
			Formatted any `json:"formatted"`
		}{totals, formatted})
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "package\tguests\tpackage price\textras\t")
	for _, pt := range totals.Packages {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t\n",
			pt.Package, pt.GuestCount,
			p.Formatter.Format(pt.Base.Add(pt.Surcharge)),
			p.Formatter.Format(pt.Extras),
		)
	}
	fmt.Fprintf(tw, "subtotal\t\t\t%s\t\n", formatted.SubTotal)
	fmt.Fprintf(tw, "extras\t\t\t%s\t\n", formatted.ExtrasTotal)
	fmt.Fprintf(tw, "total\t\t\t%s\t\n", formatted.GrandTotal)
	return tw.Flush()
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
