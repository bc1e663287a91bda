package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/catering-cart/internal/pricing"
	"github.com/eugenenazirov/catering-cart/internal/storage"
)

const (
	defaultPort           = "8080"
	defaultRateLimitRPS   = 25.0
	defaultRateLimitBurst = 50
	defaultLocale         = "de-DE"
	defaultCurrency       = "EUR"
	defaultBulkBand       = 5
)

var defaultExtrasIDs = []int{74}

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	Port                 string
	LogLevel             string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int

	// BackendURL is the commerce backend's index.php endpoint.
	BackendURL         string
	BackendRoutePrefix string
	BackendTimeout     time.Duration
	CacheTTL           time.Duration

	// CatalogFile replaces the embedded package table when set.
	CatalogFile string

	Locale    string
	Currency  string
	BulkBand  int
	ExtrasIDs []int

	ScratchStore string
	RedisAddr    string
	WizardTTL    time.Duration
}

// yamlConfig represents the YAML configuration file structure. Pointers tell
// an omitted key from an explicit zero.
type yamlConfig struct {
	Port                 string        `yaml:"port"`
	LogLevel             string        `yaml:"log_level"`
	ShutdownGracePeriod  string        `yaml:"shutdown_grace_period"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging *bool         `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
	Backend              yamlBackend   `yaml:"backend"`
	CatalogFile          string        `yaml:"catalog_file"`
	Pricing              yamlPricing   `yaml:"pricing"`
	Scratch              yamlScratch   `yaml:"scratch"`
}

type yamlRateLimit struct {
	RPS   *float64 `yaml:"rps"`
	Burst *int     `yaml:"burst"`
}

type yamlBackend struct {
	URL         string `yaml:"url"`
	RoutePrefix string `yaml:"route_prefix"`
	Timeout     string `yaml:"timeout"`
	CacheTTL    string `yaml:"cache_ttl"`
}

type yamlPricing struct {
	Locale    string `yaml:"locale"`
	Currency  string `yaml:"currency"`
	BulkBand  int    `yaml:"bulk_band"`
	ExtrasIDs []int  `yaml:"extras_ids"`
}

type yamlScratch struct {
	Store     string `yaml:"store"`
	RedisAddr string `yaml:"redis_addr"`
	TTL       string `yaml:"ttl"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Port           *string
	LogLevel       *string
	BackendURL     *string
	CatalogFile    *string
	Locale         *string
	ExtrasIDsStr   *string
	ScratchStore   *string
	RedisAddr      *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	// Apply environment variables first; YAML overrides them
	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Port:                 defaultPort,
		LogLevel:             "info",
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		BackendRoutePrefix:   "api",
		BackendTimeout:       10 * time.Second,
		CacheTTL:             5 * time.Second,
		Locale:               defaultLocale,
		Currency:             defaultCurrency,
		BulkBand:             defaultBulkBand,
		ExtrasIDs:            append([]int(nil), defaultExtrasIDs...),
		ScratchStore:         storage.KindMemory,
		WizardTTL:            24 * time.Hour,
	}
}

func loadFromFile(path string) (*yamlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	return &yamlCfg, nil
}

func applyYAMLConfig(cfg *Config, y *yamlConfig) error {
	setString(&cfg.Port, y.Port)
	setString(&cfg.LogLevel, y.LogLevel)
	setString(&cfg.BackendURL, y.Backend.URL)
	setString(&cfg.BackendRoutePrefix, y.Backend.RoutePrefix)
	setString(&cfg.CatalogFile, y.CatalogFile)
	setString(&cfg.Locale, y.Pricing.Locale)
	setString(&cfg.Currency, y.Pricing.Currency)
	setString(&cfg.ScratchStore, y.Scratch.Store)
	setString(&cfg.RedisAddr, y.Scratch.RedisAddr)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"shutdown_grace_period", y.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"read_header_timeout", y.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"write_timeout", y.WriteTimeout, &cfg.WriteTimeout},
		{"idle_timeout", y.IdleTimeout, &cfg.IdleTimeout},
		{"backend.timeout", y.Backend.Timeout, &cfg.BackendTimeout},
		{"backend.cache_ttl", y.Backend.CacheTTL, &cfg.CacheTTL},
		{"scratch.ttl", y.Scratch.TTL, &cfg.WizardTTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		value, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = value
	}

	if y.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *y.EnableRequestLogging
	}
	if y.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *y.RateLimit.RPS
	}
	if y.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *y.RateLimit.Burst
	}
	if y.Pricing.BulkBand != 0 {
		cfg.BulkBand = y.Pricing.BulkBand
	}
	if len(y.Pricing.ExtrasIDs) > 0 {
		cfg.ExtrasIDs = append([]int(nil), y.Pricing.ExtrasIDs...)
	}
	return nil
}

// applyEnvConfig applies environment variable configuration. Unparseable
// values are errors rather than silently ignored.
func applyEnvConfig(cfg *Config) error {
	strs := map[string]*string{
		"PORT":                 &cfg.Port,
		"LOG_LEVEL":            &cfg.LogLevel,
		"BACKEND_URL":          &cfg.BackendURL,
		"BACKEND_ROUTE_PREFIX": &cfg.BackendRoutePrefix,
		"CATALOG_FILE":         &cfg.CatalogFile,
		"LOCALE":               &cfg.Locale,
		"CURRENCY":             &cfg.Currency,
		"SCRATCH_STORE":        &cfg.ScratchStore,
		"REDIS_ADDR":           &cfg.RedisAddr,
	}
	for name, dst := range strs {
		setString(dst, os.Getenv(name))
	}

	durations := map[string]*time.Duration{
		"BACKEND_TIMEOUT": &cfg.BackendTimeout,
		"CACHE_TTL":       &cfg.CacheTTL,
		"WIZARD_TTL":      &cfg.WizardTTL,
	}
	for name, dst := range durations {
		raw := strings.TrimSpace(os.Getenv(name))
		if raw == "" {
			continue
		}
		value, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = value
	}

	if rps := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); rps != "" {
		value, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimitRPS = value
	}

	if burst := strings.TrimSpace(os.Getenv("RATE_LIMIT_BURST")); burst != "" {
		value, err := strconv.Atoi(burst)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimitBurst = value
	}

	if band := strings.TrimSpace(os.Getenv("BULK_BAND")); band != "" {
		value, err := strconv.Atoi(band)
		if err != nil {
			return fmt.Errorf("BULK_BAND: %w", err)
		}
		cfg.BulkBand = value
	}

	if raw := strings.TrimSpace(os.Getenv("EXTRAS_IDS")); raw != "" {
		ids, err := parseIDs(raw)
		if err != nil {
			return fmt.Errorf("EXTRAS_IDS: %w", err)
		}
		cfg.ExtrasIDs = ids
	}
	return nil
}

func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	for _, o := range []struct {
		src *string
		dst *string
	}{
		{overrides.Port, &cfg.Port},
		{overrides.LogLevel, &cfg.LogLevel},
		{overrides.BackendURL, &cfg.BackendURL},
		{overrides.CatalogFile, &cfg.CatalogFile},
		{overrides.Locale, &cfg.Locale},
		{overrides.ScratchStore, &cfg.ScratchStore},
		{overrides.RedisAddr, &cfg.RedisAddr},
	} {
		if o.src != nil {
			setString(o.dst, *o.src)
		}
	}

	if overrides.ExtrasIDsStr != nil && *overrides.ExtrasIDsStr != "" {
		ids, err := parseIDs(*overrides.ExtrasIDsStr)
		if err != nil {
			return fmt.Errorf("parse extras ids: %w", err)
		}
		cfg.ExtrasIDs = ids
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	return nil
}

func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.BackendTimeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}
	if cfg.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must be >= 0")
	}
	if cfg.WizardTTL <= 0 {
		return fmt.Errorf("wizard TTL must be positive")
	}
	if cfg.BulkBand <= 0 {
		return fmt.Errorf("bulk band must be positive, got %d", cfg.BulkBand)
	}
	if len(cfg.ExtrasIDs) == 0 {
		return fmt.Errorf("extras ids cannot be empty")
	}
	if _, err := pricing.NewFormatter(cfg.Locale, cfg.Currency); err != nil {
		return err
	}
	switch cfg.ScratchStore {
	case storage.KindMemory:
	case storage.KindRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("scratch store %q requires a redis address", cfg.ScratchStore)
		}
	default:
		return fmt.Errorf("%w: %q", storage.ErrUnknownKind, cfg.ScratchStore)
	}
	return nil
}

// parseIDs parses a comma-separated list of positive category ids.
func parseIDs(raw string) ([]int, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", part)
		}
		if value <= 0 {
			return nil, fmt.Errorf("category id must be positive, got %d", value)
		}
		ids = append(ids, value)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no category ids provided")
	}
	return ids, nil
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}
