package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// UnknownCategoryName labels cart lines whose category id no requirement claims.
const UnknownCategoryName = "Andere"

//go:embed packages.yaml
var defaultTable []byte

var defaultExtrasIDs = []int{74}

// Catalog is an immutable, dual-keyed index of package definitions.
type Catalog struct {
	packages  []PackageDefinition
	byID      map[int]int
	byName    map[string]int
	extrasIDs []int
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithDefaultExtrasIDs overrides the extras category ids used for packages that
// do not declare an Extras requirement.
func WithDefaultExtrasIDs(ids []int) Option {
	return func(c *Catalog) {
		if len(ids) > 0 {
			c.extrasIDs = append([]int(nil), ids...)
		}
	}
}

type yamlTable struct {
	Packages []yamlPackage `yaml:"packages"`
}

type yamlPackage struct {
	ID            int            `yaml:"id"`
	Name          string         `yaml:"name"`
	PricePerGuest string         `yaml:"price_per_guest"`
	MinimumGuests int            `yaml:"minimum_guests"`
	Categories    []yamlCategory `yaml:"categories"`
}

type yamlCategory struct {
	Name  string `yaml:"name"`
	IDs   []int  `yaml:"ids"`
	Count int    `yaml:"count"`
}

// Default returns the built-in catalog.
func Default(opts ...Option) (*Catalog, error) {
	return Parse(defaultTable, opts...)
}

// LoadFile reads a catalog table from a YAML file.
func LoadFile(path string, opts ...Option) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data, opts...)
}

// Parse builds a catalog from its YAML representation.
func Parse(data []byte, opts ...Option) (*Catalog, error) {
	var table yamlTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}

	defs := make([]PackageDefinition, 0, len(table.Packages))
	for _, p := range table.Packages {
		price, err := decimal.NewFromString(strings.TrimSpace(p.PricePerGuest))
		if err != nil {
			return nil, fmt.Errorf("%w: package %d price %q", ErrInvalidCatalog, p.ID, p.PricePerGuest)
		}
		def := PackageDefinition{
			ID:            p.ID,
			Name:          strings.TrimSpace(p.Name),
			PricePerGuest: price,
			MinimumGuests: p.MinimumGuests,
			Categories:    make([]CategoryRequirement, 0, len(p.Categories)),
		}
		for _, c := range p.Categories {
			def.Categories = append(def.Categories, CategoryRequirement{
				Name:        strings.TrimSpace(c.Name),
				CategoryIDs: append([]int(nil), c.IDs...),
				Required:    c.Count,
			})
		}
		defs = append(defs, def)
	}
	return New(defs, opts...)
}

// New validates definitions and indexes them by id and name.
func New(defs []PackageDefinition, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		packages:  make([]PackageDefinition, 0, len(defs)),
		byID:      make(map[int]int, len(defs)),
		byName:    make(map[string]int, len(defs)),
		extrasIDs: append([]int(nil), defaultExtrasIDs...),
	}
	for _, opt := range opts {
		opt(c)
	}

	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no packages", ErrInvalidCatalog)
	}

	for _, def := range defs {
		if err := validateDefinition(def); err != nil {
			return nil, err
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate package id %d", ErrInvalidCatalog, def.ID)
		}
		if _, dup := c.byName[def.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate package name %q", ErrInvalidCatalog, def.Name)
		}
		c.byID[def.ID] = len(c.packages)
		c.byName[def.Name] = len(c.packages)
		c.packages = append(c.packages, def)
	}
	return c, nil
}

func validateDefinition(def PackageDefinition) error {
	switch {
	case def.ID <= 0:
		return fmt.Errorf("%w: package id must be positive, got %d", ErrInvalidCatalog, def.ID)
	case def.Name == "":
		return fmt.Errorf("%w: package %d has no name", ErrInvalidCatalog, def.ID)
	case !def.PricePerGuest.IsPositive():
		return fmt.Errorf("%w: package %d price must be positive", ErrInvalidCatalog, def.ID)
	case def.MinimumGuests < 0:
		return fmt.Errorf("%w: package %d minimum guests must be >= 0", ErrInvalidCatalog, def.ID)
	case len(def.Categories) == 0:
		return fmt.Errorf("%w: package %d has no categories", ErrInvalidCatalog, def.ID)
	}

	seen := make(map[string]struct{}, len(def.Categories))
	for _, cat := range def.Categories {
		if cat.Name == "" {
			return fmt.Errorf("%w: package %d has an unnamed category", ErrInvalidCatalog, def.ID)
		}
		if _, dup := seen[cat.Name]; dup {
			return fmt.Errorf("%w: package %d repeats category %q", ErrInvalidCatalog, def.ID, cat.Name)
		}
		seen[cat.Name] = struct{}{}
		if cat.Required < 0 {
			return fmt.Errorf("%w: category %q count must be >= 0", ErrInvalidCatalog, cat.Name)
		}
		if len(cat.CategoryIDs) == 0 {
			return fmt.Errorf("%w: category %q has no category ids", ErrInvalidCatalog, cat.Name)
		}
	}
	return nil
}

// Lookup resolves a package by numeric id or display name.
func (c *Catalog) Lookup(identifier string) (PackageDefinition, error) {
	identifier = strings.TrimSpace(identifier)
	if id, err := strconv.Atoi(identifier); err == nil {
		if idx, ok := c.byID[id]; ok {
			return c.packages[idx], nil
		}
	}
	if idx, ok := c.byName[identifier]; ok {
		return c.packages[idx], nil
	}
	return PackageDefinition{}, fmt.Errorf("%w: %q", ErrPackageNotFound, identifier)
}

// LookupID resolves a package by its numeric id.
func (c *Catalog) LookupID(id int) (PackageDefinition, error) {
	if idx, ok := c.byID[id]; ok {
		return c.packages[idx], nil
	}
	return PackageDefinition{}, fmt.Errorf("%w: id %d", ErrPackageNotFound, id)
}

// Packages returns all definitions in table order.
func (c *Catalog) Packages() []PackageDefinition {
	out := make([]PackageDefinition, len(c.packages))
	copy(out, c.packages)
	return out
}

// ExtrasCategoryIDs returns the category ids billed as extras for pkg.
func (c *Catalog) ExtrasCategoryIDs(pkg PackageDefinition) []int {
	for _, r := range pkg.Categories {
		if r.IsExtras() {
			return append([]int(nil), r.CategoryIDs...)
		}
	}
	return c.DefaultExtrasIDs()
}

// DefaultExtrasIDs returns the fallback extras category ids.
func (c *Catalog) DefaultExtrasIDs() []int {
	return append([]int(nil), c.extrasIDs...)
}

// CategoryName maps a backend category id to the requirement that claims it.
// Constrained requirements win over Extras when ids overlap.
func (c *Catalog) CategoryName(pkg PackageDefinition, categoryID int) string {
	extras := ""
	for _, r := range pkg.Categories {
		if !r.Contains(categoryID) {
			continue
		}
		if !r.IsExtras() {
			return r.Name
		}
		extras = r.Name
	}
	if extras != "" {
		return extras
	}
	return UnknownCategoryName
}
