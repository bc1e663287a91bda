package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/shopspring/decimal"
)

func TestDefaultCatalogLoads(t *testing.T) {
	t.Parallel()

	c, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	if got := len(c.Packages()); got != 9 {
		t.Fatalf("expected 9 packages, got %d", got)
	}
}

func TestLookupDualKeying(t *testing.T) {
	t.Parallel()

	c, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}

	tests := []struct {
		name       string
		identifier string
		wantID     int
	}{
		{name: "NumericID", identifier: "1", wantID: 1},
		{name: "NumericIDWithSpaces", identifier: " 9 ", wantID: 9},
		{name: "DisplayName", identifier: "Salat Buffet Menü (Basic)", wantID: 1},
		{name: "OfficeByName", identifier: "Office Menü (Premium)", wantID: 9},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.Lookup(tc.identifier)
			if err != nil {
				t.Fatalf("Lookup(%q) returned error: %v", tc.identifier, err)
			}
			if got.ID != tc.wantID {
				t.Fatalf("expected id %d, got %d", tc.wantID, got.ID)
			}
		})
	}
}

func TestLookupUnknownReturnsNotFound(t *testing.T) {
	t.Parallel()

	c, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}

	for _, id := range []string{"", "42", "Gala Dinner"} {
		if _, err := c.Lookup(id); !errors.Is(err, ErrPackageNotFound) {
			t.Fatalf("expected ErrPackageNotFound for %q, got %v", id, err)
		}
	}
	if _, err := c.LookupID(0); !errors.Is(err, ErrPackageNotFound) {
		t.Fatalf("expected ErrPackageNotFound for id 0, got %v", err)
	}
}

func TestSaladBasicComposition(t *testing.T) {
	t.Parallel()

	c, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	pkg, err := c.LookupID(1)
	if err != nil {
		t.Fatalf("LookupID returned error: %v", err)
	}

	if !pkg.PricePerGuest.Equal(decimal.RequireFromString("12.50")) {
		t.Fatalf("unexpected price %s", pkg.PricePerGuest)
	}
	if pkg.MinimumGuests != 10 {
		t.Fatalf("unexpected minimum guests %d", pkg.MinimumGuests)
	}

	names := make([]string, 0, len(pkg.Categories))
	for _, r := range pkg.Steps() {
		names = append(names, r.Name)
	}
	if want := []string{"Salate", "Dips", "Desserts", "Extras"}; !slices.Equal(names, want) {
		t.Fatalf("expected steps %v, got %v", want, names)
	}

	extras, ok := pkg.Requirement("Extras")
	if !ok || !extras.IsExtras() {
		t.Fatalf("expected Extras requirement to be unconstrained")
	}
}

func TestExtrasCategoryIDsFallsBackToDefault(t *testing.T) {
	t.Parallel()

	defs := []PackageDefinition{{
		ID:            100,
		Name:          "Plain",
		PricePerGuest: decimal.NewFromInt(3),
		Categories:    []CategoryRequirement{{Name: "Soups", CategoryIDs: []int{5}, Required: 1}},
	}}

	c, err := New(defs)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if got := c.ExtrasCategoryIDs(defs[0]); !slices.Equal(got, []int{74}) {
		t.Fatalf("expected fallback [74], got %v", got)
	}

	c, err = New(defs, WithDefaultExtrasIDs([]int{90, 91}))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if got := c.ExtrasCategoryIDs(defs[0]); !slices.Equal(got, []int{90, 91}) {
		t.Fatalf("expected configured fallback, got %v", got)
	}
}

func TestCategoryNamePrefersConstrainedRequirement(t *testing.T) {
	t.Parallel()

	c, err := Default()
	if err != nil {
		t.Fatalf("Default returned error: %v", err)
	}
	pkg, _ := c.LookupID(1)

	if got := c.CategoryName(pkg, 73); got != "Desserts" {
		t.Fatalf("expected Desserts for id 73, got %s", got)
	}
	if got := c.CategoryName(pkg, 74); got != "Extras" {
		t.Fatalf("expected Extras for id 74, got %s", got)
	}
	if got := c.CategoryName(pkg, 999); got != UnknownCategoryName {
		t.Fatalf("expected %s for unknown id, got %s", UnknownCategoryName, got)
	}
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	t.Parallel()

	valid := func() PackageDefinition {
		return PackageDefinition{
			ID:            1,
			Name:          "A",
			PricePerGuest: decimal.NewFromInt(1),
			Categories:    []CategoryRequirement{{Name: "X", CategoryIDs: []int{1}, Required: 1}},
		}
	}

	tests := []struct {
		name string
		defs func() []PackageDefinition
	}{
		{name: "Empty", defs: func() []PackageDefinition { return nil }},
		{name: "ZeroPrice", defs: func() []PackageDefinition {
			d := valid()
			d.PricePerGuest = decimal.Zero
			return []PackageDefinition{d}
		}},
		{name: "NegativeCount", defs: func() []PackageDefinition {
			d := valid()
			d.Categories[0].Required = -1
			return []PackageDefinition{d}
		}},
		{name: "DuplicateID", defs: func() []PackageDefinition {
			a, b := valid(), valid()
			b.Name = "B"
			return []PackageDefinition{a, b}
		}},
		{name: "DuplicateName", defs: func() []PackageDefinition {
			a, b := valid(), valid()
			b.ID = 2
			return []PackageDefinition{a, b}
		}},
		{name: "NoCategoryIDs", defs: func() []PackageDefinition {
			d := valid()
			d.Categories[0].CategoryIDs = nil
			return []PackageDefinition{d}
		}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.defs()); !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := []byte(`packages:
  - id: 11
    name: "Brunch"
    price_per_guest: "9.95"
    minimum_guests: 5
    categories:
      - { name: "Bowls", ids: [80], count: 2 }
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile returned error: %v", err)
	}
	pkg, err := c.Lookup("Brunch")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if !pkg.PricePerGuest.Equal(decimal.RequireFromString("9.95")) {
		t.Fatalf("unexpected price %s", pkg.PricePerGuest)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := Parse([]byte("packages: [{id: 1, name: x, price_per_guest: abc}]")); !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("expected ErrInvalidCatalog for bad price, got %v", err)
	}
}
