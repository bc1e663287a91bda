package pricing

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/catering-cart/internal/cart"
	"github.com/eugenenazirov/catering-cart/internal/catalog"
)

const (
	defaultBulkBand = 5
	currencyPlaces  = 2
	extrasContent   = "Extras"
)

// Rules holds the business constants of the pricing model.
type Rules struct {
	// BulkBand is the batch size of separately billed add-on lines: a line whose
	// quantity is a positive multiple of BulkBand is billed on top of the
	// per-guest price.
	BulkBand int
	// DefaultExtrasIDs applies to packages the catalog does not know.
	DefaultExtrasIDs []int
}

// DefaultRules returns the storefront's pricing rules.
func DefaultRules() Rules {
	return Rules{
		BulkBand:         defaultBulkBand,
		DefaultExtrasIDs: []int{74},
	}
}

type engine struct {
	catalog *catalog.Catalog
	rules   Rules
}

// New creates a Calculator. cat may be nil, in which case every package uses
// the default extras ids.
func New(cat *catalog.Catalog, rules Rules) Calculator {
	if rules.BulkBand <= 0 {
		rules.BulkBand = defaultBulkBand
	}
	if len(rules.DefaultExtrasIDs) == 0 {
		rules.DefaultExtrasIDs = DefaultRules().DefaultExtrasIDs
	}
	return &engine{catalog: cat, rules: rules}
}

func (e *engine) Calculate(snap *cart.Snapshot) Totals {
	totals := Totals{
		SubTotal:    decimal.Zero,
		ExtrasTotal: decimal.Zero,
		GrandTotal:  decimal.Zero,
		Packages:    []PackageTotals{},
	}
	if snap == nil {
		return totals
	}

	sub := decimal.Zero
	extras := decimal.Zero
	for _, order := range snap.Orders {
		pt := e.priceOrder(order, snap.Active)
		sub = sub.Add(pt.Base).Add(pt.Surcharge)
		extras = extras.Add(pt.Extras)
		totals.Packages = append(totals.Packages, pt)
	}

	totals.SubTotal = sub.Round(currencyPlaces)
	totals.ExtrasTotal = extras.Round(currencyPlaces)
	totals.GrandTotal = totals.SubTotal.Add(totals.ExtrasTotal)
	return totals
}

func (e *engine) priceOrder(order cart.PackageOrder, active *cart.ActiveMenu) PackageTotals {
	guests := order.GuestCount
	if guests <= 0 {
		guests = 1
	}

	pt := PackageTotals{
		Package:    order.Package,
		OrderID:    order.OrderID,
		GuestCount: guests,
		Base:       order.PricePerGuest.Mul(decimal.NewFromInt(int64(guests))),
		Surcharge:  decimal.Zero,
		Extras:     decimal.Zero,
	}

	extrasIDs := e.extrasIDs(order.Package, active)
	for _, categoryID := range order.CategoryIDs() {
		isExtras := slices.Contains(extrasIDs, categoryID)
		for _, line := range order.Lines[categoryID] {
			switch {
			case isExtras:
				pt.Extras = pt.Extras.Add(line.LineTotal)
			case e.isBulkLine(line):
				pt.Surcharge = pt.Surcharge.Add(line.LineTotal)
			}
		}
	}
	return pt
}

func (e *engine) isBulkLine(line cart.LineItem) bool {
	return line.Quantity >= e.rules.BulkBand &&
		line.Quantity%e.rules.BulkBand == 0 &&
		line.UnitPrice.IsPositive()
}

// extrasIDs prefers the backend's own Extras content when the active menu is
// the same package, then the catalog, then the configured defaults.
func (e *engine) extrasIDs(packageName string, active *cart.ActiveMenu) []int {
	if active != nil && active.Name == packageName {
		if content, ok := active.Content(extrasContent); ok && len(content.CategoryIDs) > 0 {
			return content.CategoryIDs
		}
	}
	if e.catalog != nil {
		if pkg, err := e.catalog.Lookup(packageName); err == nil {
			return e.catalog.ExtrasCategoryIDs(pkg)
		}
	}
	return e.rules.DefaultExtrasIDs
}
