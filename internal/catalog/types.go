package catalog

import "github.com/shopspring/decimal"

// CategoryRequirement is one selection step of a package: the shopper has to
// pick Required units from products in any of CategoryIDs.
type CategoryRequirement struct {
	Name        string
	CategoryIDs []int
	Required    int
}

// IsExtras reports whether the requirement is the unconstrained add-on
// category. Extras never gate the wizard.
func (r CategoryRequirement) IsExtras() bool {
	return r.Required == 0
}

// Contains reports whether categoryID contributes to the requirement.
func (r CategoryRequirement) Contains(categoryID int) bool {
	for _, id := range r.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// PackageDefinition describes a catering menu tier.
type PackageDefinition struct {
	ID            int
	Name          string
	PricePerGuest decimal.Decimal
	MinimumGuests int
	Categories    []CategoryRequirement
}

// Steps returns the requirements that form wizard steps, in order. The Extras
// requirement is included when present; it simply never blocks.
func (p PackageDefinition) Steps() []CategoryRequirement {
	out := make([]CategoryRequirement, len(p.Categories))
	copy(out, p.Categories)
	return out
}

// Requirement returns the requirement with the given name.
func (p PackageDefinition) Requirement(name string) (CategoryRequirement, bool) {
	for _, r := range p.Categories {
		if r.Name == name {
			return r, true
		}
	}
	return CategoryRequirement{}, false
}
