// Package fulfillment counts how many qualifying products the shopper has
// selected for each requirement of the package being configured.
package fulfillment

import (
	"github.com/eugenenazirov/catering-cart/internal/cart"
	"github.com/eugenenazirov/catering-cart/internal/catalog"
)

// StepStatus is the per-requirement view handed to the UI layer.
type StepStatus struct {
	Name      string `json:"name"`
	Current   int    `json:"current"`
	Required  int    `json:"required"`
	Satisfied bool   `json:"satisfied"`
	Shortfall int    `json:"shortfall"`
	Extras    bool   `json:"extras"`
}

// Count returns the number of selected units for req. A count reported by the
// backend for the requirement wins over one derived from cart lines. Negative
// results are clamped to zero; clamped reports whether that happened so the
// caller can log the inconsistency.
func Count(req catalog.CategoryRequirement, snap *cart.Snapshot) (count int, clamped bool) {
	if snap == nil || snap.Active == nil {
		return 0, false
	}

	if content, ok := snap.Active.Content(req.Name); ok && content.CurrentCount != nil {
		count = *content.CurrentCount
	} else {
		for categoryID, lines := range snap.Active.Lines {
			if !req.Contains(categoryID) {
				continue
			}
			for _, line := range lines {
				count += line.Quantity
			}
		}
	}

	if count < 0 {
		return 0, true
	}
	return count, false
}

// CurrentCount is Count without the clamping report.
func CurrentCount(req catalog.CategoryRequirement, snap *cart.Snapshot) int {
	count, _ := Count(req, snap)
	return count
}

// IsSatisfied reports whether enough units are selected. Extras always is.
func IsSatisfied(req catalog.CategoryRequirement, snap *cart.Snapshot) bool {
	if req.IsExtras() {
		return true
	}
	return CurrentCount(req, snap) >= req.Required
}

// Status evaluates a single requirement.
func Status(req catalog.CategoryRequirement, snap *cart.Snapshot) StepStatus {
	current := CurrentCount(req, snap)
	st := StepStatus{
		Name:     req.Name,
		Current:  current,
		Required: req.Required,
		Extras:   req.IsExtras(),
	}
	st.Satisfied = st.Extras || current >= req.Required
	if !st.Satisfied {
		st.Shortfall = req.Required - current
	}
	return st
}

// Evaluate returns one status per requirement of pkg, in step order.
func Evaluate(pkg catalog.PackageDefinition, snap *cart.Snapshot) []StepStatus {
	out := make([]StepStatus, 0, len(pkg.Categories))
	for _, req := range pkg.Categories {
		out = append(out, Status(req, snap))
	}
	return out
}
