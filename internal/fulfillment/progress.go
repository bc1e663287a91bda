package fulfillment

import "github.com/eugenenazirov/catering-cart/internal/catalog"

// Progress is the remembered state of one requirement across wizard renders.
type Progress struct {
	LastKnownCount  int  `json:"lastKnownCount"`
	UpsellTriggered bool `json:"upsellTriggered"`
}

// Observe records count and reports whether the upsell should fire. It fires
// once when the count reaches the requirement and re-arms when the count drops
// below it again. Extras never fire.
func (p *Progress) Observe(req catalog.CategoryRequirement, count int) bool {
	if count < 0 {
		count = 0
	}
	p.LastKnownCount = count

	if req.IsExtras() {
		return false
	}
	if count < req.Required {
		p.UpsellTriggered = false
		return false
	}
	if p.UpsellTriggered {
		return false
	}
	p.UpsellTriggered = true
	return true
}
