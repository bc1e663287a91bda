package wizard

import (
	"time"

	"github.com/google/uuid"

	"github.com/eugenenazirov/catering-cart/internal/catalog"
	"github.com/eugenenazirov/catering-cart/internal/fulfillment"
)

// Phase is the wizard's position in the selection flow.
type Phase string

const (
	PhaseAwaitingGuestCount Phase = "awaiting_guest_count"
	PhaseSelectingCategory  Phase = "selecting_category"
	PhaseShowingUpsell      Phase = "showing_upsell"
	PhaseFinalizing         Phase = "finalizing"
	PhaseCompleted          Phase = "completed"
	PhaseAbandoned          Phase = "abandoned"
)

// State is the persisted wizard state of one shopper and package. Step indexes
// the package's categories and is meaningful in the selecting and upsell phases.
type State struct {
	ID          uuid.UUID                       `json:"id"`
	Scope       string                          `json:"-"`
	PackageID   int                             `json:"packageId"`
	PackageName string                          `json:"packageName"`
	GuestCount  int                             `json:"guestCount"`
	Phase       Phase                           `json:"phase"`
	Step        int                             `json:"step"`
	Progress    map[string]fulfillment.Progress `json:"progress"`
	OrderID     string                          `json:"orderId,omitempty"`
	UpdatedAt   time.Time                       `json:"updatedAt"`
}

// View is what the wizard reports after every operation.
type View struct {
	State State `json:"state"`
	// Current names the category of the current step, if any.
	Current string `json:"current,omitempty"`
	// Steps is the fulfillment of every category, present when the wizard has
	// a confirmed guest count.
	Steps []fulfillment.StepStatus `json:"steps,omitempty"`
}

func (s *State) selecting() bool {
	return s.Phase == PhaseSelectingCategory || s.Phase == PhaseShowingUpsell
}

// normalize repairs state loaded against a catalog that changed since it was saved.
func (s *State) normalize(pkg catalog.PackageDefinition) {
	if s.Progress == nil {
		s.Progress = make(map[string]fulfillment.Progress)
	}
	last := len(pkg.Categories) - 1
	if s.Step > last {
		s.Step = last
	}
	if s.Step < 0 {
		s.Step = 0
	}
	s.PackageName = pkg.Name
}
