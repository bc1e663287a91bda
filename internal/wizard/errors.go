package wizard

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionGone indicates the wizard state was removed, typically by a
	// concurrent abandon, and the result of the call was discarded.
	ErrSessionGone = errors.New("wizard session no longer exists")
	// ErrInvalidTransition indicates an operation that the current phase does
	// not allow.
	ErrInvalidTransition = errors.New("operation not allowed in current wizard phase")
	// ErrRejected indicates the backend declined a change it was asked to make.
	ErrRejected = errors.New("backend rejected the change")
)

// ValidationKind tells which rule a ValidationError broke.
type ValidationKind string

const (
	KindGuestCount ValidationKind = "guest_count"
	KindShortfall  ValidationKind = "shortfall"
)

// ValidationError blocks a transition. It carries the numbers the shopper
// needs to fix the selection.
type ValidationError struct {
	Kind ValidationKind

	// guest count
	MinimumGuests int
	Guests        int

	// category shortfall
	Category  string
	Required  int
	Current   int
	Shortfall int
}

func (e *ValidationError) Error() string {
	if e.Kind == KindGuestCount {
		return fmt.Sprintf("at least %d guests required, got %d", e.MinimumGuests, e.Guests)
	}
	return fmt.Sprintf("select %d more of %s, you have %d", e.Shortfall, e.Category, e.Current)
}
