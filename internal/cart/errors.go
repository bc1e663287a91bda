package cart

import "errors"

var (
	// ErrBackendUnavailable wraps transport failures, non-2xx responses and
	// backend-reported errors on reads.
	ErrBackendUnavailable = errors.New("commerce backend unavailable")
	// ErrInconsistentState is returned when a payload cannot be decoded into a
	// Snapshot.
	ErrInconsistentState = errors.New("cart payload has an unexpected shape")
	// ErrMissingToken is returned when a call is made without a shopper token.
	ErrMissingToken = errors.New("missing shopper token")
)
