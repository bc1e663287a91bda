package catalog

import "errors"

var (
	// ErrPackageNotFound is returned when an identifier is absent from the catalog.
	ErrPackageNotFound = errors.New("package not found in catalog")
	// ErrInvalidCatalog is returned when a catalog table fails validation.
	ErrInvalidCatalog = errors.New("invalid catalog definition")
)
