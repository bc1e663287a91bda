// Package application provides application initialization and dependency wiring.
// It builds the catalog, pricing engine, backend client, cart cache, wizard
// scratch store, handlers, router and HTTP server, so the main package only
// deals with CLI parsing and orchestration.
package application
