// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, CLI flags) with precedence: CLI flags > YAML config >
// Environment variables > Defaults. Besides the HTTP server settings it covers
// the commerce backend endpoint, the pricing locale and rules, and the wizard
// scratch store.
package config
