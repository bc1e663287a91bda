// Package storage keeps short-lived wizard state outside the request cycle.
// MemoryStore serves single-instance deployments and tests; RedisStore lets
// several service instances share wizard sessions.
package storage
