// Package cart talks to the commerce backend. It decodes the backend's loosely
// typed cart payloads into a Snapshot, performs form-encoded cart mutations,
// and caches snapshots per shopper with single-flight fetching and explicit
// invalidation after every write.
package cart
