// Package pricing derives cart totals from a snapshot: a flat per-guest price
// per package, a surcharge for bulk add-on lines, and extras billed on their
// own. Amounts are decimal and rounded to currency precision only at the end.
package pricing
