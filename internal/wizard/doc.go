// Package wizard drives the package selection flow: guest count, one step per
// menu category, the extras upsell, and the final commit into the cart.
// Wizard state lives in a storage.Store keyed by shopper and package.
package wizard
