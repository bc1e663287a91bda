// Package catalog holds the static menu table: which catering packages exist,
// what they cost per guest, and how many products of each category a shopper
// must pick before the package can be added to the cart. Packages can be
// looked up by numeric id or by display name.
package catalog
