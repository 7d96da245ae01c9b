// Package extract reads Instagram page snapshots.
//
// It lists post links on a profile page, reads the caption and publish time of a
// post page, and detects the login wall. Captions are located by a ranked chain of
// strategies: an absolute DOM path first, then more forgiving CSS selectors. All
// selectors live in selectors.go.
package extract
