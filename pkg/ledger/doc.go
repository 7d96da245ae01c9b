// Package ledger keeps an opt-in record of post URLs that earlier runs already
// reported, so scheduled runs can show only what is new. The ledger is a small JSON
// file in the per-user data directory, replaced atomically on every save.
package ledger
