// Package monitor is the run orchestrator.
//
// A Monitor visits each account's profile page through a browser.Fetcher, opens
// up to max_posts_per_account posts, extracts them, and aggregates the results
// with package pipeline. Accounts and posts are processed one at a time with the
// configured pacing. Progress is published as Events on an optional channel and
// the run stops at the next account or post boundary once its context is
// cancelled. Report writes the rendered HTML (and optional JSON sidecar) to the
// output directory.
package monitor
