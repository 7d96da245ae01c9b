// Package pipeline turns raw per-account results into the run's final post list:
// age filtering, URL deduplication (first occurrence wins) and a stable
// newest-first sort. Every function returns new slices except SortPosts, which
// sorts in place.
package pipeline
