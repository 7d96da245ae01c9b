package pipeline

import (
	"sort"
	"time"

	"igmonitor/pkg/models"
)

// UndatedPolicy decides what happens to posts without a publish timestamp
type UndatedPolicy string

const (
	// UndatedExclude drops undated posts since their recency cannot be established
	UndatedExclude UndatedPolicy = "exclude"
	// UndatedKeep keeps undated posts; they sort after every dated post
	UndatedKeep UndatedPolicy = "keep"
)

// FilterByAge keeps dated posts published no more than maxAge before asOf.
// Posts dated after asOf are kept. Undated posts follow policy.
func FilterByAge(posts []models.Post, maxAge time.Duration, asOf time.Time, policy UndatedPolicy) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if p.PublishedAt == nil {
			if policy == UndatedKeep {
				out = append(out, p)
			}
			continue
		}
		if asOf.Sub(*p.PublishedAt) <= maxAge {
			out = append(out, p)
		}
	}
	return out
}

// Dedupe drops every post whose URL already appeared earlier in posts
func Dedupe(posts []models.Post) []models.Post {
	out := make([]models.Post, 0, len(posts))
	seen := make(map[string]struct{}, len(posts))
	for _, p := range posts {
		if _, ok := seen[p.URL]; ok {
			continue
		}
		seen[p.URL] = struct{}{}
		out = append(out, p)
	}
	return out
}

// SortPosts orders posts newest first in place. Equal timestamps keep their
// relative order and undated posts go last.
func SortPosts(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := posts[i].PublishedAt, posts[j].PublishedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}

// Options configures Aggregate
type Options struct {
	AsOf       time.Time
	MaxAgeDays int
	Undated    UndatedPolicy
}

// MaxAge returns the age window as a duration
func (o Options) MaxAge() time.Duration {
	return time.Duration(o.MaxAgeDays) * 24 * time.Hour
}

// Aggregate merges per-account results into one run: posts are concatenated in
// account order, filtered by age, deduplicated and sorted, and the summary
// counters are computed over the surviving posts.
func Aggregate(results []models.AccountResult, opts Options) *models.RunResult {
	var all []models.Post
	run := &models.RunResult{
		AsOf:              opts.AsOf,
		Cutoff:            opts.AsOf.Add(-opts.MaxAge()),
		MaxAgeDays:        opts.MaxAgeDays,
		AccountsAttempted: len(results),
	}

	for _, r := range results {
		if r.Err != nil {
			run.Failures = append(run.Failures, models.AccountFailure{
				Account: r.Account,
				Message: r.Err.Error(),
			})
		} else {
			run.AccountsSucceeded++
		}
		for _, p := range r.Posts {
			p.Order = len(all)
			all = append(all, p)
		}
	}

	posts := Dedupe(FilterByAge(all, opts.MaxAge(), opts.AsOf, opts.Undated))
	SortPosts(posts)

	run.Posts = posts
	Summarize(run)
	return run
}

// Summarize recomputes TotalPosts and the date range from run.Posts
func Summarize(run *models.RunResult) {
	run.TotalPosts = len(run.Posts)
	run.Oldest, run.Newest = nil, nil
	for i := range run.Posts {
		t := run.Posts[i].PublishedAt
		if t == nil {
			continue
		}
		if run.Oldest == nil || t.Before(*run.Oldest) {
			run.Oldest = t
		}
		if run.Newest == nil || t.After(*run.Newest) {
			run.Newest = t
		}
	}
}
