package pipeline

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmonitor/pkg/models"
)

var asOf = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := asOf.Add(-d)
	return &t
}

func post(url string, account models.Account, published *time.Time) models.Post {
	return models.Post{URL: url, Account: account, Caption: "caption " + url, PublishedAt: published}
}

func urls(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.URL
	}
	return out
}

func TestFilterByAgeBoundary(t *testing.T) {
	maxAge := 3 * 24 * time.Hour
	posts := []models.Post{
		post("inside", "a", at(time.Hour)),
		post("exactly-at-cutoff", "a", at(maxAge)),
		post("just-outside", "a", at(maxAge+time.Second)),
		post("future", "a", at(-2*time.Hour)),
		post("undated", "a", nil),
	}

	excluded := FilterByAge(posts, maxAge, asOf, UndatedExclude)
	assert.Equal(t, []string{"inside", "exactly-at-cutoff", "future"}, urls(excluded))

	kept := FilterByAge(posts, maxAge, asOf, UndatedKeep)
	assert.Equal(t, []string{"inside", "exactly-at-cutoff", "future", "undated"}, urls(kept))
}

func TestFilterByAgeZeroDays(t *testing.T) {
	posts := []models.Post{
		post("now", "a", at(0)),
		post("a-minute-ago", "a", at(time.Minute)),
	}
	assert.Equal(t, []string{"now"}, urls(FilterByAge(posts, 0, asOf, UndatedExclude)))
}

func TestDedupeFirstWins(t *testing.T) {
	posts := []models.Post{
		post("https://ig/p/1", "alice", at(time.Hour)),
		post("https://ig/p/2", "alice", at(2*time.Hour)),
		post("https://ig/p/1", "bob", at(time.Hour)),
	}

	out := Dedupe(posts)
	require.Len(t, out, 2)
	assert.Equal(t, models.Account("alice"), out[0].Account)
	assert.Equal(t, "https://ig/p/2", out[1].URL)
}

func TestSortPostsStableDescending(t *testing.T) {
	same := at(5 * time.Hour)
	posts := []models.Post{
		post("undated-1", "a", nil),
		post("old", "a", at(48*time.Hour)),
		post("tie-first", "a", same),
		post("newest", "b", at(time.Minute)),
		post("undated-2", "b", nil),
		post("tie-second", "b", same),
	}

	SortPosts(posts)
	assert.Equal(t, []string{"newest", "tie-first", "tie-second", "old", "undated-1", "undated-2"}, urls(posts))
}

func TestAggregate(t *testing.T) {
	results := []models.AccountResult{
		{Account: "alice", Posts: []models.Post{
			post("https://ig/p/shared", "alice", at(2*time.Hour)),
			post("https://ig/p/old", "alice", at(10*24*time.Hour)),
		}},
		{Account: "bob", Err: errors.New("page load timeout")},
		{Account: "carol", Posts: []models.Post{
			post("https://ig/p/shared", "carol", at(2*time.Hour)),
			post("https://ig/p/new", "carol", at(time.Hour)),
		}},
	}

	run := Aggregate(results, Options{AsOf: asOf, MaxAgeDays: 3, Undated: UndatedExclude})

	assert.Equal(t, 3, run.AccountsAttempted)
	assert.Equal(t, 2, run.AccountsSucceeded)
	assert.Equal(t, 2, run.TotalPosts)
	assert.Equal(t, []string{"https://ig/p/new", "https://ig/p/shared"}, urls(run.Posts))
	assert.Equal(t, models.Account("alice"), run.Posts[1].Account)
	assert.Equal(t, []models.AccountFailure{{Account: "bob", Message: "page load timeout"}}, run.Failures)
	assert.True(t, run.Cutoff.Equal(asOf.Add(-72*time.Hour)))
	require.NotNil(t, run.Newest)
	require.NotNil(t, run.Oldest)
	assert.True(t, run.Newest.Equal(*at(time.Hour)))
	assert.True(t, run.Oldest.Equal(*at(2 * time.Hour)))
	assert.Equal(t, "2 of 3 accounts succeeded, 2 posts found", run.Summary())
}

func TestAggregateNoAccounts(t *testing.T) {
	run := Aggregate(nil, Options{AsOf: asOf, MaxAgeDays: 3})

	assert.Equal(t, 0, run.AccountsAttempted)
	assert.Equal(t, 0, run.TotalPosts)
	assert.NotNil(t, run.Posts)
	assert.Empty(t, run.Posts)
	assert.Nil(t, run.Oldest)
	assert.Nil(t, run.Newest)
}

func TestAggregateUndatedPolicies(t *testing.T) {
	results := []models.AccountResult{{Account: "a", Posts: []models.Post{
		post("https://ig/p/undated", "a", nil),
		post("https://ig/p/dated", "a", at(time.Hour)),
	}}}

	excluded := Aggregate(results, Options{AsOf: asOf, MaxAgeDays: 1, Undated: UndatedExclude})
	assert.Equal(t, []string{"https://ig/p/dated"}, urls(excluded.Posts))

	kept := Aggregate(results, Options{AsOf: asOf, MaxAgeDays: 1, Undated: UndatedKeep})
	assert.Equal(t, []string{"https://ig/p/dated", "https://ig/p/undated"}, urls(kept.Posts))
	assert.Equal(t, 2, kept.TotalPosts)
	// The date range only covers dated posts
	assert.True(t, kept.Oldest.Equal(*kept.Newest))
}

// Randomized runs must always satisfy the age bound, URL uniqueness and ordering.
func TestAggregateInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		var results []models.AccountResult
		accounts := rng.Intn(5)
		for a := 0; a < accounts; a++ {
			account := models.Account(fmt.Sprintf("acct%d", a))
			r := models.AccountResult{Account: account}
			count := rng.Intn(8)
			for i := 0; i < count; i++ {
				var published *time.Time
				if rng.Intn(6) > 0 {
					published = at(time.Duration(rng.Intn(10*24)) * time.Hour)
				}
				url := fmt.Sprintf("https://ig/p/%d", rng.Intn(20))
				r.Posts = append(r.Posts, post(url, account, published))
			}
			results = append(results, r)
		}

		policy := UndatedExclude
		if round%2 == 1 {
			policy = UndatedKeep
		}
		opts := Options{AsOf: asOf, MaxAgeDays: 1 + rng.Intn(5), Undated: policy}
		run := Aggregate(results, opts)

		assert.Equal(t, len(run.Posts), run.TotalPosts)

		seen := map[string]bool{}
		sawUndated := false
		for i, p := range run.Posts {
			assert.False(t, seen[p.URL], "duplicate url %s", p.URL)
			seen[p.URL] = true

			if p.PublishedAt == nil {
				assert.Equal(t, UndatedKeep, policy)
				sawUndated = true
				continue
			}
			assert.False(t, sawUndated, "dated post after an undated one")
			assert.LessOrEqual(t, asOf.Sub(*p.PublishedAt), opts.MaxAge())

			if i > 0 && run.Posts[i-1].PublishedAt != nil {
				prev := run.Posts[i-1]
				assert.False(t, p.PublishedAt.After(*prev.PublishedAt), "not descending")
				if p.PublishedAt.Equal(*prev.PublishedAt) {
					assert.Less(t, prev.Order, p.Order, "tie order not stable")
				}
			}
		}
	}
}
