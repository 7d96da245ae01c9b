package models

import (
	"fmt"
	"strings"
	"time"
)

// DisplayDateLayout is the date format used in reports and clipboard text
const DisplayDateLayout = "02-01-2006 15:04"

// Account is a configured Instagram handle to scan
type Account string

// NormalizeAccount trims whitespace and a leading "@" and lowercases the handle
func NormalizeAccount(handle string) Account {
	h := strings.TrimSpace(handle)
	h = strings.TrimPrefix(h, "@")
	return Account(strings.ToLower(strings.TrimSpace(h)))
}

// String returns the bare handle
func (a Account) String() string {
	return string(a)
}

// ProfileURL returns the profile page URL of the account under baseURL
func (a Account) ProfileURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/" + string(a) + "/"
}

// Post is one fetched Instagram post
type Post struct {
	URL         string     `json:"url"`
	Account     Account    `json:"account"`
	Caption     string     `json:"caption"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// Order is the discovery position across the whole run
	Order int `json:"-"`
}

// IsDated reports whether the post carries a resolved publish timestamp
func (p Post) IsDated() bool {
	return p.PublishedAt != nil
}

// FullText composes the account, date, caption and URL into one block of text
func (p Post) FullText() string {
	date := "undated"
	if p.PublishedAt != nil {
		date = p.PublishedAt.Format(DisplayDateLayout)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@%s · %s\n", p.Account, date)
	if p.Caption != "" {
		b.WriteString(p.Caption)
		b.WriteString("\n")
	}
	b.WriteString(p.URL)
	return b.String()
}

// AccountResult is the raw output of scanning one account
type AccountResult struct {
	Account    Account
	Posts      []Post
	Candidates int
	Duration   time.Duration
	Err        error
}

// Succeeded reports whether the account's profile page was processed
func (r AccountResult) Succeeded() bool {
	return r.Err == nil
}

// AccountFailure records why an account contributed nothing
type AccountFailure struct {
	Account Account `json:"account"`
	Message string  `json:"message"`
}

// RunResult aggregates everything collected in one execution
type RunResult struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	AsOf       time.Time `json:"as_of"`
	Cutoff     time.Time `json:"cutoff"`
	MaxAgeDays int       `json:"max_age_days"`

	Posts []Post `json:"posts"`

	AccountsAttempted int              `json:"accounts_attempted"`
	AccountsSucceeded int              `json:"accounts_succeeded"`
	TotalPosts        int              `json:"total_posts"`
	Oldest            *time.Time       `json:"oldest,omitempty"`
	Newest            *time.Time       `json:"newest,omitempty"`
	Failures          []AccountFailure `json:"failures,omitempty"`
	Cancelled         bool             `json:"cancelled"`
}

// Summary returns the one-line partial-success summary of the run
func (r *RunResult) Summary() string {
	return fmt.Sprintf("%d of %d accounts succeeded, %d posts found",
		r.AccountsSucceeded, r.AccountsAttempted, r.TotalPosts)
}

// AccountsWithPosts returns the number of distinct accounts present in Posts
func (r *RunResult) AccountsWithPosts() int {
	seen := make(map[Account]struct{}, len(r.Posts))
	for _, p := range r.Posts {
		seen[p.Account] = struct{}{}
	}
	return len(seen)
}
