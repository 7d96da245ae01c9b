package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"igmonitor/pkg/logger"
	"igmonitor/pkg/models"
)

// Extractor pulls post links and post data out of page snapshots
type Extractor struct {
	baseURL  string
	location *time.Location
	caption  *Chain
	log      logger.Logger
}

// New creates an extractor. Relative links resolve against baseURL and
// timestamps are converted into loc.
func New(baseURL string, loc *time.Location, log logger.Logger) *Extractor {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Extractor{
		baseURL:  strings.TrimRight(baseURL, "/"),
		location: loc,
		caption:  DefaultCaptionChain(log),
		log:      log,
	}
}

// ListPostURLs returns up to limit unique, normalized post URLs in page order.
// A non-positive limit returns every link.
func (e *Extractor) ListPostURLs(doc *goquery.Document, limit int) []string {
	urls := []string{}
	seen := make(map[string]bool)

	doc.Find(PostLinkSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		u, ok := e.NormalizePostURL(href)
		if !ok || seen[u] {
			return true
		}
		seen[u] = true
		urls = append(urls, u)
		return limit <= 0 || len(urls) < limit
	})

	return urls
}

// NormalizePostURL makes href absolute and strips the query, fragment and trailing slash.
// It reports false for links that are not posts or reels.
func (e *Extractor) NormalizePostURL(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if !isPostURL(href) {
		return "", false
	}

	full := href
	if strings.HasPrefix(href, "/") {
		full = e.baseURL + href
	}
	if i := strings.IndexAny(full, "?#"); i >= 0 {
		full = full[:i]
	}
	return strings.TrimRight(full, "/"), true
}

func isPostURL(u string) bool {
	for _, marker := range postPathMarkers {
		if strings.Contains(u, marker) {
			return true
		}
	}
	return false
}

// ExtractPost reads the caption and publish time of an open post page.
// Missing data never fails: the caption becomes "" and the time nil.
func (e *Extractor) ExtractPost(doc *goquery.Document, url string, account models.Account) models.Post {
	caption, strategy := e.caption.Run(doc)
	publishedAt := e.PublishedAt(doc)

	fields := map[string]interface{}{
		"account": account.String(),
		"url":     url,
		"dated":   publishedAt != nil,
	}
	if strategy == "" {
		e.log.DebugWithFields("caption not found", fields)
	}
	if publishedAt == nil {
		e.log.WarnWithFields("post has no usable timestamp", fields)
	}

	return models.Post{
		URL:         url,
		Account:     account,
		Caption:     caption,
		PublishedAt: publishedAt,
	}
}

// PublishedAt returns the post timestamp converted to the extractor's location
func (e *Extractor) PublishedAt(doc *goquery.Document) *time.Time {
	raw, ok := doc.Find(PostDateSelector).First().Attr("datetime")
	if !ok {
		return nil
	}
	t, ok := ParseTimestamp(raw, e.location)
	if !ok {
		e.log.DebugWithFields("unrecognized datetime format", map[string]interface{}{"raw": raw})
		return nil
	}
	return &t
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
}

// ParseTimestamp parses an ISO-8601 timestamp that carries a zone (Z or an offset)
// and converts it into loc. Timestamps without a zone are rejected.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.In(loc), true
		}
	}
	return time.Time{}, false
}

// IsLoginPage reports whether the page shows the login form instead of content
func IsLoginPage(doc *goquery.Document) bool {
	return doc.Find(LoginFieldSelector).Length() >= 2
}
