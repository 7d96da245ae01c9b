package extract

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmonitor/pkg/logger"
	"igmonitor/pkg/models"
)

const baseURL = "https://www.instagram.com/"

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	return loc
}

// nestedFromPath builds markup in which CaptionPath-style paths resolve to leaf
func nestedFromPath(path, leaf string) string {
	steps := strings.Split(strings.Trim(path, "/"), "/")[2:] // html, body come from the parser
	var build func(i int) string
	build = func(i int) string {
		if i == len(steps) {
			return leaf
		}
		m := pathStep.FindStringSubmatch(steps[i])
		tag, idx := m[1], 1
		if m[2] != "" {
			idx, _ = strconv.Atoi(m[2])
		}
		siblings := strings.Repeat("<"+tag+"></"+tag+">", idx-1)
		return siblings + "<" + tag + ">" + build(i+1) + "</" + tag + ">"
	}
	return build(0)
}

const profilePage = `<html><body><main>
<a href="/nasa/">profile</a>
<a href="/p/AAA/?img_index=1">first</a>
<a href="/reel/BBB/">reel</a>
<a href="/p/AAA/">duplicate</a>
<a href="https://www.instagram.com/p/CCC/#comments">absolute</a>
<a href="/explore/">explore</a>
</main></body></html>`

func TestListPostURLs(t *testing.T) {
	e := New(baseURL, time.UTC, logger.NewNopLogger())
	d := doc(t, profilePage)

	urls := e.ListPostURLs(d, 10)
	assert.Equal(t, []string{
		"https://www.instagram.com/p/AAA",
		"https://www.instagram.com/reel/BBB",
		"https://www.instagram.com/p/CCC",
	}, urls)

	assert.Equal(t, urls[:2], e.ListPostURLs(d, 2))
	assert.Len(t, e.ListPostURLs(d, 0), 3)
}

func TestListPostURLsNoLinks(t *testing.T) {
	e := New(baseURL, time.UTC, nil)
	urls := e.ListPostURLs(doc(t, `<html><body><p>This account is private</p></body></html>`), 3)
	assert.NotNil(t, urls)
	assert.Empty(t, urls)
}

func TestNormalizePostURL(t *testing.T) {
	e := New(baseURL, time.UTC, nil)

	cases := map[string]string{
		"/p/XYZ/":                                   "https://www.instagram.com/p/XYZ",
		"/p/XYZ":                                    "https://www.instagram.com/p/XYZ",
		"/nasa/p/XYZ/?utm_source=ig":                "https://www.instagram.com/nasa/p/XYZ",
		"https://www.instagram.com/reel/R1/?a=b#top": "https://www.instagram.com/reel/R1",
	}
	for in, want := range cases {
		got, ok := e.NormalizePostURL(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := e.NormalizePostURL("/explore/tags/space/")
	assert.False(t, ok)
}

func TestExtractPostFallbackCaption(t *testing.T) {
	e := New(baseURL, madrid(t), logger.NewNopLogger())
	d := doc(t, `<html><body><main><article>
<section><span dir="auto">Launch day!<br>Go for liftoff</span></section>
<time datetime="2024-03-07T10:00:00.000Z">Mar 7</time>
</article></main></body></html>`)

	post := e.ExtractPost(d, "https://www.instagram.com/p/AAA", models.Account("nasa"))

	assert.Equal(t, "https://www.instagram.com/p/AAA", post.URL)
	assert.Equal(t, models.Account("nasa"), post.Account)
	assert.Equal(t, "Launch day!\nGo for liftoff", post.Caption)
	require.NotNil(t, post.PublishedAt)
	assert.Equal(t, "2024-03-07T11:00:00+01:00", post.PublishedAt.Format(time.RFC3339))
	assert.True(t, post.PublishedAt.Equal(time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)))
}

func TestExtractPostPrefersCaptionPath(t *testing.T) {
	e := New(baseURL, time.UTC, logger.NewNopLogger())
	html := "<html><body>" +
		nestedFromPath(CaptionPath, "Primary caption") +
		`<article><section><span dir="auto">Fallback caption</span></section></article>` +
		"</body></html>"

	post := e.ExtractPost(doc(t, html), "https://www.instagram.com/p/AAA", "nasa")
	assert.Equal(t, "Primary caption", post.Caption)
}

func TestExtractPostMissingData(t *testing.T) {
	tl := logger.NewTestLogger()
	e := New(baseURL, time.UTC, tl)

	post := e.ExtractPost(doc(t, `<html><body><main><p>Sorry, this page isn't available.</p></main></body></html>`),
		"https://www.instagram.com/p/GONE", "nasa")

	assert.Equal(t, "", post.Caption)
	assert.Nil(t, post.PublishedAt)
	assert.False(t, post.IsDated())
	assert.True(t, tl.HasMessage("post has no usable timestamp"))
}

func TestExtractPostUnparsableDate(t *testing.T) {
	e := New(baseURL, time.UTC, nil)
	post := e.ExtractPost(doc(t, `<html><body><article><h1>Title</h1><time datetime="last tuesday"></time></article></body></html>`),
		"https://www.instagram.com/p/AAA", "nasa")

	assert.Equal(t, "Title", post.Caption)
	assert.Nil(t, post.PublishedAt)
}

func TestExtractPostIsIdempotent(t *testing.T) {
	e := New(baseURL, madrid(t), nil)
	d := doc(t, `<html><body><div role="dialog"><article><span dir="auto">Hello</span>
<time datetime="2024-01-02T03:04:05Z"></time></article></div></body></html>`)

	first := e.ExtractPost(d, "https://www.instagram.com/p/AAA", "nasa")
	second := e.ExtractPost(d, "https://www.instagram.com/p/AAA", "nasa")

	assert.Equal(t, first.Caption, second.Caption)
	require.NotNil(t, first.PublishedAt)
	require.NotNil(t, second.PublishedAt)
	assert.True(t, first.PublishedAt.Equal(*second.PublishedAt))
	assert.Equal(t, "Hello", first.Caption)
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2024-03-07T10:00:00Z", time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC), true},
		{"2024-03-07T10:00:00.123Z", time.Date(2024, 3, 7, 10, 0, 0, 123000000, time.UTC), true},
		{"2024-03-07T12:00:00+02:00", time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC), true},
		{"2024-03-07T12:00:00+0200", time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC), true},
		{"2024-03-07T10:00:00", time.Time{}, false},
		{"yesterday", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, c := range cases {
		got, ok := ParseTimestamp(c.raw, time.UTC)
		assert.Equal(t, c.ok, ok, c.raw)
		if c.ok {
			assert.True(t, c.want.Equal(got), "%s: got %v", c.raw, got)
			assert.Equal(t, time.UTC, got.Location())
		}
	}
}

func TestIsLoginPage(t *testing.T) {
	login := doc(t, `<html><body><form><input name="username"><input name="password" type="password"></form></body></html>`)
	assert.True(t, IsLoginPage(login))

	search := doc(t, `<html><body><input name="username"></body></html>`)
	assert.False(t, IsLoginPage(search))

	assert.False(t, IsLoginPage(doc(t, profilePage)))
}

func TestPathToSelector(t *testing.T) {
	sel, err := pathToSelector("/html/body/div[2]/section/span[1]")
	require.NoError(t, err)
	assert.Equal(t, "html > body > div:nth-of-type(2) > section > span:nth-of-type(1)", sel)

	_, err = pathToSelector("//div")
	assert.Error(t, err)
	_, err = pathToSelector("/html/div[x]")
	assert.Error(t, err)

	_, err = NewPathStrategy(CaptionPath)
	assert.NoError(t, err)
}

func TestChainOrderAndLogging(t *testing.T) {
	tl := logger.NewTestLogger()
	chain := NewChain(tl,
		CSSStrategy{Selector: "h3"},
		CSSStrategy{Selector: "h2"},
		CSSStrategy{Selector: "h1"},
	)

	text, used := chain.Run(doc(t, `<html><body><h1>one</h1><h2>two</h2></body></html>`))
	assert.Equal(t, "two", text)
	assert.Equal(t, "css:h2", used)
	assert.Len(t, tl.GetMessagesByLevel("DEBUG"), 2)

	text, used = chain.Run(doc(t, `<html><body><p>none</p></body></html>`))
	assert.Empty(t, text)
	assert.Empty(t, used)

	names := DefaultCaptionChain(nil).Strategies()
	require.Len(t, names, len(CaptionFallbacks)+1)
	assert.Equal(t, "path", names[0])
}

func TestCSSStrategySkipsEmptyText(t *testing.T) {
	_, ok := CSSStrategy{Selector: "span"}.Try(doc(t, `<html><body><span>   </span></body></html>`))
	assert.False(t, ok)
}
