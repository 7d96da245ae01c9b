package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"igmonitor/pkg/logger"
)

// Strategy is one way of locating a piece of text in a page
type Strategy interface {
	Name() string
	Try(doc *goquery.Document) (string, bool)
}

// CSSStrategy returns the text of the first element matching Selector
type CSSStrategy struct {
	Selector string
}

func (s CSSStrategy) Name() string {
	return "css:" + s.Selector
}

func (s CSSStrategy) Try(doc *goquery.Document) (string, bool) {
	return firstText(doc.Find(s.Selector))
}

// PathStrategy follows an absolute element path such as /html/body/div[1]/span
type PathStrategy struct {
	Path     string
	selector string
}

// NewPathStrategy compiles an absolute element path into a child-combinator selector
func NewPathStrategy(path string) (PathStrategy, error) {
	sel, err := pathToSelector(path)
	if err != nil {
		return PathStrategy{}, err
	}
	return PathStrategy{Path: path, selector: sel}, nil
}

func (s PathStrategy) Name() string {
	return "path"
}

func (s PathStrategy) Try(doc *goquery.Document) (string, bool) {
	if s.selector == "" {
		return "", false
	}
	return firstText(doc.Find(s.selector))
}

var pathStep = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9]*)(?:\[(\d+)\])?$`)

// pathToSelector turns /html/body/div[1]/span into "html > body > div:nth-of-type(1) > span"
func pathToSelector(path string) (string, error) {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return "", fmt.Errorf("path %q must be absolute", path)
	}

	var parts []string
	for _, step := range strings.Split(strings.Trim(path, "/"), "/") {
		m := pathStep.FindStringSubmatch(step)
		if m == nil {
			return "", fmt.Errorf("unsupported path step %q", step)
		}
		part := strings.ToLower(m[1])
		if m[2] != "" {
			part += ":nth-of-type(" + m[2] + ")"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " > "), nil
}

// Chain tries strategies in rank order and returns the first non-empty text
type Chain struct {
	strategies []Strategy
	log        logger.Logger
}

// NewChain creates a chain; a nil logger disables attempt logging
func NewChain(log logger.Logger, strategies ...Strategy) *Chain {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Chain{strategies: strategies, log: log}
}

// Run returns the extracted text and the name of the strategy that produced it.
// Both are empty when every strategy fails.
func (c *Chain) Run(doc *goquery.Document) (string, string) {
	for _, s := range c.strategies {
		if text, ok := s.Try(doc); ok {
			c.log.DebugWithFields("caption strategy succeeded", map[string]interface{}{
				"strategy": s.Name(),
			})
			return text, s.Name()
		}
		c.log.DebugWithFields("caption strategy found nothing", map[string]interface{}{
			"strategy": s.Name(),
		})
	}
	return "", ""
}

// Strategies returns the names of the strategies in rank order
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// DefaultCaptionChain ranks the absolute caption path first, then the fallbacks
func DefaultCaptionChain(log logger.Logger) *Chain {
	strategies := make([]Strategy, 0, len(CaptionFallbacks)+1)
	if ps, err := NewPathStrategy(CaptionPath); err == nil {
		strategies = append(strategies, ps)
	}
	for _, sel := range CaptionFallbacks {
		strategies = append(strategies, CSSStrategy{Selector: sel})
	}
	return NewChain(log, strategies...)
}

func firstText(sel *goquery.Selection) (string, bool) {
	if sel.Length() == 0 {
		return "", false
	}
	text := innerText(sel.First())
	return text, text != ""
}

var blockElements = map[string]bool{
	"div": true, "p": true, "li": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "ul": true, "ol": true,
}

// innerText approximates rendered text: <br> and block elements break lines
func innerText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(n, &b)
	}

	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(collapseBlankRuns(strings.Join(lines, "\n")))
}

func writeText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "br":
			b.WriteByte('\n')
			return
		case "script", "style", "noscript":
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		b.WriteByte('\n')
	}
}

var blankRuns = regexp.MustCompile(`\n{3,}`)

func collapseBlankRuns(s string) string {
	return blankRuns.ReplaceAllString(s, "\n\n")
}
