package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"igmonitor/pkg/config"
	errs "igmonitor/pkg/errors"
	"igmonitor/pkg/extract"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/retry"
)

// PageKind tells Open how much work a page needs before it is snapshotted
type PageKind string

const (
	// KindProfile is an account grid; it is scrolled so more post links render
	KindProfile PageKind = "profile"
	// KindPost is a single post page
	KindPost PageKind = "post"
	// KindStart is the page a launched browser opens first
	KindStart PageKind = "start"
)

const (
	readyWait      = 3 * time.Second
	consentPause   = 500 * time.Millisecond
	scrollDistance = 2000
)

// ErrNotConnected is returned by Open before Connect succeeded or after Close
var ErrNotConnected = errors.New("browser is not connected")

// ErrConnectionLost is wrapped by Open when the browser went away mid-run
var ErrConnectionLost = errors.New("lost connection to browser")

// Page is a rendered snapshot of one URL
type Page struct {
	URL       string
	HTML      string
	FetchedAt time.Time
}

// Document parses the snapshot for extraction
func (p *Page) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	if err != nil {
		return nil, errs.New(errs.ErrorTypeExtraction, "parse page", err).WithURL(p.URL)
	}
	return doc, nil
}

// Fetcher loads pages; Browser is the production implementation
type Fetcher interface {
	Open(ctx context.Context, url string, kind PageKind) (*Page, error)
}

// Browser drives a Chromium-family browser over the DevTools protocol
type Browser struct {
	cfg        config.BrowserConfig
	ig         config.InstagramConfig
	log        logger.Logger
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context
	launched    bool
	version     *VersionInfo
}

// Option configures a Browser
type Option func(*Browser)

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(b *Browser) {
		b.log = log
	}
}

// WithHTTPClient sets the client used for endpoint discovery
func WithHTTPClient(c *http.Client) Option {
	return func(b *Browser) {
		b.httpClient = c
	}
}

// WithClock sets the clock used to stamp snapshots
func WithClock(now func() time.Time) Option {
	return func(b *Browser) {
		b.now = now
	}
}

// New creates an unconnected Browser
func New(cfg *config.Config, opts ...Option) *Browser {
	b := &Browser{
		cfg:        cfg.Browser,
		ig:         cfg.Instagram,
		log:        logger.GetLogger(),
		httpClient: &http.Client{Timeout: discoveryTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.WithField("component", "browser")
	return b
}

// Endpoint returns the remote-debugging base URL
func (b *Browser) Endpoint() string {
	return fmt.Sprintf("%s://%s:%d", b.cfg.Scheme, b.cfg.Host, b.cfg.Port)
}

// Launched reports whether Connect had to start a browser
func (b *Browser) Launched() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.launched
}

// Version returns the attached browser's version info, nil for launched browsers
func (b *Browser) Version() *VersionInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Connect attaches to a running browser, launching one when that fails and
// launching is enabled. Any failure is a connection error.
func (b *Browser) Connect(ctx context.Context) error {
	info, err := Discover(ctx, b.Endpoint(), b.httpClient, b.log)
	if err == nil {
		allocCtx, cancel := chromedp.NewRemoteAllocator(context.Background(), info.WebSocketDebuggerURL)
		if startErr := b.start(ctx, allocCtx, cancel); startErr != nil {
			err = errs.New(errs.ErrorTypeConnection, "attach browser", startErr).WithURL(info.WebSocketDebuggerURL)
		} else {
			b.mu.Lock()
			b.version = info
			b.mu.Unlock()
			b.log.InfoWithFields("Attached to browser", map[string]interface{}{
				"endpoint": b.Endpoint(),
				"browser":  info.Browser,
			})
			return nil
		}
	}

	if !b.cfg.LaunchIfUnavailable {
		return err
	}
	if ctx.Err() != nil {
		return errs.New(errs.ErrorTypeConnection, "attach browser", ctx.Err())
	}

	b.log.WithError(err).WarnWithFields("Browser not reachable, launching a new one", map[string]interface{}{
		"endpoint":  b.Endpoint(),
		"exec_path": b.cfg.ExecPath,
		"headless":  b.cfg.Headless,
	})
	if b.cfg.KillExisting {
		killExisting(ctx, b.cfg, b.log)
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), launchOptions(b.cfg)...)
	if err := b.start(ctx, allocCtx, cancel); err != nil {
		return errs.New(errs.ErrorTypeConnection, "launch browser", err)
	}

	b.mu.Lock()
	b.launched = true
	b.mu.Unlock()

	if b.cfg.StartURL != "" {
		if _, err := b.load(ctx, b.cfg.StartURL, KindStart); err != nil {
			b.log.WithError(err).Warn("Start page did not load")
		}
	}
	if err := retry.Wait(ctx, b.cfg.LoadDelay); err != nil {
		b.Close()
		return errs.New(errs.ErrorTypeConnection, "launch browser", err)
	}

	b.log.InfoWithFields("Launched browser", map[string]interface{}{
		"user_data_dir": b.cfg.UserDataDir,
		"profile":       b.cfg.ProfileDir,
	})
	return nil
}

// start opens a tab on the allocator and waits for it within ConnectTimeout.
// The tab outlives ctx; only Close releases it.
func (b *Browser) start(ctx context.Context, allocCtx context.Context, allocCancel context.CancelFunc) error {
	tab, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(b.cdpLog("info")),
		chromedp.WithErrorf(b.cdpLog("error")),
	)

	done := make(chan error, 1)
	go func() {
		// The first Run allocates the browser and must not carry a deadline
		done <- chromedp.Run(tab)
	}()

	timer := time.NewTimer(b.cfg.ConnectTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
	case <-timer.C:
		err = fmt.Errorf("browser did not respond within %s", b.cfg.ConnectTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return err
	}

	b.mu.Lock()
	b.tab, b.tabCancel, b.allocCancel = tab, tabCancel, allocCancel
	b.mu.Unlock()
	return nil
}

// cdpLog routes chromedp's own diagnostics to debug level
func (b *Browser) cdpLog(source string) func(string, ...interface{}) {
	return func(format string, args ...interface{}) {
		b.log.DebugWithFields(fmt.Sprintf(format, args...), map[string]interface{}{"source": "cdp-" + source})
	}
}

// Open loads url and returns its rendered HTML, retrying navigation failures
// and timeouts with the navigation policy.
func (b *Browser) Open(ctx context.Context, url string, kind PageKind) (*Page, error) {
	attempts := b.ig.NavigationAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return retry.DoWithResult(func() (*Page, error) {
		return b.load(ctx, url, kind)
	}, retry.Navigation(ctx, attempts, b.log.WithField("url", url)))
}

func (b *Browser) load(ctx context.Context, url string, kind PageKind) (*Page, error) {
	b.mu.Lock()
	tab := b.tab
	b.mu.Unlock()
	if tab == nil {
		return nil, errs.New(errs.ErrorTypeConnection, "open page", ErrNotConnected).WithURL(url)
	}
	if disconnected(tab) {
		return nil, errs.New(errs.ErrorTypeConnection, "open page", ErrConnectionLost).WithURL(url)
	}

	tctx, cancel := context.WithTimeout(tab, b.ig.LoadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if lost := lostConnection(tab); lost != nil {
		go func() {
			select {
			case <-lost:
				cancel()
			case <-tctx.Done():
			}
		}()
	}

	start := time.Now()
	var html string
	err := chromedp.Run(tctx, b.actions(kind, &html, url))
	logger.LogPageLoad(b.log, url, string(kind), time.Since(start), err)

	if err != nil {
		return nil, classify(ctx, tctx, err, url, disconnected(tab))
	}
	return &Page{URL: url, HTML: html, FetchedAt: b.now()}, nil
}

// lostConnection returns the channel chromedp closes when the websocket to the
// browser behind tab fails, nil before the first Run
func lostConnection(tab context.Context) <-chan struct{} {
	if c := chromedp.FromContext(tab); c != nil && c.Browser != nil {
		return c.Browser.LostConnection
	}
	return nil
}

// disconnected reports whether tab can no longer reach its browser
func disconnected(tab context.Context) bool {
	if tab.Err() != nil {
		return true
	}
	select {
	case <-lostConnection(tab):
		return true
	default:
		return false
	}
}

func (b *Browser) actions(kind PageKind, html *string, url string) chromedp.Tasks {
	tasks := chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		waitOptional(extract.ReadySelector, readyWait),
		dismissConsent(b.log),
	}
	if kind == KindProfile {
		tasks = append(tasks, scrollGrid(b.ig.ScrollSteps, b.ig.MaxPostsPerAccount, b.ig.ScrollPause))
	}
	return append(tasks, chromedp.OuterHTML("html", html, chromedp.ByQuery))
}

// classify maps a failed page load to the error taxonomy. Caller cancellation
// is returned bare so it is never retried; a lost browser is fatal.
func classify(ctx, tctx context.Context, err error, url string, lost bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if lost {
		return errs.New(errs.ErrorTypeConnection, "load page", fmt.Errorf("%w: %w", ErrConnectionLost, err)).WithURL(url)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return errs.New(errs.ErrorTypePageTimeout, "load page", err).WithURL(url)
	}
	return errs.New(errs.ErrorTypeNavigation, "load page", err).WithURL(url)
}

// waitOptional waits up to d for sel and carries on if it never shows up
func waitOptional(sel string, d time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		wctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		_ = chromedp.WaitReady(sel, chromedp.ByQuery).Do(wctx)
		return ctx.Err()
	})
}

// consentScript clicks the first visible button whose label matches, in label
// order, and evaluates to the clicked label or "".
func consentScript(labels []string) string {
	encoded, _ := json.Marshal(labels)
	return fmt.Sprintf(`(() => {
  const labels = %s;
  const buttons = Array.from(document.querySelectorAll("button, [role='button']"));
  for (const label of labels) {
    const match = buttons.find(b => b.offsetParent !== null && b.innerText.trim().toLowerCase() === label.toLowerCase());
    if (match) { match.click(); return label; }
  }
  return "";
})()`, encoded)
}

func dismissConsent(log logger.Logger) chromedp.Action {
	script := consentScript(extract.ConsentButtonLabels)
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var clicked string
		if err := chromedp.Evaluate(script, &clicked).Do(ctx); err != nil {
			log.DebugWithFields("consent check failed", map[string]interface{}{"error": err.Error()})
			return ctx.Err()
		}
		if clicked == "" {
			return nil
		}
		log.DebugWithFields("dismissed consent dialog", map[string]interface{}{"button": clicked})
		return chromedp.Sleep(consentPause).Do(ctx)
	})
}

// scrollGrid scrolls the profile grid until limit post links have rendered,
// the link count stops growing, or steps run out
func scrollGrid(steps, limit int, pause time.Duration) chromedp.Action {
	scroll := fmt.Sprintf("window.scrollBy(0, %d)", scrollDistance)
	count := fmt.Sprintf("document.querySelectorAll(%q).length", extract.PostLinkSelector)
	return chromedp.ActionFunc(func(ctx context.Context) error {
		prev := -1
		for i := 0; i < steps; i++ {
			var n int
			if err := chromedp.Evaluate(count, &n).Do(ctx); err != nil {
				return err
			}
			if !keepScrolling(prev, n, limit) {
				return nil
			}
			prev = n
			if err := chromedp.Evaluate(scroll, nil).Do(ctx); err != nil {
				return err
			}
			if err := retry.Wait(ctx, pause); err != nil {
				return err
			}
		}
		return nil
	})
}

// keepScrolling decides whether another scroll can reveal posts. prev is the
// count before the last scroll, -1 before the first.
func keepScrolling(prev, count, limit int) bool {
	if limit > 0 && count >= limit {
		return false
	}
	return prev < 0 || count > prev
}

// Close releases the tab and allocator. An attached browser keeps running; a
// launched one is shut down.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tabCancel != nil {
		b.tabCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.tab, b.tabCancel, b.allocCancel = nil, nil, nil
	return nil
}
