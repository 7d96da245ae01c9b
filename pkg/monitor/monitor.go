package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"igmonitor/pkg/browser"
	"igmonitor/pkg/config"
	errs "igmonitor/pkg/errors"
	"igmonitor/pkg/extract"
	"igmonitor/pkg/ledger"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/models"
	"igmonitor/pkg/pipeline"
	"igmonitor/pkg/ratelimit"
	"igmonitor/pkg/report"
	"igmonitor/pkg/retry"
	"igmonitor/pkg/storage"
)

const ledgerRetention = 30 * 24 * time.Hour

// Monitor runs the sequential account scan and writes the report
type Monitor struct {
	cfg       *config.Config
	fetcher   browser.Fetcher
	extractor *extract.Extractor
	location  *time.Location
	log       logger.Logger
	limiter   ratelimit.Limiter
	ledger    *ledger.Manager
	events    chan<- Event
	now       func() time.Time
}

// Option configures a Monitor
type Option func(*Monitor)

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(m *Monitor) {
		m.log = log
	}
}

// WithLimiter replaces the page-load pacer
func WithLimiter(l ratelimit.Limiter) Option {
	return func(m *Monitor) {
		m.limiter = l
	}
}

// WithLedger hides posts reported by earlier runs and records new ones
func WithLedger(l *ledger.Manager) Option {
	return func(m *Monitor) {
		m.ledger = l
	}
}

// WithEvents sends progress events to ch. The caller owns and drains ch.
func WithEvents(ch chan<- Event) Option {
	return func(m *Monitor) {
		m.events = ch
	}
}

// WithClock sets the clock; the run's as-of instant is its first reading
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New creates a Monitor that loads pages through fetcher
func New(cfg *config.Config, fetcher browser.Fetcher, opts ...Option) (*Monitor, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, errs.New(errs.ErrorTypeConfig, "resolve timezone", err)
	}

	m := &Monitor{
		cfg:      cfg,
		fetcher:  fetcher,
		location: loc,
		log:      logger.GetLogger(),
		limiter:  ratelimit.NewPacer(cfg.Instagram.PostDelay),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.WithField("component", "monitor")
	m.extractor = extract.New(cfg.Instagram.BaseURL, loc, m.log)
	return m, nil
}

// Run scans accounts in order and aggregates what it found. Per-post and
// per-account failures are recorded in the result; only a lost browser
// connection is returned as an error, together with the partial result.
// Cancelling ctx stops at the next account or post boundary.
func (m *Monitor) Run(ctx context.Context, accounts []models.Account) (*models.RunResult, error) {
	started := m.now()
	runID := uuid.NewString()
	opts := pipeline.Options{
		AsOf:       started,
		MaxAgeDays: m.cfg.Report.MaxAgeDays,
		Undated:    pipeline.UndatedPolicy(m.cfg.Report.UndatedPolicy),
	}
	cutoff := started.Add(-opts.MaxAge())

	log := m.log.WithField("run_id", runID)
	log.InfoWithFields("Starting run", map[string]interface{}{
		"accounts":     len(accounts),
		"max_age_days": opts.MaxAgeDays,
		"cutoff":       cutoff.In(m.location).Format(models.DisplayDateLayout),
	})
	m.emit(ctx, Event{Type: EventRunStarted, Total: len(accounts)})

	var (
		results   = make([]models.AccountResult, 0, len(accounts))
		fatal     error
		cancelled bool
	)

	for i, account := range accounts {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		if i > 0 {
			if err := retry.Wait(ctx, m.cfg.Instagram.AccountDelay); err != nil {
				cancelled = true
				break
			}
		}

		m.emit(ctx, Event{Type: EventAccountStarted, Account: account, Index: i, Total: len(accounts)})
		res := m.scanAccount(ctx, log, account, cutoff)
		if res.Err != nil && !errs.IsFatal(res.Err) && ctx.Err() != nil {
			// Interrupted before the profile loaded; nothing was scanned
			cancelled = true
			break
		}
		results = append(results, res)

		logger.LogAccountProgress(log, account.String(), i, len(accounts), len(res.Posts))
		m.emit(ctx, Event{
			Type:    EventAccountFinished,
			Account: account,
			Index:   i,
			Total:   len(accounts),
			Posts:   len(res.Posts),
			Err:     res.Err,
		})

		if errs.IsFatal(res.Err) {
			fatal = res.Err
			break
		}
		if ctx.Err() != nil {
			cancelled = true
			break
		}
	}

	run := pipeline.Aggregate(results, opts)
	if m.ledger != nil {
		m.hideSeen(log, run)
	}
	run.RunID = runID
	run.StartedAt = started
	run.FinishedAt = m.now()
	run.Cancelled = cancelled

	logger.LogMetrics(log, "run", map[string]interface{}{
		"accounts_attempted": run.AccountsAttempted,
		"accounts_succeeded": run.AccountsSucceeded,
		"posts":              run.TotalPosts,
		"cancelled":          run.Cancelled,
		"duration_ms":        run.FinishedAt.Sub(started).Milliseconds(),
	})
	m.emit(ctx, Event{Type: EventRunFinished, Total: len(accounts), Posts: run.TotalPosts, Result: run, Err: fatal})

	if fatal != nil {
		log.WithError(fatal).Error("Run aborted: browser connection lost")
		return run, fatal
	}
	return run, nil
}

// scanAccount collects the posts of one account. The returned result has Err
// set when the account failed or was interrupted before its profile loaded.
func (m *Monitor) scanAccount(ctx context.Context, runLog logger.Logger, account models.Account, cutoff time.Time) models.AccountResult {
	start := m.now()
	res := models.AccountResult{Account: account}
	defer func() {
		res.Duration = m.now().Sub(start)
	}()

	log := runLog.WithField("account", account.String())
	profileURL := account.ProfileURL(m.cfg.Instagram.BaseURL)

	page, err := m.open(ctx, profileURL, browser.KindProfile)
	if err != nil {
		res.Err = tagAccount(err, account)
		m.accountFailed(ctx, log, res.Err, "open profile")
		return res
	}

	doc, err := page.Document()
	if err != nil {
		res.Err = tagAccount(err, account)
		m.accountFailed(ctx, log, res.Err, "parse profile")
		return res
	}
	if extract.IsLoginPage(doc) {
		res.Err = errs.New(errs.ErrorTypeAuthWall, "open profile", errors.New("login required")).
			WithAccount(account.String()).
			WithURL(profileURL)
		m.accountFailed(ctx, log, res.Err, "open profile")
		return res
	}

	urls := m.extractor.ListPostURLs(doc, m.cfg.Instagram.MaxPostsPerAccount)
	res.Candidates = len(urls)
	if len(urls) == 0 {
		log.Info("No posts found on profile")
		m.logf(ctx, "info", fmt.Sprintf("@%s: no posts found", account))
		return res
	}
	log.DebugWithFields("Found post links", map[string]interface{}{"count": len(urls)})

	streak := 0
	for _, url := range urls {
		// A cancelled scan keeps the posts collected so far; the run records
		// the cancellation, not the account
		if ctx.Err() != nil {
			return res
		}

		post, err := m.fetchPost(ctx, url, account)
		if err != nil {
			if errs.IsFatal(err) {
				res.Err = tagAccount(err, account)
				return res
			}
			if ctx.Err() != nil {
				return res
			}
			err = tagAccount(err, account)
			log.WithError(err).WarnWithFields("Skipping post", map[string]interface{}{
				"url": url,
				"op":  "extract post",
			})
			m.emit(ctx, Event{Type: EventPostFailed, Account: account, URL: url, Err: err})
			continue
		}

		res.Posts = append(res.Posts, post)
		m.emit(ctx, Event{Type: EventPostExtracted, Account: account, URL: url, Post: &post})

		if post.PublishedAt == nil {
			continue
		}
		if post.PublishedAt.Before(cutoff) {
			streak++
		} else {
			streak = 0
		}
		if limit := m.cfg.Instagram.MaxOldStreak; limit > 0 && streak >= limit {
			log.DebugWithFields("Stopping early: consecutive posts older than the window", map[string]interface{}{
				"streak": streak,
			})
			break
		}
	}

	return res
}

func (m *Monitor) accountFailed(ctx context.Context, log logger.Logger, err error, op string) {
	if errors.Is(err, context.Canceled) {
		return
	}
	log.WithError(err).WarnWithFields("Account failed", map[string]interface{}{
		"op":   op,
		"type": string(errs.TypeOf(err)),
	})
	m.logf(ctx, "warn", err.Error())
}

// open paces and loads one page
func (m *Monitor) open(ctx context.Context, url string, kind browser.PageKind) (*browser.Page, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return m.fetcher.Open(ctx, url, kind)
}

func (m *Monitor) fetchPost(ctx context.Context, url string, account models.Account) (models.Post, error) {
	page, err := m.open(ctx, url, browser.KindPost)
	if err != nil {
		return models.Post{}, err
	}
	doc, err := page.Document()
	if err != nil {
		return models.Post{}, err
	}
	if extract.IsLoginPage(doc) {
		return models.Post{}, errs.New(errs.ErrorTypeAuthWall, "open post", errors.New("login required")).WithURL(url)
	}
	return m.extractor.ExtractPost(doc, url, account), nil
}

// tagAccount attaches the account handle to a typed error. Context errors are
// returned unchanged.
func tagAccount(err error, account models.Account) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return e.WithAccount(account.String())
	}
	return errs.New(errs.TypeOf(err), "scan account", err).WithAccount(account.String())
}

func (m *Monitor) hideSeen(log logger.Logger, run *models.RunResult) {
	unseen, err := m.ledger.Unseen(run.Posts)
	if err != nil {
		log.WithError(err).Warn("Ledger unavailable, reporting every post")
		return
	}
	if hidden := len(run.Posts) - len(unseen); hidden > 0 {
		log.InfoWithFields("Hiding posts reported by earlier runs", map[string]interface{}{"hidden": hidden})
	}
	run.Posts = unseen
	pipeline.Summarize(run)
}

// Report renders run and writes it to the output directory, returning the
// report path. The JSON sidecar and ledger update follow the configuration.
func (m *Monitor) Report(ctx context.Context, run *models.RunResult) (string, error) {
	log := m.log.WithContext(ctx).WithField("run_id", run.RunID)

	store, err := storage.NewManager(m.cfg.Report.OutputDir)
	if err != nil {
		return "", errs.New(errs.ErrorTypeStorage, "create output directory", err)
	}

	html, err := report.Render(run, report.Options{
		Location:     m.location,
		TemplatePath: m.cfg.Report.TemplatePath,
		GeneratedAt:  run.FinishedAt,
	})
	if err != nil {
		return "", err
	}

	day := run.AsOf.In(m.location)
	name := report.FileName(day)
	if store.Exists(name) {
		log.InfoWithFields("Replacing earlier report from today", map[string]interface{}{"path": store.Path(name)})
	}
	path, err := store.SaveBytes(name, html)
	if err != nil {
		return "", errs.New(errs.ErrorTypeStorage, "write report", err)
	}

	if m.cfg.Report.WriteJSON {
		data, err := report.RenderJSON(run)
		if err != nil {
			return path, err
		}
		if _, err := store.SaveBytes(report.JSONFileName(day), data); err != nil {
			return path, errs.New(errs.ErrorTypeStorage, "write json sidecar", err)
		}
	}

	if m.ledger != nil {
		if err := m.ledger.Record(run.Posts, run.FinishedAt, ledgerRetention); err != nil {
			log.WithError(err).Warn("Failed to update ledger")
		}
	}

	log.InfoWithFields("Report written", map[string]interface{}{
		"path":  path,
		"posts": run.TotalPosts,
	})
	return path, nil
}
