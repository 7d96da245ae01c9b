package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"igmonitor/pkg/browser"
	"igmonitor/pkg/config"
	"igmonitor/pkg/ledger"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/models"
	"igmonitor/pkg/monitor"
	"igmonitor/pkg/ui"
	"igmonitor/pkg/ui/tui"
)

var (
	// Run command flags
	days       int
	accounts   []string
	outputDir  string
	logDir     string
	noOpen     bool
	headless   bool
	useTUI     bool
	undated    string
	maxPosts   int
	eventQueue = 64
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan the configured accounts once and write today's report",
	Long: `Scan every configured account once, keep the posts published within the age
window, and write them newest first to <output>/DD-MM-YYYY.html.

Accounts that fail are listed in the report and the summary; the run still
succeeds as long as the browser stays connected.`,
	Example: `  # Scan the accounts from the config file
  igmonitor

  # Scan two accounts over the last week without opening the report
  igmonitor run -a natgeo,nasa -d 7 --no-open

  # Follow progress in the terminal UI
  igmonitor run --tui`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(runCmd)

	for _, cmd := range []*cobra.Command{runCmd, rootCmd} {
		addScanFlags(cmd)
	}
	runCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	rootCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	runCmd.Flags().BoolVar(&noOpen, "no-open", false, "do not open the report when the run finishes")
	rootCmd.Flags().BoolVar(&noOpen, "no-open", false, "do not open the report when the run finishes")
}

// addScanFlags registers the flags shared by run and watch
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&days, "days", "d", 3, "age window in days")
	cmd.Flags().StringSliceVarP(&accounts, "accounts", "a", nil, "account handles (repeatable or comma separated)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "report output directory")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "directory for per-run log files")
	cmd.Flags().BoolVar(&headless, "headless", false, "launch the browser without a window")
	cmd.Flags().StringVar(&undated, "undated", "", "posts without a timestamp: exclude or keep")
	cmd.Flags().IntVar(&maxPosts, "max-posts", 0, "posts inspected per account")
}

// collectFlags builds the override map from the flags the user actually set
func collectFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := cmd.Flags().Changed

	if set("days") {
		flags["days"] = days
	}
	if set("accounts") {
		flags["accounts"] = accounts
	}
	if set("output") {
		flags["output"] = outputDir
	}
	if set("log-dir") {
		flags["log-dir"] = logDir
	}
	if set("no-open") {
		flags["no-open"] = noOpen
	}
	if set("headless") {
		flags["headless"] = headless
	}
	if set("undated") {
		flags["undated"] = undated
	}
	if set("max-posts") {
		flags["max-posts"] = maxPosts
	}
	if set("every") {
		flags["every"] = every
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if verbose {
		flags["log-level"] = "debug"
	}
	return flags
}

var errNoAccounts = errors.New("no accounts configured: pass --accounts or set instagram.accounts")

// loadConfig resolves the configuration for cmd; failures are config errors
// reported before any network activity
func loadConfig(cmd *cobra.Command) (*config.Config, []models.Account, error) {
	cfg, err := config.Load(configFile, collectFlags(cmd))
	if err != nil {
		return nil, nil, err
	}

	handles := make([]models.Account, 0, len(cfg.Instagram.Accounts))
	for _, h := range cfg.Instagram.Accounts {
		handles = append(handles, models.NormalizeAccount(h))
	}
	return cfg, handles, nil
}

// outcome is what one scan produced
type outcome struct {
	Run       *models.RunResult
	Path      string
	RunErr    error
	ReportErr error
}

// Err returns the error that decides the exit status
func (o outcome) Err() error {
	if o.RunErr != nil {
		return o.RunErr
	}
	return o.ReportErr
}

// runner holds what survives between scans of a process
type runner struct {
	cfg     *config.Config
	browser browser.Fetcher
	ledger  *ledger.Manager
	log     logger.Logger
}

func newRunner(cfg *config.Config, b browser.Fetcher, log logger.Logger) (*runner, error) {
	r := &runner{cfg: cfg, browser: b, log: log}
	if cfg.Ledger.Enabled {
		l, err := ledger.NewManager(cfg.Ledger.Path, log)
		if err != nil {
			return nil, err
		}
		r.ledger = l
	}
	return r, nil
}

// scan runs the pipeline once and writes the report, even for a cancelled or
// aborted run
func (r *runner) scan(ctx context.Context, handles []models.Account, events chan<- monitor.Event) outcome {
	opts := []monitor.Option{monitor.WithLogger(r.log)}
	if events != nil {
		opts = append(opts, monitor.WithEvents(events))
	}
	if r.ledger != nil {
		opts = append(opts, monitor.WithLedger(r.ledger))
	}

	mon, err := monitor.New(r.cfg, r.browser, opts...)
	if err != nil {
		return outcome{RunErr: err}
	}

	var o outcome
	o.Run, o.RunErr = mon.Run(ctx, handles)
	o.Path, o.ReportErr = mon.Report(ctx, o.Run)
	if o.ReportErr != nil {
		r.log.WithError(o.ReportErr).Error("Failed to write report")
	}
	return o
}

// scanConsole runs one scan printing progress lines
func (r *runner) scanConsole(ctx context.Context, handles []models.Account) outcome {
	events := make(chan monitor.Event, eventQueue)
	display := ui.NewProgressDisplay(os.Stdout, verbose)
	done := make(chan struct{})
	go func() {
		display.Consume(events)
		close(done)
	}()

	o := r.scan(ctx, handles, events)
	close(events)
	<-done
	return o
}

// scanTUI runs one scan behind the terminal UI. Quitting the UI cancels the
// scan, which still writes a partial report.
func (r *runner) scanTUI(ctx context.Context, handles []models.Account) (outcome, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan monitor.Event, eventQueue)
	t := tui.NewTUI(handles, events, cancel)

	result := make(chan outcome, 1)
	go func() {
		o := r.scan(runCtx, handles, events)
		close(events)
		t.ReportWritten(o.Path, o.ReportErr)
		result <- o
	}()

	uiErr := t.Start()
	cancel()
	o := <-result
	if t.Cancelled() {
		r.log.Info("Run stopped from the terminal UI")
	}
	if uiErr != nil {
		return o, fmt.Errorf("terminal UI: %w", uiErr)
	}
	return o, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, handles, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interactive := useTUI && ui.IsInteractive()
	log, err := initLogging(cfg, interactive)
	if err != nil {
		return err
	}
	defer logger.Close()

	if !interactive {
		ui.PrintBanner()
		ui.PrintInfo("Accounts", joinHandles(handles))
		ui.PrintInfo("Age window", fmt.Sprintf("%d days", cfg.Report.MaxAgeDays))
	}

	// With no accounts the run never loads a page, so the report is written
	// without a browser.
	var fetcher browser.Fetcher
	if len(handles) == 0 {
		ui.PrintWarning(errNoAccounts.Error())
		fetcher = noBrowser{}
	} else {
		b, err := connect(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer b.Close()
		fetcher = b
	}

	r, err := newRunner(cfg, fetcher, log)
	if err != nil {
		return err
	}

	var o outcome
	if interactive {
		if o, err = r.scanTUI(ctx, handles); err != nil {
			log.WithError(err).Warn("Terminal UI stopped")
		}
	} else {
		o = r.scanConsole(ctx, handles)
	}

	printSummary(o)
	if o.Path != "" && cfg.Report.OpenReport && ctx.Err() == nil {
		if err := ui.OpenReport(context.Background(), o.Path); err != nil {
			log.WithError(err).Warn("Could not open report")
		}
	}
	return o.Err()
}

// initLogging sets up the global logger; the TUI keeps log lines off the screen
func initLogging(cfg *config.Config, interactive bool) (logger.Logger, error) {
	var opts []logger.Option
	if interactive {
		opts = append(opts, logger.WithConsole(nil))
	}
	if err := logger.Initialize(&cfg.Logging, opts...); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return logger.GetLogger(), nil
}

// connect attaches to or launches the browser
func connect(ctx context.Context, cfg *config.Config, log logger.Logger) (*browser.Browser, error) {
	b := browser.New(cfg, browser.WithLogger(log))
	log.InfoWithFields("Connecting to browser", map[string]interface{}{
		"endpoint": b.Endpoint(),
	})
	if err := b.Connect(ctx); err != nil {
		return nil, err
	}
	ui.PrintInfo("Browser", browserLabel(b.Launched(), b.Version()))
	return b, nil
}

// browserLabel describes the browser Connect ended up with
func browserLabel(launched bool, info *browser.VersionInfo) string {
	switch {
	case launched:
		return "launched a new instance"
	case info != nil && info.Browser != "":
		return "attached to " + info.Browser
	default:
		return "attached"
	}
}

// noBrowser stands in for the browser when there is nothing to load
type noBrowser struct{}

func (noBrowser) Open(ctx context.Context, url string, kind browser.PageKind) (*browser.Page, error) {
	return nil, browser.ErrNotConnected
}

func joinHandles(handles []models.Account) string {
	parts := make([]string, len(handles))
	for i, h := range handles {
		parts[i] = "@" + h.String()
	}
	return strings.Join(parts, ", ")
}

// printSummary prints the outcome of a scan
func printSummary(o outcome) {
	if o.Run != nil {
		fmt.Fprintln(ui.Out)
		ui.PrintHighlight(o.Run.Summary())
		for _, f := range o.Run.Failures {
			ui.PrintWarning("  @"+f.Account.String(), f.Message)
		}
		if o.Run.Cancelled {
			ui.PrintWarning("Run cancelled, the report only covers the accounts scanned so far")
		}
	}
	if o.RunErr != nil {
		ui.PrintError("Run aborted", o.RunErr)
	}
	if o.ReportErr != nil {
		ui.PrintError("Report not written", o.ReportErr)
	}
	if o.Path != "" {
		ui.PrintSuccess("Report: " + o.Path)
	}
}
