package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"igmonitor/pkg/browser"
	errs "igmonitor/pkg/errors"
	"igmonitor/pkg/logger"
	"igmonitor/pkg/models"
	"igmonitor/pkg/ui"
)

var every time.Duration

// watchCmd runs the scan on a fixed interval until interrupted
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan the configured accounts on an interval",
	Long: `Run a scan immediately and then every --every interval until interrupted.
Runs never overlap: a run that is still going when the next one is due pushes
the schedule back. A desktop notification is sent when a run finds posts.

Enable the ledger (ledger.enabled) to only report posts not seen before.`,
	Example: `  igmonitor watch --every 2h -a natgeo`,
	Args:    cobra.NoArgs,
	RunE:    runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addScanFlags(watchCmd)
	watchCmd.Flags().DurationVar(&every, "every", 0, "interval between runs (default from schedule.interval)")
}

// watcher is the scheduled job
type watcher struct {
	runner   *runner
	browser  *browser.Browser
	handles  []models.Account
	notifier *ui.Notifier
	log      logger.Logger

	runs      int
	reconnect bool
}

// tick performs one scheduled scan. A lost browser connection is retried on
// the next tick instead of stopping the schedule.
func (w *watcher) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	w.runs++
	log := w.log.WithField("watch_run", w.runs)

	if w.reconnect {
		w.browser.Close()
		if err := w.browser.Connect(ctx); err != nil {
			log.WithError(err).Error("Browser still unreachable, skipping run")
			ui.PrintError("Browser unreachable", err)
			return
		}
		w.reconnect = false
	}

	log.Info("Scheduled run starting")
	ui.PrintInfo("Run", fmt.Sprintf("#%d at %s", w.runs, time.Now().Format("15:04")))

	o := w.runner.scanConsole(ctx, w.handles)
	printSummary(o)

	if errs.IsFatal(o.RunErr) {
		w.reconnect = true
		if err := w.notifier.SendError(o.RunErr.Error()); err != nil {
			log.WithError(err).Debug("Notification failed")
		}
	}
	if o.Run != nil && o.Path != "" {
		if err := w.notifier.SendNewPosts(o.Run.TotalPosts, o.Path); err != nil {
			log.WithError(err).Debug("Notification failed")
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, handles, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	if len(handles) == 0 {
		return fmt.Errorf("configuration: %w", errNoAccounts)
	}
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := initLogging(cfg, false)
	if err != nil {
		return err
	}
	defer logger.Close()

	ui.PrintBanner()
	ui.PrintInfo("Accounts", joinHandles(handles))
	ui.PrintInfo("Interval", cfg.Schedule.Interval.String())

	b, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	r, err := newRunner(cfg, b, log)
	if err != nil {
		return err
	}
	w := &watcher{
		runner:   r,
		browser:  b,
		handles:  handles,
		notifier: ui.NewNotifier(),
		log:      log.WithField("component", "watch"),
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Schedule.Interval),
		gocron.NewTask(func() {
			w.tick(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithName("igmonitor-scan"),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule scan: %w", err)
	}

	scheduler.Start()
	log.InfoWithFields("Watching accounts", map[string]interface{}{
		"accounts": len(handles),
		"interval": cfg.Schedule.Interval.String(),
	})

	<-ctx.Done()
	ui.PrintWarning("Stopping watch")
	if err := scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}
