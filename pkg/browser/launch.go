package browser

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"igmonitor/pkg/config"
	"igmonitor/pkg/logger"
)

const killTimeout = 5 * time.Second

// launchOptions builds the allocator flags for a locally launched browser
func launchOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("remote-debugging-port", strconv.Itoa(cfg.Port)),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
	)

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}
	if cfg.ProfileDir != "" {
		opts = append(opts, chromedp.Flag("profile-directory", cfg.ProfileDir))
	}
	return opts
}

// processName returns the executable name used to find running browser instances
func processName(execPath string) string {
	if execPath == "" {
		return ""
	}
	name := filepath.Base(execPath)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// killCommand returns the command that stops every process called name on goos
func killCommand(goos, name string) (string, []string) {
	if goos == "windows" {
		if !strings.HasSuffix(strings.ToLower(name), ".exe") {
			name += ".exe"
		}
		return "taskkill", []string{"/f", "/im", name}
	}
	return "pkill", []string{"-f", name}
}

// killExisting stops running instances of the configured browser so the
// profile directory and debugging port are free. Failures are only logged.
func killExisting(ctx context.Context, cfg config.BrowserConfig, log logger.Logger) {
	name := processName(cfg.ExecPath)
	if name == "" {
		log.Debug("no browser executable configured, skipping process cleanup")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, killTimeout)
	defer cancel()

	bin, args := killCommand(runtime.GOOS, name)
	out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	fields := map[string]interface{}{
		"command": bin + " " + strings.Join(args, " "),
	}
	if err != nil {
		// pkill exits 1 when nothing matched
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			log.DebugWithFields("no running browser processes", fields)
			return
		}
		fields["output"] = strings.TrimSpace(string(out))
		log.WithError(err).WarnWithFields("failed to stop running browser processes", fields)
		return
	}
	log.InfoWithFields("stopped running browser processes", fields)
}
