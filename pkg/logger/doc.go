// Package logger provides structured logging for the Instagram monitor.
//
// It wraps zerolog behind a small Logger interface. Console output is colourised for
// humans, and every run can append JSON lines to a date-named file (DD-MM-YYYY.log)
// in the configured log directory.
//
// Basic Usage:
//
//	err := logger.Initialize(&cfg.Logging)
//	defer logger.Close()
//
//	log := logger.GetLogger().WithField("run_id", runID)
//	log.WithField("account", "nasa").Info("Scanning account")
//	log.WithError(err).Warn("Post skipped")
//
// Tests use NewNopLogger, or NewTestLogger to assert on captured messages.
package logger
