// Package logger provides a structured logging interface for followwatch.
//
// It wraps zerolog with a small API: leveled methods, child loggers carrying
// fields, and a global instance for code paths that have no injected logger.
//
// Basic Usage:
//
//	cfg := &config.LoggingConfig{Level: "info", File: "/var/log/followwatch.log"}
//	if err := logger.Initialize(cfg); err != nil {
//	    return err
//	}
//
//	logger.Info("monitor started")
//	logger.WithField("target_id", 5).Info("check queued")
//
// Components receive a Logger in their constructor and derive children:
//
//	log := baseLogger.WithField("component", "scheduler")
//	log.InfoWithFields("batch finished", map[string]interface{}{
//	    "succeeded": 12,
//	    "failed":    1,
//	})
//
// Tests use NewNopLogger or NewTestLogger, the latter recording every entry
// so assertions can be made on what was logged.
package logger
