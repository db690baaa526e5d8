package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	zlog := zerolog.New(io.Discard).Level(zerolog.Disabled)
	return &zerologLogger{
		logger: &zlog,
		fields: make(map[string]interface{}),
	}
}

// LogComponentStart logs the start of a long-lived component
func LogComponentStart(log Logger, component string, fields map[string]interface{}) {
	merged := map[string]interface{}{"component": component}
	for k, v := range fields {
		merged[k] = v
	}
	log.InfoWithFields("component started", merged)
}

// LogComponentStop logs the shutdown of a long-lived component
func LogComponentStop(log Logger, component string, uptime time.Duration) {
	log.InfoWithFields("component stopped", map[string]interface{}{
		"component": component,
		"uptime":    uptime.Round(time.Second).String(),
	})
}

// LogTaskOutcome logs one per-target result at a level matching its status
func LogTaskOutcome(log Logger, targetID int64, status string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"target_id":   targetID,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		log.WithError(err).WarnWithFields("target check failed", fields)
		return
	}
	log.DebugWithFields("target check finished", fields)
}
