package notify

import (
	"context"

	"followwatch/pkg/logger"
)

// LogNotifier writes reports to the structured log
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a notifier that logs each report at info level
func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithField("component", "notifier")}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(_ context.Context, userID string, report Report) error {
	fields := map[string]interface{}{
		"user_id":   userID,
		"target_id": report.TargetID,
		"title":     report.Title,
		"body":      report.Body,
	}
	if report.Failure {
		n.log.WarnWithFields("report delivered", fields)
		return nil
	}
	n.log.InfoWithFields("report delivered", fields)
	return nil
}
