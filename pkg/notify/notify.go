// Package notify delivers rendered reports to target owners.
package notify

import (
	"context"
	"fmt"
	"strings"

	"followwatch/pkg/config"
	"followwatch/pkg/logger"
)

// Report is a rendered message for one target
type Report struct {
	TargetID int64
	Title    string
	Body     string
	// Failure marks the generic failure notice
	Failure bool
}

// Text joins title and body the way chat transports show them
func (r Report) Text() string {
	if r.Body == "" {
		return r.Title
	}
	if r.Title == "" {
		return r.Body
	}
	return r.Title + "\n" + r.Body
}

// Notifier delivers a report to the owner identified by userID
type Notifier interface {
	Notify(ctx context.Context, userID string, report Report) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, userID string, report Report) error

// Notify implements Notifier
func (f NotifierFunc) Notify(ctx context.Context, userID string, report Report) error {
	return f(ctx, userID, report)
}

// Nop drops every report
type Nop struct{}

// Notify implements Notifier
func (Nop) Notify(context.Context, string, Report) error { return nil }

// New builds the notifier selected by cfg.Type
func New(cfg config.NotificationConfig, log logger.Logger) (Notifier, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	switch strings.ToLower(cfg.Type) {
	case "", "log":
		return NewLogNotifier(log), nil
	case "none":
		return Nop{}, nil
	case "desktop":
		return NewDesktopNotifier(log), nil
	case "discord":
		return NewDiscordNotifier(cfg.DiscordToken, log)
	default:
		return nil, fmt.Errorf("unknown notifier type: %q", cfg.Type)
	}
}
