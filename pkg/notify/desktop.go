package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	errs "followwatch/pkg/errors"
	"followwatch/pkg/logger"
)

// Sender shows one desktop notification
type Sender interface {
	Send(ctx context.Context, title, message string) error
}

// LinuxSender sends notifications on Linux using notify-send
type LinuxSender struct{}

func (LinuxSender) Send(ctx context.Context, title, message string) error {
	return exec.CommandContext(ctx, "notify-send", title, message).Run()
}

// MacOSSender sends notifications on macOS using osascript
type MacOSSender struct{}

func (MacOSSender) Send(ctx context.Context, title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.CommandContext(ctx, "osascript", "-e", script).Run()
}

// WindowsSender sends notifications on Windows using PowerShell
type WindowsSender struct{}

func (WindowsSender) Send(ctx context.Context, title, message string) error {
	script := fmt.Sprintf(`
		[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
		[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
		$xml = @"
<toast>
	<visual>
		<binding template="ToastText02">
			<text id="1">%s</text>
			<text id="2">%s</text>
		</binding>
	</visual>
</toast>
"@
		$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
		$doc.LoadXml($xml)
		$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
		[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("followwatch").Show($toast)
	`, xmlEscape(title), xmlEscape(message))
	return exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

func xmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;").Replace(s)
}

// senderForOS picks the sender for the running platform, nil if unsupported
func senderForOS(goos string) Sender {
	switch goos {
	case "linux":
		return LinuxSender{}
	case "darwin":
		return MacOSSender{}
	case "windows":
		return WindowsSender{}
	default:
		return nil
	}
}

// DesktopNotifier pops a desktop notification per report and logs it too.
// It suits a single-user install where every owner is the local user.
type DesktopNotifier struct {
	sender Sender
	log    logger.Logger
}

// NewDesktopNotifier creates a notifier for the current OS
func NewDesktopNotifier(log logger.Logger) *DesktopNotifier {
	return NewDesktopNotifierWithSender(senderForOS(runtime.GOOS), log)
}

// NewDesktopNotifierWithSender creates a notifier with an explicit sender
func NewDesktopNotifierWithSender(sender Sender, log logger.Logger) *DesktopNotifier {
	return &DesktopNotifier{sender: sender, log: log.WithField("component", "notifier")}
}

// Notify implements Notifier
func (n *DesktopNotifier) Notify(ctx context.Context, userID string, report Report) error {
	n.log.InfoWithFields("report", map[string]interface{}{
		"user_id":   userID,
		"target_id": report.TargetID,
		"title":     report.Title,
	})
	if n.sender == nil {
		return nil
	}
	if err := n.sender.Send(ctx, report.Title, report.Body); err != nil {
		return errs.NotifyFailure(fmt.Errorf("desktop notification: %w", err))
	}
	return nil
}
