package synckit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c0deZ3R0/fieldsync/logging"
	"github.com/c0deZ3R0/fieldsync/offline"
	"github.com/c0deZ3R0/fieldsync/report"
)

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is an interactive message for the user (a toast).
type Notification struct {
	Level   Level
	Message string
}

// Notifier shows notifications to the user. Runs started with notify=false
// never call it.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *logging.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = logging.Default()
	}
	level := slog.LevelInfo
	switch n.Level {
	case LevelWarning:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	logger.LogAttrs(ctx, level, n.Message, slog.String("notification", string(n.Level)))
}

func plural(n int) string {
	if n == 1 {
		return "report"
	}
	return "reports"
}

func noConnectionNotice() Notification {
	return Notification{Level: LevelWarning, Message: "No connection to the server. Reports will sync when the connection is restored."}
}

func progressNotice(n int) Notification {
	return Notification{Level: LevelInfo, Message: fmt.Sprintf("Syncing %d offline %s...", n, plural(n))}
}

func stuckNotice(n int) Notification {
	return Notification{Level: LevelWarning, Message: fmt.Sprintf(
		"%d %s could not be synced after %d attempts and need attention.", n, plural(n), offline.MaxRetryAttempts)}
}

func queuedNotice() Notification {
	return Notification{Level: LevelWarning, Message: "Report saved offline. It will be submitted when the connection is restored."}
}

// summaryNotice words the outcome of a run. ok is false for an empty run.
func summaryNotice(results []report.SyncResult) (Notification, bool) {
	s := report.Summarize(results)
	switch {
	case len(results) == 0:
		return Notification{}, false
	case s.Failed == 0:
		return Notification{Level: LevelSuccess, Message: fmt.Sprintf("Successfully synced %d %s.", s.Succeeded, plural(s.Succeeded))}, true
	case s.Succeeded == 0:
		return Notification{Level: LevelError, Message: fmt.Sprintf("Failed to sync %d %s. Will retry later.", s.Failed, plural(s.Failed))}, true
	default:
		return Notification{Level: LevelWarning, Message: fmt.Sprintf("Synced %d %s, %d failed and will be retried.", s.Succeeded, plural(s.Succeeded), s.Failed)}, true
	}
}
