package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"worktrack/internal/tracker"
)

// ReminderMessage returns the text shown to the user for a fired reminder.
func ReminderMessage(r *tracker.SentReminder, settings tracker.ReminderSettings) string {
	switch r.Kind {
	case tracker.ReminderWork:
		return fmt.Sprintf("You have been working for %d minutes. Keep it up, or log a note on progress.", settings.Work.Minutes)
	case tracker.ReminderBreak:
		return fmt.Sprintf("No break in the last %d minutes. Time to stretch.", settings.Break.Minutes)
	case tracker.ReminderLongBreak:
		return fmt.Sprintf("%d minutes into this session. Consider a longer break.", settings.LongBreak.Minutes)
	case tracker.ReminderDailyGoal:
		return fmt.Sprintf("Daily goal of %s reached.", tracker.FormatDuration(int64(settings.DailyGoal.Minutes)*60))
	}
	return string(r.Kind)
}

// SettingsLookup resolves a user's reminder settings for message text.
type SettingsLookup func(ctx context.Context, userID int64) (tracker.ReminderSettings, error)

// LogNotifier delivers reminders by writing one line per reminder to w and
// recording it in the log. It stands in for a chat transport.
type LogNotifier struct {
	mu       sync.Mutex
	w        io.Writer
	settings SettingsLookup
	logger   tracker.Logger
}

var _ tracker.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(w io.Writer, settings SettingsLookup, logger tracker.Logger) *LogNotifier {
	return &LogNotifier{w: w, settings: settings, logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, r *tracker.SentReminder) error {
	settings, err := n.settings(ctx, r.UserID)
	if err != nil {
		return fmt.Errorf("loading settings for reminder text: %w", err)
	}
	msg := ReminderMessage(r, settings)

	n.mu.Lock()
	_, err = fmt.Fprintf(n.w, "[%s] user %d: %s\n", r.SentAt.UTC().Format("15:04"), r.UserID, msg)
	n.mu.Unlock()
	if err != nil {
		return fmt.Errorf("writing reminder: %w", err)
	}

	n.logger.Info("reminder delivered", "user", r.UserID, "kind", string(r.Kind))
	return nil
}
