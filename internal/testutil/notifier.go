package testutil

import (
	"context"
	"sync"

	"worktrack/internal/tracker"
)

// RecordingNotifier collects delivered reminders. Err, when set, is returned
// from every Notify call instead of recording.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []*tracker.SentReminder
	Err  error
}

func (n *RecordingNotifier) Notify(_ context.Context, reminder *tracker.SentReminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.sent = append(n.sent, reminder)
	return nil
}

// Sent returns the reminders delivered so far.
func (n *RecordingNotifier) Sent() []*tracker.SentReminder {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*tracker.SentReminder(nil), n.sent...)
}

// Kinds returns the kinds of the reminders delivered so far, in order.
func (n *RecordingNotifier) Kinds() []tracker.ReminderKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]tracker.ReminderKind, len(n.sent))
	for i, r := range n.sent {
		kinds[i] = r.Kind
	}
	return kinds
}
