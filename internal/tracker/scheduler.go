package tracker

import (
	"context"
	"time"
)

// DefaultTickInterval is how often the scheduler evaluates reminders.
const DefaultTickInterval = 60 * time.Second

// Notifier delivers a fired reminder to the user. The chat transport
// implements it; the reminder is already recorded when Notify is called.
type Notifier interface {
	Notify(ctx context.Context, reminder *SentReminder) error
}

// Scheduler periodically evaluates reminders for every known user.
// Only one scheduler may run against a store at a time; running several
// would need a distributed lock.
type Scheduler struct {
	tracker   *Tracker
	reminders *Reminders
	notifier  Notifier
	interval  time.Duration
}

// NewScheduler creates a Scheduler ticking every interval
// (DefaultTickInterval if interval is not positive).
func NewScheduler(t *Tracker, reminders *Reminders, notifier Notifier, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Scheduler{
		tracker:   t,
		reminders: reminders,
		notifier:  notifier,
		interval:  interval,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tracker.logger.Info("reminder scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.tracker.logger.Info("reminder scheduler stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				s.tracker.logger.Error("reminder tick failed", "error", err)
			}
		}
	}
}

// Tick evaluates every user once and returns the number of reminders
// delivered. A failure for one user is logged and does not stop the tick.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	t := s.tracker

	lctx, cancel := t.withTimeout(ctx)
	users, err := t.store.ListUserIDs(lctx)
	cancel()
	if err != nil {
		return 0, storageErr("listing users", err)
	}

	now := t.clock.Now()
	delivered := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}

		sent, err := s.reminders.Evaluate(ctx, userID, now)
		if err != nil {
			t.logger.Error("reminder evaluation failed", "user", userID, "error", err)
		}
		for _, rem := range sent {
			if err := s.notifier.Notify(ctx, rem); err != nil {
				t.logger.Error("reminder delivery failed", "user", userID, "kind", string(rem.Kind), "error", err)
				continue
			}
			delivered++
		}
	}

	if delivered > 0 {
		t.logger.Debug("reminder tick", "users", len(users), "delivered", delivered)
	}
	return delivered, nil
}
