package tracker

import (
	"context"
	"time"
)

// DailyGoalDebounce is the minimum spacing between two daily-goal reminders,
// whatever the configured goal.
const DailyGoalDebounce = 60 * time.Minute

// EvaluationInput is everything the reminder decision depends on.
// A zero LastSent entry means the kind was never sent.
type EvaluationInput struct {
	Settings       ReminderSettings
	Session        *Session // the user's Active or Paused session, or nil
	Breaks         []*Break // breaks of Session
	LastSent       map[ReminderKind]time.Time
	CompletedToday int64 // seconds of completed work today
	Now            time.Time
}

// Debounce returns the minimum spacing between two reminders of kind.
func Debounce(kind ReminderKind, settings ReminderSettings) time.Duration {
	if kind == ReminderDailyGoal {
		return DailyGoalDebounce
	}
	return settings.Setting(kind).Interval()
}

func rearmed(last, now time.Time, debounce time.Duration) bool {
	return last.IsZero() || now.Sub(last) >= debounce
}

// Evaluate decides which reminders fire now. It is pure: recording the
// firings is up to the caller.
//
// Work and long-break reminders fire once the open session has run for their
// interval and re-fire every interval after. The break reminder additionally
// needs an Active session with no break started within the interval. The
// daily-goal reminder fires once today's completed work reaches the goal, at
// most once per DailyGoalDebounce.
func Evaluate(in EvaluationInput) []ReminderKind {
	var fired []ReminderKind

	open := in.Session != nil && in.Session.Status.Open()
	var elapsed time.Duration
	if open {
		elapsed = in.Now.Sub(in.Session.StartTime)
	}

	for _, kind := range []ReminderKind{ReminderWork, ReminderBreak, ReminderLongBreak} {
		setting := in.Settings.Setting(kind)
		if !setting.Enabled || setting.Minutes <= 0 || !open {
			continue
		}
		interval := setting.Interval()
		if elapsed < interval || !rearmed(in.LastSent[kind], in.Now, interval) {
			continue
		}
		if kind == ReminderBreak {
			if in.Session.Status != StatusActive || recentBreak(in.Breaks, in.Now, interval) {
				continue
			}
		}
		fired = append(fired, kind)
	}

	goal := in.Settings.DailyGoal
	if goal.Enabled && goal.Minutes > 0 &&
		in.CompletedToday >= int64(goal.Minutes)*60 &&
		rearmed(in.LastSent[ReminderDailyGoal], in.Now, DailyGoalDebounce) {
		fired = append(fired, ReminderDailyGoal)
	}

	return fired
}

// recentBreak reports whether any break started within window before now.
func recentBreak(breaks []*Break, now time.Time, window time.Duration) bool {
	for _, b := range breaks {
		if now.Sub(b.StartTime) < window {
			return true
		}
	}
	return false
}

// Reminders evaluates and records reminders for one user at a time, under
// the same per-user lock as the state machine.
type Reminders struct {
	tracker    *Tracker
	aggregator *Aggregator
}

// NewReminders creates a Reminders bound to t's store and locks.
func NewReminders(t *Tracker, aggregator *Aggregator) *Reminders {
	return &Reminders{tracker: t, aggregator: aggregator}
}

// Evaluate runs the reminder decision for userID at now and appends a log
// row for every fired kind. The store re-checks the debounce while
// appending, so a kind is returned only if its row was written.
func (r *Reminders) Evaluate(ctx context.Context, userID int64, now time.Time) ([]*SentReminder, error) {
	t := r.tracker

	unlock := t.locks.lock(userID)
	defer unlock()

	sctx, cancel := t.withTimeout(ctx)
	defer cancel()

	in, err := r.load(sctx, userID, now)
	if err != nil {
		return nil, err
	}

	kinds := Evaluate(in)
	if len(kinds) == 0 {
		return nil, nil
	}

	var sent []*SentReminder
	for _, kind := range kinds {
		rem := &SentReminder{UserID: userID, Kind: kind, SentAt: now}
		if in.Session != nil && kind != ReminderDailyGoal {
			id := in.Session.ID
			rem.SessionID = &id
		}

		ok, err := t.store.RecordReminder(sctx, rem, Debounce(kind, in.Settings))
		if err != nil {
			return sent, storageErr("recording reminder", err)
		}
		if !ok {
			t.logger.Debug("reminder debounced", "user", userID, "kind", string(kind))
			continue
		}
		sent = append(sent, rem)
	}
	return sent, nil
}

func (r *Reminders) load(ctx context.Context, userID int64, now time.Time) (EvaluationInput, error) {
	t := r.tracker
	in := EvaluationInput{Now: now, LastSent: make(map[ReminderKind]time.Time)}

	settings, err := t.settings(ctx, userID)
	if err != nil {
		return in, err
	}
	in.Settings = settings

	session, err := t.store.FindOpenSession(ctx, userID)
	if err != nil {
		return in, storageErr("finding open session", err)
	}
	in.Session = session

	if session != nil {
		breaks, err := t.store.FindBreaksForSession(ctx, session.ID)
		if err != nil {
			return in, storageErr("finding breaks", err)
		}
		in.Breaks = breaks
	}

	for _, kind := range ReminderKinds {
		last, err := t.store.LastReminderSent(ctx, userID, kind)
		if err != nil {
			return in, storageErr("loading reminder log", err)
		}
		in.LastSent[kind] = last
	}

	if settings.DailyGoal.Enabled {
		total, err := r.aggregator.CompletedDurationOn(ctx, userID, now)
		if err != nil {
			return in, err
		}
		in.CompletedToday = total
	}

	return in, nil
}
