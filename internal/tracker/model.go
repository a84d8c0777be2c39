package tracker

import "time"

// SessionStatus is the lifecycle state of a work session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
)

// Open reports whether the session is still in flight.
func (s SessionStatus) Open() bool {
	return s == StatusActive || s == StatusPaused
}

// User is a tracked person, keyed by the chat platform's integer id.
type User struct {
	ID           int64     `db:"user_id"`
	Username     string    `db:"username"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	RegisteredAt time.Time `db:"registered_at"`
}

// Session is one continuous work engagement, possibly interrupted by breaks.
// EndTime and Duration stay nil until the session is completed.
type Session struct {
	ID        string        `db:"id"`
	UserID    int64         `db:"user_id"`
	Category  string        `db:"category"`
	StartTime time.Time     `db:"start_time"`
	EndTime   *time.Time    `db:"end_time"`
	Duration  *int64        `db:"duration"`
	Status    SessionStatus `db:"status"`
}

// DurationSeconds returns the stored duration, or 0 while the session is open.
func (s *Session) DurationSeconds() int64 {
	if s.Duration == nil {
		return 0
	}
	return *s.Duration
}

// Break is a pause interval nested inside a session.
type Break struct {
	ID        string     `db:"id"`
	SessionID string     `db:"session_id"`
	UserID    int64      `db:"user_id"`
	StartTime time.Time  `db:"start_time"`
	EndTime   *time.Time `db:"end_time"`
	Duration  *int64     `db:"duration"`
	Reason    string     `db:"reason"`
}

// Open reports whether the break has not been closed yet.
func (b *Break) Open() bool {
	return b.EndTime == nil
}

// Note is an immutable free-text entry, optionally tied to a session.
type Note struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	SessionID *string   `db:"session_id"`
	Category  string    `db:"category"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// ReminderKind identifies an independently configured and debounced reminder.
type ReminderKind string

const (
	ReminderWork      ReminderKind = "work"
	ReminderBreak     ReminderKind = "break"
	ReminderLongBreak ReminderKind = "long_break"
	ReminderDailyGoal ReminderKind = "daily_goal"
)

// ReminderKinds lists every kind in evaluation order.
var ReminderKinds = []ReminderKind{ReminderWork, ReminderBreak, ReminderLongBreak, ReminderDailyGoal}

// IntervalSetting is the enabled flag and interval of one reminder kind.
type IntervalSetting struct {
	Enabled bool
	Minutes int
}

// Interval returns the setting as a duration.
func (s IntervalSetting) Interval() time.Duration {
	return time.Duration(s.Minutes) * time.Minute
}

// ReminderSettings holds a user's reminder configuration.
type ReminderSettings struct {
	UserID    int64
	Work      IntervalSetting
	Break     IntervalSetting
	LongBreak IntervalSetting
	DailyGoal IntervalSetting
}

// DefaultReminderSettings returns the settings applied when a user has none stored.
func DefaultReminderSettings(userID int64) ReminderSettings {
	return ReminderSettings{
		UserID:    userID,
		Work:      IntervalSetting{Enabled: true, Minutes: 60},
		Break:     IntervalSetting{Enabled: true, Minutes: 90},
		LongBreak: IntervalSetting{Enabled: false, Minutes: 240},
		DailyGoal: IntervalSetting{Enabled: true, Minutes: 480},
	}
}

// Setting returns the interval setting for kind.
func (s ReminderSettings) Setting(kind ReminderKind) IntervalSetting {
	switch kind {
	case ReminderWork:
		return s.Work
	case ReminderBreak:
		return s.Break
	case ReminderLongBreak:
		return s.LongBreak
	case ReminderDailyGoal:
		return s.DailyGoal
	}
	return IntervalSetting{}
}

// SettingsUpdate is a partial change to ReminderSettings. Nil fields are left as-is.
type SettingsUpdate struct {
	WorkEnabled      *bool
	WorkMinutes      *int
	BreakEnabled     *bool
	BreakMinutes     *int
	LongBreakEnabled *bool
	LongBreakMinutes *int
	DailyGoalEnabled *bool
	DailyGoalMinutes *int
}

// SentReminder is an append-only log row recording a delivered reminder.
type SentReminder struct {
	ID        int64        `db:"id"`
	UserID    int64        `db:"user_id"`
	Kind      ReminderKind `db:"kind"`
	SessionID *string      `db:"session_id"`
	SentAt    time.Time    `db:"sent_at"`
}
