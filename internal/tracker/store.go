package tracker

import (
	"context"
	"time"
)

// Store provides durable storage for users, sessions, breaks, notes and
// reminder state. Every mutating method is a single atomic operation: the
// precondition check and the writes it guards happen in one transaction.
// Lookups that find nothing return nil and no error.
type Store interface {
	// User operations

	// UpsertUser creates the user or refreshes its display metadata.
	UpsertUser(ctx context.Context, user *User) error

	// FindUser returns the user with the given id.
	FindUser(ctx context.Context, userID int64) (*User, error)

	// ListUserIDs returns every known user id in ascending order.
	ListUserIDs(ctx context.Context) ([]int64, error)

	// Session lifecycle

	// StartSession inserts session unless the user already has an Active or
	// Paused session, in which case that session is returned and nothing is
	// written. The user row is created if missing.
	StartSession(ctx context.Context, session *Session) (existing *Session, err error)

	// PauseSession marks the user's Active session Paused and inserts brk as
	// its open break. Returns nil if the user has no Active session.
	PauseSession(ctx context.Context, userID int64, brk *Break) (*Session, error)

	// ResumeSession marks the user's Paused session Active and closes its
	// open break at now. Returns nil values if no Paused session exists.
	ResumeSession(ctx context.Context, userID int64, now time.Time) (*Session, *Break, error)

	// EndSession completes the user's Active or Paused session at now and
	// closes any break still open on it. Returns nil values if the user has
	// no open session.
	EndSession(ctx context.Context, userID int64, now time.Time) (*Session, *Break, error)

	// FindOpenSession returns the user's Active or Paused session.
	FindOpenSession(ctx context.Context, userID int64) (*Session, error)

	// FindSession returns a session by id.
	FindSession(ctx context.Context, sessionID string) (*Session, error)

	// FindSessionsOverlapping returns the user's sessions that overlap
	// [from, to], including sessions still open, ordered by start time.
	FindSessionsOverlapping(ctx context.Context, userID int64, from, to time.Time) ([]*Session, error)

	// FindSessionsStartedBetween returns the user's sessions whose start
	// time lies in [from, to], ordered by start time.
	FindSessionsStartedBetween(ctx context.Context, userID int64, from, to time.Time) ([]*Session, error)

	// FindOpenSessionsStartedBefore returns open sessions of any user that
	// started before cutoff.
	FindOpenSessionsStartedBefore(ctx context.Context, cutoff time.Time) ([]*Session, error)

	// Break operations

	// FindBreaksForSession returns a session's breaks ordered by start time.
	FindBreaksForSession(ctx context.Context, sessionID string) ([]*Break, error)

	// FindBreaksForSessions returns the breaks of all given sessions.
	FindBreaksForSessions(ctx context.Context, sessionIDs []string) ([]*Break, error)

	// Note operations

	// CreateNote inserts an immutable note. The user row is created if missing.
	CreateNote(ctx context.Context, note *Note) error

	// FindNotesForUser returns the user's newest notes, at most limit.
	FindNotesForUser(ctx context.Context, userID int64, limit int) ([]*Note, error)

	// FindNotesForSession returns a session's notes, oldest first.
	FindNotesForSession(ctx context.Context, sessionID string) ([]*Note, error)

	// Reminder state

	// GetReminderSettings returns the user's stored settings.
	GetReminderSettings(ctx context.Context, userID int64) (*ReminderSettings, error)

	// SaveReminderSettings inserts or replaces the user's settings.
	SaveReminderSettings(ctx context.Context, settings *ReminderSettings) error

	// LastReminderSent returns when a reminder of kind was last sent to the
	// user, or the zero time if never.
	LastReminderSent(ctx context.Context, userID int64, kind ReminderKind) (time.Time, error)

	// RecordReminder appends reminder to the log if no reminder of the same
	// kind was sent to the user within debounce before reminder.SentAt.
	// Reports whether the row was appended.
	RecordReminder(ctx context.Context, reminder *SentReminder, debounce time.Duration) (bool, error)

	// BackupTo writes a consistent copy of the store to destPath.
	BackupTo(ctx context.Context, destPath string) error

	// Close closes the store.
	Close() error
}
