package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultStoreTimeout bounds every store call made by the tracker.
const DefaultStoreTimeout = 5 * time.Second

// DefaultBreakReason is recorded when a pause carries no reason.
const DefaultBreakReason = "break"

// Tracker is the per-user session state machine:
//
//	none -> active -> {paused <-> active} -> completed
//
// Each operation holds the user's lock for its whole check-then-mutate
// sequence, and the store applies the mutation in one transaction.
type Tracker struct {
	store   Store
	logger  Logger
	clock   Clock
	idgen   IDGenerator
	locks   *userLocks
	timeout time.Duration
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStoreTimeout overrides DefaultStoreTimeout.
func WithStoreTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// NewTracker creates a Tracker with the provided dependencies.
func NewTracker(store Store, logger Logger, clock Clock, idgen IDGenerator, opts ...Option) *Tracker {
	t := &Tracker{
		store:   store,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
		locks:   newUserLocks(),
		timeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.timeout)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// Start opens a new Active session in category. The category is stored
// verbatim; it only has to be non-blank.
func (t *Tracker) Start(ctx context.Context, userID int64, category string) (Transition, error) {
	if strings.TrimSpace(category) == "" {
		return Transition{}, fmt.Errorf("%w: category must not be empty", ErrInvalidArgument)
	}

	unlock := t.locks.lock(userID)
	defer unlock()

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	session := &Session{
		ID:        t.idgen.New(),
		UserID:    userID,
		Category:  category,
		StartTime: t.clock.Now(),
		Status:    StatusActive,
	}

	existing, err := t.store.StartSession(ctx, session)
	if err != nil {
		return Transition{}, storageErr("starting session", err)
	}
	if existing != nil {
		t.logger.Debug("start rejected", "user", userID, "session", existing.ID, "status", string(existing.Status))
		return Transition{Session: existing, Conflict: ConflictSessionOpen}, nil
	}

	t.logger.Info("session started", "user", userID, "session", session.ID, "category", category)
	return Transition{Session: session}, nil
}

// Pause moves the user's Active session to Paused and opens a break.
// Pausing an already Paused session is rejected.
func (t *Tracker) Pause(ctx context.Context, userID int64, reason string) (Transition, error) {
	if strings.TrimSpace(reason) == "" {
		reason = DefaultBreakReason
	}

	unlock := t.locks.lock(userID)
	defer unlock()

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	brk := &Break{
		ID:        t.idgen.New(),
		UserID:    userID,
		StartTime: t.clock.Now(),
		Reason:    reason,
	}

	session, err := t.store.PauseSession(ctx, userID, brk)
	if err != nil {
		return Transition{}, storageErr("pausing session", err)
	}
	if session == nil {
		open, err := t.store.FindOpenSession(ctx, userID)
		if err != nil {
			return Transition{}, storageErr("finding open session", err)
		}
		return Transition{Session: open, Conflict: ConflictNoActiveSession}, nil
	}

	t.logger.Info("session paused", "user", userID, "session", session.ID, "reason", reason)
	return Transition{Session: session, Break: brk}, nil
}

// Resume moves the user's Paused session back to Active and closes its break.
func (t *Tracker) Resume(ctx context.Context, userID int64) (Transition, error) {
	unlock := t.locks.lock(userID)
	defer unlock()

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	session, brk, err := t.store.ResumeSession(ctx, userID, t.clock.Now())
	if err != nil {
		return Transition{}, storageErr("resuming session", err)
	}
	if session == nil {
		open, err := t.store.FindOpenSession(ctx, userID)
		if err != nil {
			return Transition{}, storageErr("finding open session", err)
		}
		return Transition{Session: open, Conflict: ConflictNoPausedSession}, nil
	}

	t.logger.Info("session resumed", "user", userID, "session", session.ID)
	return Transition{Session: session, Break: brk}, nil
}

// End completes the user's Active or Paused session. The duration is the
// wall-clock time since start; breaks are not subtracted. A break still open
// on a Paused session is closed at the same instant.
func (t *Tracker) End(ctx context.Context, userID int64) (Transition, error) {
	unlock := t.locks.lock(userID)
	defer unlock()

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	session, brk, err := t.store.EndSession(ctx, userID, t.clock.Now())
	if err != nil {
		return Transition{}, storageErr("ending session", err)
	}
	if session == nil {
		return Transition{Conflict: ConflictNoOpenSession}, nil
	}

	t.logger.Info("session ended", "user", userID, "session", session.ID, "duration", session.DurationSeconds())
	return Transition{Session: session, Break: brk}, nil
}

// ActiveOrPaused returns the user's in-flight session, or nil.
func (t *Tracker) ActiveOrPaused(ctx context.Context, userID int64) (*Session, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	session, err := t.store.FindOpenSession(ctx, userID)
	if err != nil {
		return nil, storageErr("finding open session", err)
	}
	return session, nil
}

// Elapsed returns the whole seconds since the session started, or its final
// duration once completed.
func (t *Tracker) Elapsed(session *Session) int64 {
	if session.Duration != nil {
		return *session.Duration
	}
	return ElapsedSeconds(session.StartTime, t.clock.Now())
}

// SessionBreaks returns a session's breaks, oldest first.
func (t *Tracker) SessionBreaks(ctx context.Context, sessionID string) ([]*Break, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	breaks, err := t.store.FindBreaksForSession(ctx, sessionID)
	if err != nil {
		return nil, storageErr("finding breaks", err)
	}
	return breaks, nil
}

// RegisterUser records a user on first contact or refreshes its metadata.
func (t *Tracker) RegisterUser(ctx context.Context, user User) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	if user.RegisteredAt.IsZero() {
		user.RegisteredAt = t.clock.Now()
	}
	if err := t.store.UpsertUser(ctx, &user); err != nil {
		return storageErr("registering user", err)
	}
	return nil
}

// User returns a registered user, or nil.
func (t *Tracker) User(ctx context.Context, userID int64) (*User, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	user, err := t.store.FindUser(ctx, userID)
	if err != nil {
		return nil, storageErr("finding user", err)
	}
	return user, nil
}

// NoteInput holds the already-resolved arguments of a new note.
// An empty SessionID leaves the note unattached.
type NoteInput struct {
	Content   string
	Category  string
	SessionID string
}

// AddNote stores an immutable note for the user.
func (t *Tracker) AddNote(ctx context.Context, userID int64, in NoteInput) (*Note, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, fmt.Errorf("%w: note content must not be empty", ErrInvalidArgument)
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	note := &Note{
		ID:        t.idgen.New(),
		UserID:    userID,
		Category:  in.Category,
		Content:   in.Content,
		CreatedAt: t.clock.Now(),
	}
	if in.SessionID != "" {
		sessionID := in.SessionID
		note.SessionID = &sessionID
	}

	if err := t.store.CreateNote(ctx, note); err != nil {
		return nil, storageErr("creating note", err)
	}

	t.logger.Debug("note added", "user", userID, "note", note.ID)
	return note, nil
}

// Notes returns the user's newest notes, at most limit.
func (t *Tracker) Notes(ctx context.Context, userID int64, limit int) ([]*Note, error) {
	if limit <= 0 {
		limit = 10
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	notes, err := t.store.FindNotesForUser(ctx, userID, limit)
	if err != nil {
		return nil, storageErr("listing notes", err)
	}
	return notes, nil
}

// SessionNotes returns the notes attached to a session, oldest first.
func (t *Tracker) SessionNotes(ctx context.Context, sessionID string) ([]*Note, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	notes, err := t.store.FindNotesForSession(ctx, sessionID)
	if err != nil {
		return nil, storageErr("listing session notes", err)
	}
	return notes, nil
}

// Settings returns the user's reminder settings with defaults applied.
func (t *Tracker) Settings(ctx context.Context, userID int64) (ReminderSettings, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	return t.settings(ctx, userID)
}

func (t *Tracker) settings(ctx context.Context, userID int64) (ReminderSettings, error) {
	stored, err := t.store.GetReminderSettings(ctx, userID)
	if err != nil {
		return ReminderSettings{}, storageErr("loading reminder settings", err)
	}
	if stored == nil {
		return DefaultReminderSettings(userID), nil
	}
	return *stored, nil
}

// UpdateSettings applies a partial update to the user's reminder settings
// and returns the result. Minutes must be positive.
func (t *Tracker) UpdateSettings(ctx context.Context, userID int64, upd SettingsUpdate) (ReminderSettings, error) {
	for _, m := range []*int{upd.WorkMinutes, upd.BreakMinutes, upd.LongBreakMinutes, upd.DailyGoalMinutes} {
		if m != nil && *m <= 0 {
			return ReminderSettings{}, fmt.Errorf("%w: reminder minutes must be positive, got %d", ErrInvalidArgument, *m)
		}
	}

	unlock := t.locks.lock(userID)
	defer unlock()

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	s, err := t.settings(ctx, userID)
	if err != nil {
		return ReminderSettings{}, err
	}

	apply := func(dst *IntervalSetting, enabled *bool, minutes *int) {
		if enabled != nil {
			dst.Enabled = *enabled
		}
		if minutes != nil {
			dst.Minutes = *minutes
		}
	}
	apply(&s.Work, upd.WorkEnabled, upd.WorkMinutes)
	apply(&s.Break, upd.BreakEnabled, upd.BreakMinutes)
	apply(&s.LongBreak, upd.LongBreakEnabled, upd.LongBreakMinutes)
	apply(&s.DailyGoal, upd.DailyGoalEnabled, upd.DailyGoalMinutes)

	if err := t.store.SaveReminderSettings(ctx, &s); err != nil {
		return ReminderSettings{}, storageErr("saving reminder settings", err)
	}

	t.logger.Info("reminder settings updated", "user", userID)
	return s, nil
}

// RepairOpenSessions ends every session that has been open since before
// cutoff and returns the completed sessions.
func (t *Tracker) RepairOpenSessions(ctx context.Context, cutoff time.Time) ([]*Session, error) {
	findCtx, cancel := t.withTimeout(ctx)
	stale, err := t.store.FindOpenSessionsStartedBefore(findCtx, cutoff)
	cancel()
	if err != nil {
		return nil, storageErr("finding stale sessions", err)
	}

	var repaired []*Session
	for _, s := range stale {
		tr, err := t.End(ctx, s.UserID)
		if err != nil {
			return repaired, err
		}
		if tr.OK() {
			t.logger.Warn("stale session closed", "user", s.UserID, "session", tr.Session.ID)
			repaired = append(repaired, tr.Session)
		}
	}
	return repaired, nil
}
