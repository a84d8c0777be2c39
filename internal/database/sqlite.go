package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"

	"worktrack/internal/database/migrations"
	"worktrack/internal/tracker"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Column lists kept in struct field order so sqlx can scan them.
const (
	sessionColumns = "id, user_id, category, start_time, end_time, duration, status"
	breakColumns   = "id, session_id, user_id, start_time, end_time, duration, reason"
	noteColumns    = "id, user_id, session_id, category, content, created_at"
)

// SQLiteDatabase implements tracker.Store on SQLite.
//
// Times are stored in UTC using the driver's fixed layout so that range
// comparisons on the text columns order correctly.
type SQLiteDatabase struct {
	db   *sqlx.DB
	path string
}

// NewSQLiteDatabase opens a SQLite database at path (or MemoryPath).
// The schema is not touched; call MigrateUp or CheckMigrations.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing connection opened with OpenConnection.
func NewSQLiteDatabaseFromDB(db *sqlx.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection pool.
//
// Foreign keys and a busy timeout are set through the DSN so every pooled
// connection gets them. Transactions start with BEGIN IMMEDIATE: the write
// lock is taken before the precondition read, so two check-then-insert
// transactions cannot interleave.
func OpenConnection(path string) (*sqlx.DB, error) {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", "5000")
	params.Set("_txlock", "immediate")
	if path != MemoryPath {
		params.Set("_journal_mode", "WAL")
	}

	db, err := sqlx.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == MemoryPath {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// User operations

func (s *SQLiteDatabase) UpsertUser(ctx context.Context, user *tracker.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name, registered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name`,
		user.ID, user.Username, user.FirstName, user.LastName, user.RegisteredAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting user %d: %w", user.ID, err)
	}
	return nil
}

func (s *SQLiteDatabase) FindUser(ctx context.Context, userID int64) (*tracker.User, error) {
	var u tracker.User
	err := s.db.GetContext(ctx, &u, `
		SELECT user_id, username, first_name, last_name, registered_at
		FROM users WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding user %d: %w", userID, err)
	}
	return &u, nil
}

func (s *SQLiteDatabase) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, "SELECT user_id FROM users ORDER BY user_id"); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return ids, nil
}

// ensureUser creates a bare user row on first contact.
func ensureUser(ctx context.Context, tx *sqlx.Tx, userID int64, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (user_id, registered_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO NOTHING`, userID, now.UTC())
	if err != nil {
		return fmt.Errorf("ensuring user %d: %w", userID, err)
	}
	return nil
}

// Session lifecycle

func (s *SQLiteDatabase) StartSession(ctx context.Context, session *tracker.Session) (*tracker.Session, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureUser(ctx, tx, session.UserID, session.StartTime); err != nil {
		return nil, err
	}

	existing, err := findSessionByStatus(ctx, tx, session.UserID, tracker.StatusActive, tracker.StatusPaused)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, category, start_time, status)
		VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Category, session.StartTime.UTC(), session.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return nil, nil
}

func (s *SQLiteDatabase) PauseSession(ctx context.Context, userID int64, brk *tracker.Break) (*tracker.Session, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	session, err := findSessionByStatus(ctx, tx, userID, tracker.StatusActive)
	if err != nil || session == nil {
		return nil, err
	}

	if err := setSessionStatus(ctx, tx, session.ID, tracker.StatusPaused); err != nil {
		return nil, err
	}

	brk.SessionID = session.ID
	_, err = tx.ExecContext(ctx, `
		INSERT INTO breaks (id, session_id, user_id, start_time, reason)
		VALUES (?, ?, ?, ?, ?)`,
		brk.ID, brk.SessionID, brk.UserID, brk.StartTime.UTC(), brk.Reason,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting break: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	session.Status = tracker.StatusPaused
	return session, nil
}

func (s *SQLiteDatabase) ResumeSession(ctx context.Context, userID int64, now time.Time) (*tracker.Session, *tracker.Break, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	session, err := findSessionByStatus(ctx, tx, userID, tracker.StatusPaused)
	if err != nil || session == nil {
		return nil, nil, err
	}

	if err := setSessionStatus(ctx, tx, session.ID, tracker.StatusActive); err != nil {
		return nil, nil, err
	}

	brk, err := closeOpenBreak(ctx, tx, session.ID, now)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing transaction: %w", err)
	}

	session.Status = tracker.StatusActive
	return session, brk, nil
}

func (s *SQLiteDatabase) EndSession(ctx context.Context, userID int64, now time.Time) (*tracker.Session, *tracker.Break, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	session, err := findSessionByStatus(ctx, tx, userID, tracker.StatusActive, tracker.StatusPaused)
	if err != nil || session == nil {
		return nil, nil, err
	}

	duration := tracker.ElapsedSeconds(session.StartTime, now)
	_, err = tx.ExecContext(ctx, `
		UPDATE sessions SET end_time = ?, duration = ?, status = ?
		WHERE id = ?`,
		now.UTC(), duration, tracker.StatusCompleted, session.ID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("completing session %s: %w", session.ID, err)
	}

	brk, err := closeOpenBreak(ctx, tx, session.ID, now)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing transaction: %w", err)
	}

	end := now
	session.EndTime = &end
	session.Duration = &duration
	session.Status = tracker.StatusCompleted
	return session, brk, nil
}

func (s *SQLiteDatabase) FindOpenSession(ctx context.Context, userID int64) (*tracker.Session, error) {
	return findSessionByStatus(ctx, s.db, userID, tracker.StatusActive, tracker.StatusPaused)
}

func (s *SQLiteDatabase) FindSession(ctx context.Context, sessionID string) (*tracker.Session, error) {
	var session tracker.Session
	err := s.db.GetContext(ctx, &session, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding session %s: %w", sessionID, err)
	}
	return &session, nil
}

func (s *SQLiteDatabase) FindSessionsOverlapping(ctx context.Context, userID int64, from, to time.Time) ([]*tracker.Session, error) {
	from, to = from.UTC(), to.UTC()
	var sessions []*tracker.Session
	err := s.db.SelectContext(ctx, &sessions, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ?
		AND (
			(start_time BETWEEN ? AND ?) OR
			(end_time BETWEEN ? AND ?) OR
			(start_time <= ? AND (end_time >= ? OR end_time IS NULL))
		)
		ORDER BY start_time ASC`,
		userID, from, to, from, to, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("finding sessions overlapping window: %w", err)
	}
	return sessions, nil
}

func (s *SQLiteDatabase) FindSessionsStartedBetween(ctx context.Context, userID int64, from, to time.Time) ([]*tracker.Session, error) {
	var sessions []*tracker.Session
	err := s.db.SelectContext(ctx, &sessions, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND start_time BETWEEN ? AND ?
		ORDER BY start_time ASC`,
		userID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("finding sessions started in window: %w", err)
	}
	return sessions, nil
}

func (s *SQLiteDatabase) FindOpenSessionsStartedBefore(ctx context.Context, cutoff time.Time) ([]*tracker.Session, error) {
	var sessions []*tracker.Session
	err := s.db.SelectContext(ctx, &sessions, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE status IN (?, ?) AND start_time < ?
		ORDER BY start_time ASC`,
		tracker.StatusActive, tracker.StatusPaused, cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("finding stale open sessions: %w", err)
	}
	return sessions, nil
}

// findSessionByStatus returns the user's session in one of statuses.
// The partial unique index guarantees at most one open session.
func findSessionByStatus(ctx context.Context, q sqlx.QueryerContext, userID int64, statuses ...tracker.SessionStatus) (*tracker.Session, error) {
	query, args, err := sqlx.In(
		"SELECT "+sessionColumns+" FROM sessions WHERE user_id = ? AND status IN (?) ORDER BY start_time DESC LIMIT 1",
		userID, statuses,
	)
	if err != nil {
		return nil, fmt.Errorf("building session query: %w", err)
	}

	var session tracker.Session
	if err := sqlx.GetContext(ctx, q, &session, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding session for user %d: %w", userID, err)
	}
	return &session, nil
}

func setSessionStatus(ctx context.Context, tx *sqlx.Tx, sessionID string, status tracker.SessionStatus) error {
	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET status = ? WHERE id = ?", status, sessionID); err != nil {
		return fmt.Errorf("updating session %s status: %w", sessionID, err)
	}
	return nil
}

// closeOpenBreak closes the session's open break at now. Returns nil if the
// session has no open break.
func closeOpenBreak(ctx context.Context, tx *sqlx.Tx, sessionID string, now time.Time) (*tracker.Break, error) {
	var brk tracker.Break
	err := tx.GetContext(ctx, &brk, `
		SELECT `+breakColumns+` FROM breaks
		WHERE session_id = ? AND end_time IS NULL
		ORDER BY start_time DESC LIMIT 1`, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding open break: %w", err)
	}

	duration := tracker.ElapsedSeconds(brk.StartTime, now)
	_, err = tx.ExecContext(ctx,
		"UPDATE breaks SET end_time = ?, duration = ? WHERE id = ?",
		now.UTC(), duration, brk.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("closing break %s: %w", brk.ID, err)
	}

	end := now
	brk.EndTime = &end
	brk.Duration = &duration
	return &brk, nil
}

// Break operations

func (s *SQLiteDatabase) FindBreaksForSession(ctx context.Context, sessionID string) ([]*tracker.Break, error) {
	var breaks []*tracker.Break
	err := s.db.SelectContext(ctx, &breaks,
		"SELECT "+breakColumns+" FROM breaks WHERE session_id = ? ORDER BY start_time ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("finding breaks for session %s: %w", sessionID, err)
	}
	return breaks, nil
}

func (s *SQLiteDatabase) FindBreaksForSessions(ctx context.Context, sessionIDs []string) ([]*tracker.Break, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		"SELECT "+breakColumns+" FROM breaks WHERE session_id IN (?) ORDER BY start_time ASC", sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("building breaks query: %w", err)
	}

	var breaks []*tracker.Break
	if err := s.db.SelectContext(ctx, &breaks, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("finding breaks for %d sessions: %w", len(sessionIDs), err)
	}
	return breaks, nil
}

// Note operations

func (s *SQLiteDatabase) CreateNote(ctx context.Context, note *tracker.Note) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureUser(ctx, tx, note.UserID, note.CreatedAt); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, user_id, session_id, category, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		note.ID, note.UserID, note.SessionID, note.Category, note.Content, note.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindNotesForUser(ctx context.Context, userID int64, limit int) ([]*tracker.Note, error) {
	var notes []*tracker.Note
	err := s.db.SelectContext(ctx, &notes,
		"SELECT "+noteColumns+" FROM notes WHERE user_id = ? ORDER BY created_at DESC LIMIT ?", userID, limit)
	if err != nil {
		return nil, fmt.Errorf("finding notes for user %d: %w", userID, err)
	}
	return notes, nil
}

func (s *SQLiteDatabase) FindNotesForSession(ctx context.Context, sessionID string) ([]*tracker.Note, error) {
	var notes []*tracker.Note
	err := s.db.SelectContext(ctx, &notes,
		"SELECT "+noteColumns+" FROM notes WHERE session_id = ? ORDER BY created_at ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("finding notes for session %s: %w", sessionID, err)
	}
	return notes, nil
}

// Reminder state

// settingsRow is the flat storage form of tracker.ReminderSettings.
type settingsRow struct {
	UserID           int64 `db:"user_id"`
	WorkEnabled      bool  `db:"work_enabled"`
	WorkMinutes      int   `db:"work_minutes"`
	BreakEnabled     bool  `db:"break_enabled"`
	BreakMinutes     int   `db:"break_minutes"`
	LongBreakEnabled bool  `db:"long_break_enabled"`
	LongBreakMinutes int   `db:"long_break_minutes"`
	DailyGoalEnabled bool  `db:"daily_goal_enabled"`
	DailyGoalMinutes int   `db:"daily_goal_minutes"`
}

func (r settingsRow) settings() *tracker.ReminderSettings {
	return &tracker.ReminderSettings{
		UserID:    r.UserID,
		Work:      tracker.IntervalSetting{Enabled: r.WorkEnabled, Minutes: r.WorkMinutes},
		Break:     tracker.IntervalSetting{Enabled: r.BreakEnabled, Minutes: r.BreakMinutes},
		LongBreak: tracker.IntervalSetting{Enabled: r.LongBreakEnabled, Minutes: r.LongBreakMinutes},
		DailyGoal: tracker.IntervalSetting{Enabled: r.DailyGoalEnabled, Minutes: r.DailyGoalMinutes},
	}
}

func (s *SQLiteDatabase) GetReminderSettings(ctx context.Context, userID int64) (*tracker.ReminderSettings, error) {
	var row settingsRow
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, work_enabled, work_minutes, break_enabled, break_minutes,
			long_break_enabled, long_break_minutes, daily_goal_enabled, daily_goal_minutes
		FROM reminder_settings WHERE user_id = ?`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding reminder settings for user %d: %w", userID, err)
	}
	return row.settings(), nil
}

func (s *SQLiteDatabase) SaveReminderSettings(ctx context.Context, settings *tracker.ReminderSettings) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := ensureUser(ctx, tx, settings.UserID, time.Now()); err != nil {
		return err
	}

	row := settingsRow{
		UserID:           settings.UserID,
		WorkEnabled:      settings.Work.Enabled,
		WorkMinutes:      settings.Work.Minutes,
		BreakEnabled:     settings.Break.Enabled,
		BreakMinutes:     settings.Break.Minutes,
		LongBreakEnabled: settings.LongBreak.Enabled,
		LongBreakMinutes: settings.LongBreak.Minutes,
		DailyGoalEnabled: settings.DailyGoal.Enabled,
		DailyGoalMinutes: settings.DailyGoal.Minutes,
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO reminder_settings (
			user_id, work_enabled, work_minutes, break_enabled, break_minutes,
			long_break_enabled, long_break_minutes, daily_goal_enabled, daily_goal_minutes
		) VALUES (
			:user_id, :work_enabled, :work_minutes, :break_enabled, :break_minutes,
			:long_break_enabled, :long_break_minutes, :daily_goal_enabled, :daily_goal_minutes
		)
		ON CONFLICT(user_id) DO UPDATE SET
			work_enabled = excluded.work_enabled,
			work_minutes = excluded.work_minutes,
			break_enabled = excluded.break_enabled,
			break_minutes = excluded.break_minutes,
			long_break_enabled = excluded.long_break_enabled,
			long_break_minutes = excluded.long_break_minutes,
			daily_goal_enabled = excluded.daily_goal_enabled,
			daily_goal_minutes = excluded.daily_goal_minutes`, row)
	if err != nil {
		return fmt.Errorf("saving reminder settings for user %d: %w", settings.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) LastReminderSent(ctx context.Context, userID int64, kind tracker.ReminderKind) (time.Time, error) {
	return lastReminderSent(ctx, s.db, userID, kind)
}

// lastReminderSent selects the column itself rather than MAX(sent_at) so the
// driver still sees its DATETIME type and returns a time.Time.
func lastReminderSent(ctx context.Context, q sqlx.QueryerContext, userID int64, kind tracker.ReminderKind) (time.Time, error) {
	var sentAt time.Time
	err := sqlx.GetContext(ctx, q, &sentAt, `
		SELECT sent_at FROM sent_reminders
		WHERE user_id = ? AND kind = ?
		ORDER BY sent_at DESC LIMIT 1`, userID, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("finding last %s reminder for user %d: %w", kind, userID, err)
	}
	return sentAt, nil
}

func (s *SQLiteDatabase) RecordReminder(ctx context.Context, reminder *tracker.SentReminder, debounce time.Duration) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	last, err := lastReminderSent(ctx, tx, reminder.UserID, reminder.Kind)
	if err != nil {
		return false, err
	}
	if !last.IsZero() && reminder.SentAt.Sub(last) < debounce {
		return false, nil
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO sent_reminders (user_id, kind, session_id, sent_at)
		VALUES (?, ?, ?, ?)`,
		reminder.UserID, reminder.Kind, reminder.SessionID, reminder.SentAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting sent reminder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("reading sent reminder id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing transaction: %w", err)
	}
	reminder.ID = id
	return true, nil
}

// Maintenance

// Path returns the database file path (or MemoryPath).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// MigrateUp applies pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db.DB)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db.DB)
}

// MigrationStatus reports applied and latest schema versions.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.GetStatus(s.db.DB)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteDatabase implements tracker.Store.
var _ tracker.Store = (*SQLiteDatabase)(nil)
