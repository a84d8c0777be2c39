package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"worktrack/internal/archive"
	"worktrack/internal/category"
	"worktrack/internal/config"
	"worktrack/internal/database"
	"worktrack/internal/database/migrations"
	"worktrack/internal/encryption"
	"worktrack/internal/tracker"
	"worktrack/internal/vault"
)

// DefaultNoteCategory is used for notes written outside a session without a category.
const DefaultNoteCategory = "Other"

// Option configures a WorkTrackApp.
type Option func(*options)

type options struct {
	console io.Writer
	level   slog.Level
	clock   tracker.Clock
	idgen   tracker.IDGenerator
}

// WithConsole mirrors log output to w. Logs go to the log file only by default.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithLogLevel sets the minimum level written to the log.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithClock replaces the wall clock, for tests.
func WithClock(c tracker.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator replaces the UUID generator, for tests.
func WithIDGenerator(g tracker.IDGenerator) Option {
	return func(o *options) { o.idgen = g }
}

// WorkTrackApp is the application layer between the CLI and the tracker core.
// It constructs all dependencies from config and manages the database and
// log file lifecycle on Close.
type WorkTrackApp struct {
	cfg        *config.Config
	db         *database.SQLiteDatabase
	tracker    *tracker.Tracker
	aggregator *tracker.Aggregator
	reminders  *tracker.Reminders
	categories *category.FileSource
	clock      tracker.Clock
	logger     tracker.Logger
	op         *Operation
	logFile    *os.File
}

// NewWorkTrackApp creates a fully wired WorkTrackApp from the given config.
// operation names the CLI command being run and tags its log lines.
// The caller must call Close when done.
func NewWorkTrackApp(cfg *config.Config, operation string, opts ...Option) (*WorkTrackApp, error) {
	o := options{level: slog.LevelInfo, clock: tracker.RealClock{}, idgen: tracker.UUIDGenerator{}}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	op := NewOperation(operation, o.clock.Now())
	slogger, logFile, err := newLogger(cfg.LogDir, op.ID, o.level, o.console)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	// A memory store starts empty on every run.
	if db.Path() == database.MemoryPath {
		err = db.MigrateUp()
	} else {
		err = db.CheckMigrations()
	}
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	cats, err := category.NewFileSource(cfg.Categories.Path, o.clock)
	if err != nil {
		logger.Warn("category file not loaded, using defaults", "path", cfg.Categories.Path, "error", err)
	}

	tr := tracker.NewTracker(db, logger, o.clock, o.idgen, tracker.WithStoreTimeout(cfg.StoreTimeout()))
	agg := tracker.NewAggregator(db, loc, cfg.StoreTimeout())

	return &WorkTrackApp{
		cfg:        cfg,
		db:         db,
		tracker:    tr,
		aggregator: agg,
		reminders:  tracker.NewReminders(tr, agg),
		categories: cats,
		clock:      o.clock,
		logger:     logger,
		op:         op,
		logFile:    logFile,
	}, nil
}

// Tracker exposes the session state machine.
func (a *WorkTrackApp) Tracker() *tracker.Tracker { return a.tracker }

// Aggregator exposes the statistics engine.
func (a *WorkTrackApp) Aggregator() *tracker.Aggregator { return a.aggregator }

// Now returns the current time in the configured timezone.
func (a *WorkTrackApp) Now() time.Time {
	return a.clock.Now().In(a.aggregator.Location())
}

// Categories returns the configured category list.
func (a *WorkTrackApp) Categories() []string {
	return a.categories.Categories()
}

// Start opens a session. Categories outside the configured list are accepted
// and logged.
func (a *WorkTrackApp) Start(ctx context.Context, userID int64, cat string) (tracker.Transition, error) {
	if cat != "" && !slices.Contains(a.categories.Categories(), cat) {
		a.logger.Warn("starting session with unlisted category", "user", userID, "category", cat)
	}
	return a.record(a.tracker.Start(ctx, userID, cat))
}

func (a *WorkTrackApp) Pause(ctx context.Context, userID int64, reason string) (tracker.Transition, error) {
	return a.record(a.tracker.Pause(ctx, userID, reason))
}

func (a *WorkTrackApp) Resume(ctx context.Context, userID int64) (tracker.Transition, error) {
	return a.record(a.tracker.Resume(ctx, userID))
}

func (a *WorkTrackApp) End(ctx context.Context, userID int64) (tracker.Transition, error) {
	return a.record(a.tracker.End(ctx, userID))
}

func (a *WorkTrackApp) record(tr tracker.Transition, err error) (tracker.Transition, error) {
	a.op.Fail(err)
	return tr, err
}

// SessionStatus is the in-flight session of a user with its derived numbers.
type SessionStatus struct {
	Session *tracker.Session
	Elapsed int64
	Breaks  []*tracker.Break
	OnBreak *tracker.Break
	Notes   []*tracker.Note
	Today   tracker.DayStats
}

// Status reports the user's in-flight session, if any, and today's totals.
func (a *WorkTrackApp) Status(ctx context.Context, userID int64) (*SessionStatus, error) {
	st := &SessionStatus{}

	session, err := a.tracker.ActiveOrPaused(ctx, userID)
	if err != nil {
		return nil, err
	}
	if session != nil {
		st.Session = session
		st.Elapsed = a.tracker.Elapsed(session)
		if st.Breaks, err = a.tracker.SessionBreaks(ctx, session.ID); err != nil {
			return nil, err
		}
		for _, b := range st.Breaks {
			if b.Open() {
				st.OnBreak = b
			}
		}
		if st.Notes, err = a.tracker.SessionNotes(ctx, session.ID); err != nil {
			return nil, err
		}
	}

	if st.Today, err = a.aggregator.DailyStats(ctx, userID, a.Now()); err != nil {
		return nil, err
	}
	return st, nil
}

// UpdateSettings applies a partial change to the user's reminder settings.
func (a *WorkTrackApp) UpdateSettings(ctx context.Context, userID int64, upd tracker.SettingsUpdate) (tracker.ReminderSettings, error) {
	s, err := a.tracker.UpdateSettings(ctx, userID, upd)
	a.op.Fail(err)
	return s, err
}

// AddNote stores a note. It is attached to the in-flight session when there
// is one, and takes that session's category unless cat is given.
func (a *WorkTrackApp) AddNote(ctx context.Context, userID int64, content, cat string) (*tracker.Note, error) {
	session, err := a.tracker.ActiveOrPaused(ctx, userID)
	if err != nil {
		a.op.Fail(err)
		return nil, err
	}

	in := tracker.NoteInput{Content: content, Category: cat}
	if session != nil {
		in.SessionID = session.ID
		if in.Category == "" {
			in.Category = session.Category
		}
	}
	if in.Category == "" {
		in.Category = DefaultNoteCategory
	}

	note, err := a.tracker.AddNote(ctx, userID, in)
	a.op.Fail(err)
	return note, err
}

// Repair ends sessions left open for longer than maxAge.
func (a *WorkTrackApp) Repair(ctx context.Context, maxAge time.Duration) ([]*tracker.Session, error) {
	repaired, err := a.tracker.RepairOpenSessions(ctx, a.clock.Now().Add(-maxAge))
	a.op.Fail(err)
	return repaired, err
}

// Serve runs the reminder scheduler and the category monitor until ctx is
// cancelled or one of them fails. Reminders are delivered to out.
func (a *WorkTrackApp) Serve(ctx context.Context, out io.Writer) error {
	notifier := NewLogNotifier(out, a.tracker.Settings, a.logger)
	scheduler := tracker.NewScheduler(a.tracker, a.reminders, notifier, a.cfg.TickInterval())

	a.logger.Info("serving", "host", a.cfg.HostID, "db", a.db.Path(), "categories", a.cfg.Categories.Path)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		return category.Monitor(gctx, a.categories, a.cfg.CategoryCheckInterval(), a.logger)
	})

	err := g.Wait()
	a.op.Fail(err)
	return err
}

// archiveParts builds the encryptor and vault from the archive config.
func (a *WorkTrackApp) archiveParts(ctx context.Context) (archive.Encryptor, archive.Vault, error) {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Archive)
	if err != nil {
		return nil, nil, fmt.Errorf("creating encryptor: %w", err)
	}
	v, err := vault.NewVaultFromConfig(ctx, a.cfg.Archive.Vault)
	if err != nil {
		return nil, nil, fmt.Errorf("creating vault: %w", err)
	}
	return enc, v, nil
}

func (a *WorkTrackApp) newArchiver(ctx context.Context) (*archive.Archiver, error) {
	enc, v, err := a.archiveParts(ctx)
	if err != nil {
		return nil, err
	}
	return archive.NewArchiver(a.cfg.HostID, a.db, enc, v, a.clock, a.logger), nil
}

// SetupArchive generates the archive key pair protected by passphrase and
// checks that the vault is reachable.
func (a *WorkTrackApp) SetupArchive(ctx context.Context, passphrase string) error {
	if passphrase == "" {
		return errors.New("passphrase must not be empty")
	}
	enc, v, err := a.archiveParts(ctx)
	if err != nil {
		return err
	}
	if err := v.ValidateSetup(ctx); err != nil {
		a.op.Fail(err)
		return fmt.Errorf("validating vault %s: %w", v.Name(), err)
	}
	if err := enc.Setup(passphrase); err != nil {
		a.op.Fail(err)
		return fmt.Errorf("setting up archive keys: %w", err)
	}
	a.logger.Info("archive keys created", "public_key", a.cfg.Archive.PublicKeyPath, "vault", v.Name())
	return nil
}

// CreateArchive uploads an encrypted snapshot of the store.
func (a *WorkTrackApp) CreateArchive(ctx context.Context) (archive.Entry, error) {
	arch, err := a.newArchiver(ctx)
	if err != nil {
		return archive.Entry{}, err
	}
	entry, err := arch.Create(ctx)
	a.op.Fail(err)
	return entry, err
}

// ListArchives returns this host's archives, oldest first.
func (a *WorkTrackApp) ListArchives(ctx context.Context) ([]archive.Entry, error) {
	arch, err := a.newArchiver(ctx)
	if err != nil {
		return nil, err
	}
	return arch.List(ctx)
}

// RestoreArchive decrypts an archive into destPath. An empty key restores
// the latest one.
func (a *WorkTrackApp) RestoreArchive(ctx context.Context, key, passphrase, destPath string) (archive.Entry, error) {
	arch, err := a.newArchiver(ctx)
	if err != nil {
		return archive.Entry{}, err
	}
	entry, err := arch.Restore(ctx, key, passphrase, destPath)
	a.op.Fail(err)
	return entry, err
}

// Close logs the outcome of the operation and releases the database and log file.
func (a *WorkTrackApp) Close() error {
	var firstErr error

	elapsed := a.clock.Now().Sub(a.op.StartedAt)
	if a.op.Failed() {
		a.logger.Error("operation failed", "op", a.op.Name, "elapsed", elapsed.String(), "error", a.op.Err)
	} else {
		a.logger.Debug("operation finished", "op", a.op.Name, "elapsed", elapsed.String())
	}

	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// MigrateDatabase applies pending migrations to the configured store.
// It is separate from NewWorkTrackApp, which refuses an outdated schema.
func MigrateDatabase(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.MigrateUp(); err != nil {
		return migrations.Status{}, err
	}
	return db.MigrationStatus()
}

// DatabaseStatus reports the schema version of the configured store.
func DatabaseStatus(cfg *config.Config) (string, migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return "", migrations.Status{}, fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	status, err := db.MigrationStatus()
	return db.Path(), status, err
}

// DatabaseSchema returns the CREATE statements of the configured store.
func DatabaseSchema(ctx context.Context, cfg *config.Config) (string, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.HostID)
	if err != nil {
		return "", fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	return db.Schema(ctx)
}
