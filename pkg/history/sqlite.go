package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	histerrors "github.com/stormalone/reedline/pkg/errors"
)

// DefaultMmapSize is the memory-map size applied when none is configured.
const DefaultMmapSize int64 = 1_000_000_000

// DefaultBusyTimeout is how long a write waits on another process's lock.
const DefaultBusyTimeout = 5 * time.Second

// InMemoryPath is reported by Path for stores opened with NewInMemory.
const InMemoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS history (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	command_line    TEXT NOT NULL,
	start_timestamp INTEGER,
	session_id      INTEGER,
	hostname        TEXT,
	cwd             TEXT,
	duration_ms     INTEGER,
	exit_status     INTEGER,
	more_info       TEXT
) STRICT;
CREATE INDEX IF NOT EXISTS idx_history_time ON history(start_timestamp);
CREATE INDEX IF NOT EXISTS idx_history_cwd ON history(cwd);
CREATE INDEX IF NOT EXISTS idx_history_exit_status ON history(exit_status);
CREATE INDEX IF NOT EXISTS idx_history_cmd ON history(command_line);
CREATE INDEX IF NOT EXISTS idx_history_session ON history(session_id);

CREATE TABLE IF NOT EXISTS history_session_seq (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	last_id INTEGER NOT NULL
) STRICT;
`

const upsertItem = `INSERT INTO history
	(id, start_timestamp, command_line, session_id, hostname, cwd, duration_ms, exit_status, more_info)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	start_timestamp = excluded.start_timestamp,
	command_line = excluded.command_line,
	session_id = excluded.session_id,
	hostname = excluded.hostname,
	cwd = excluded.cwd,
	duration_ms = excluded.duration_ms,
	exit_status = excluded.exit_status,
	more_info = excluded.more_info
RETURNING id`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Option configures a SQLiteBacked store.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	mmapSize    int64
	busyTimeout time.Duration
}

// WithLogger sets the logger used for open/schema events and debug query
// tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMmapSize sets the mmap_size pragma in bytes.
func WithMmapSize(n int64) Option {
	return func(o *options) {
		o.mmapSize = n
	}
}

// WithBusyTimeout sets how long SQLite waits on a lock held by another
// process before reporting SQLITE_BUSY.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		o.busyTimeout = d
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:      slog.Default(),
		mmapSize:    DefaultMmapSize,
		busyTimeout: DefaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SQLiteBacked is a History stored in a SQLite database. It owns a single
// connection for its whole lifetime.
type SQLiteBacked[T any] struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteBacked opens or creates a history database at path, creating
// missing parent directories.
func NewSQLiteBacked[T any](path string, opts ...Option) (*SQLiteBacked[T], error) {
	o := newOptions(opts)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, histerrors.NewIOError("open", "could not create database directory", err)
	}

	return open[T](path, dsn(path, o), o)
}

// NewInMemory opens an ephemeral history that is lost on Close.
func NewInMemory[T any](opts ...Option) (*SQLiteBacked[T], error) {
	o := newOptions(opts)
	return open[T](InMemoryPath, dsn(InMemoryPath, o), o)
}

func dsn(name string, o options) string {
	params := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", o.busyTimeout.Milliseconds()),
		"_pragma=journal_mode(wal)",
		"_pragma=synchronous(normal)",
		fmt.Sprintf("_pragma=mmap_size(%d)", o.mmapSize),
		"_pragma=foreign_keys(on)",
		"_pragma=case_sensitive_like(on)",
		"_txlock=immediate",
	}
	return name + "?" + strings.Join(params, "&")
}

func open[T any](path, dataSource string, o options) (*SQLiteBacked[T], error) {
	db, err := sql.Open("sqlite", dataSource)
	if err != nil {
		return nil, histerrors.NewIOError("open", "could not open database "+path, err)
	}

	// One connection: an in-memory database lives and dies with it, and the
	// store never needs concurrent access to itself.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, histerrors.NewIOError("open", "could not open database "+path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, backendError("open", "could not create schema", err)
	}

	o.logger.Debug("opened history database", "path", path, "mmap_size", o.mmapSize, "busy_timeout", o.busyTimeout)

	return &SQLiteBacked[T]{db: db, path: path, logger: o.logger}, nil
}

// Path returns the database location, or InMemoryPath.
func (h *SQLiteBacked[T]) Path() string {
	return h.path
}

// Close releases the database connection.
func (h *SQLiteBacked[T]) Close() error {
	return h.db.Close()
}

// Save implements History.
func (h *SQLiteBacked[T]) Save(ctx context.Context, item Item[T]) (Item[T], error) {
	return h.save(ctx, h.db, item)
}

func (h *SQLiteBacked[T]) save(ctx context.Context, q querier, item Item[T]) (Item[T], error) {
	args, err := itemArgs(item)
	if err != nil {
		return item, err
	}

	h.debugQuery(ctx, upsertItem, args)

	var id int64
	if err := q.QueryRowContext(ctx, upsertItem, args...).Scan(&id); err != nil {
		return item, backendError("save", "could not write item", err)
	}

	item.ID = Ptr(newItemID(id))
	return item, nil
}

// Load implements History.
func (h *SQLiteBacked[T]) Load(ctx context.Context, id ItemID) (Item[T], error) {
	return h.load(ctx, h.db, id)
}

func (h *SQLiteBacked[T]) load(ctx context.Context, q querier, id ItemID) (Item[T], error) {
	query := "SELECT " + historyColumns + " FROM history WHERE id = ?"
	args := []any{intValue(id.v)}
	h.debugQuery(ctx, query, args)

	item, err := scanItem[T](q.QueryRowContext(ctx, query, args...))
	switch {
	case err == nil:
		return item, nil
	case histerrors.Is(err, sql.ErrNoRows):
		return item, histerrors.NewNotFoundError("load", "no item with id "+id.String())
	case histerrors.KindOf(err) != 0:
		return item, err
	default:
		return item, backendError("load", "could not read item "+id.String(), err)
	}
}

// Count implements History.
func (h *SQLiteBacked[T]) Count(ctx context.Context, q SearchQuery) (int64, error) {
	query, args := buildQuery(q, "COUNT(*)", true)
	h.debugQuery(ctx, query, args)

	var n int64
	if err := h.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, backendError("count", "could not count items", err)
	}
	return n, nil
}

// Search implements History.
func (h *SQLiteBacked[T]) Search(ctx context.Context, q SearchQuery) ([]Item[T], error) {
	query, args := buildQuery(q, historyColumns, false)
	h.debugQuery(ctx, query, args)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, backendError("search", "could not query items", err)
	}
	defer rows.Close()

	items := []Item[T]{}
	for rows.Next() {
		item, err := scanItem[T](rows)
		if err != nil {
			if histerrors.KindOf(err) != 0 {
				return nil, err
			}
			return nil, backendError("search", "could not read item row", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, backendError("search", "could not iterate item rows", err)
	}

	return items, nil
}

// Update implements History. The read and the write run in one transaction,
// so concurrent updaters cannot lose each other's writes.
func (h *SQLiteBacked[T]) Update(ctx context.Context, id ItemID, fn func(Item[T]) Item[T]) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return backendError("update", "could not begin transaction", err)
	}
	defer tx.Rollback()

	item, err := h.load(ctx, tx, id)
	if err != nil {
		return err
	}

	updated := fn(item)
	updated.ID = &id

	if _, err := h.save(ctx, tx, updated); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return backendError("update", "could not commit item "+id.String(), err)
	}
	return nil
}

// Delete implements History.
func (h *SQLiteBacked[T]) Delete(ctx context.Context, id ItemID) error {
	query := "DELETE FROM history WHERE id = ?"
	args := []any{intValue(id.v)}
	h.debugQuery(ctx, query, args)

	res, err := h.db.ExecContext(ctx, query, args...)
	if err != nil {
		return backendError("delete", "could not delete item "+id.String(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return backendError("delete", "could not delete item "+id.String(), err)
	}
	if n == 0 {
		return histerrors.NewNotFoundError("delete", "no item with id "+id.String())
	}
	return nil
}

// NewSessionID implements History. The allocation is recorded in
// history_session_seq inside a write transaction, so two processes never
// receive the same id even before either has saved an item with it.
func (h *SQLiteBacked[T]) NewSessionID(ctx context.Context) (SessionID, error) {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return SessionID{}, backendError("new session", "could not begin transaction", err)
	}
	defer tx.Rollback()

	last, err := lastSessionID(ctx, tx)
	if err != nil {
		return SessionID{}, backendError("new session", "could not read session ids", err)
	}
	next := last + 1

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history_session_seq (id, last_id) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET last_id = excluded.last_id`,
		intValue(next))
	if err != nil {
		return SessionID{}, backendError("new session", "could not record session id", err)
	}

	if err := tx.Commit(); err != nil {
		return SessionID{}, backendError("new session", "could not commit session id", err)
	}

	h.logger.Debug("allocated session id", "session_id", next)
	return newSessionID(next), nil
}

// lastSessionID returns the highest session id either used by an item or
// handed out by NewSessionID, or 0.
func lastSessionID(ctx context.Context, q querier) (int64, error) {
	var used, allocated int64
	if err := q.QueryRowContext(ctx, "SELECT COALESCE(MAX(session_id), 0) FROM history").Scan(&used); err != nil {
		return 0, err
	}
	if err := q.QueryRowContext(ctx, "SELECT COALESCE(MAX(last_id), 0) FROM history_session_seq").Scan(&allocated); err != nil {
		return 0, err
	}
	return max(used, allocated), nil
}

// Sync implements History by checkpointing the write-ahead log. Every write
// is already committed, so this only moves pages into the main file.
func (h *SQLiteBacked[T]) Sync(ctx context.Context) error {
	var busy, logFrames, checkpointed int64
	err := h.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		return backendError("sync", "could not checkpoint write-ahead log", err)
	}
	h.logger.Debug("checkpointed history database", "log_frames", logFrames, "checkpointed", checkpointed)
	return nil
}

// ResolveItemID returns the handle for a raw id typed by a user, if an item
// with that id exists.
func (h *SQLiteBacked[T]) ResolveItemID(ctx context.Context, raw int64) (ItemID, error) {
	var id int64
	err := h.db.QueryRowContext(ctx, "SELECT id FROM history WHERE id = ?", intValue(raw)).Scan(&id)
	if histerrors.Is(err, sql.ErrNoRows) {
		return ItemID{}, histerrors.NewNotFoundError("resolve", fmt.Sprintf("no item with id %d", raw))
	}
	if err != nil {
		return ItemID{}, backendError("resolve", "could not look up item id", err)
	}
	return newItemID(id), nil
}

// ResolveSessionID returns the handle for a raw session id typed by a user,
// if the store has allocated or seen that id.
func (h *SQLiteBacked[T]) ResolveSessionID(ctx context.Context, raw int64) (SessionID, error) {
	last, err := lastSessionID(ctx, h.db)
	if err != nil {
		return SessionID{}, backendError("resolve", "could not read session ids", err)
	}
	if raw < 1 || raw > last {
		return SessionID{}, histerrors.NewNotFoundError("resolve", fmt.Sprintf("no session with id %d", raw))
	}
	return newSessionID(raw), nil
}

// debugQuery traces a statement and its arguments at debug level.
func (h *SQLiteBacked[T]) debugQuery(ctx context.Context, query string, args []any) {
	if !h.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	h.logger.DebugContext(ctx, "sqlite query", "sql", query, "args", fmt.Sprint(args))
}

// backendError wraps a driver failure, flagging lock contention as retryable.
func backendError(operation, message string, err error) error {
	return histerrors.NewBackendError(operation, message, err).WithRetryable(isBusy(err))
}

func isBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if !histerrors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
