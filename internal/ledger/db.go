package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// pragmas are applied by the driver to every connection it opens.
const pragmas = "?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Defaults for the journal policy.
const (
	DefaultNoteSize  = 1024
	DefaultRetention = 90 * 24 * time.Hour
)

// DB is the outreach and panel-action journal, backed by SQLite.
type DB struct {
	*sql.DB
	Path string

	migrations *goose.Provider
	noteSize   int
	retention  time.Duration
	now        func() time.Time
}

// Option configures a DB.
type Option func(*DB)

// WithNoteSize caps the note stored with each outreach attempt.
// Zero or less keeps DefaultNoteSize.
func WithNoteSize(n int) Option {
	return func(db *DB) {
		if n > 0 {
			db.noteSize = n
		}
	}
}

// WithRetention sets how long journal rows are kept by Prune. Zero keeps
// rows forever.
func WithRetention(d time.Duration) Option {
	return func(db *DB) { db.retention = d }
}

// WithClock replaces the clock used to stamp and prune rows.
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// DefaultPath returns the journal location inside a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "ledger.db")
}

// Open opens (or creates) the journal at path and applies pending migrations.
func Open(path string, opts ...Option) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return open(path, opts)
}

// OpenMemory opens an in-memory journal for testing.
func OpenMemory(opts ...Option) (*DB, error) {
	return open(":memory:", opts)
}

func open(path string, opts []Option) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; this also pins an in-memory database to a
	// single connection.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{
		DB:        sqlDB,
		Path:      path,
		noteSize:  DefaultNoteSize,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	sub, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectSQLite3, db.DB, sub, goose.WithDisableGlobalRegistry(true))
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	db.migrations = p
	return nil
}

// SchemaVersion returns the highest applied migration.
func (db *DB) SchemaVersion() (int, error) {
	v, err := db.migrations.GetDBVersion(context.Background())
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return int(v), nil
}

// Prune deletes outreach attempts and panel actions older than the
// retention window and reports how many rows went.
func (db *DB) Prune() (int64, error) {
	if db.retention <= 0 {
		return 0, nil
	}
	cutoff := db.now().Add(-db.retention).UnixMilli()

	var total int64
	for _, table := range []string{"outreach_attempts", "panel_actions"} {
		res, err := db.Exec("DELETE FROM "+table+" WHERE created_at < ?", cutoff)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
