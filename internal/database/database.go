package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// sqliteDriver is go-sqlite3 with lower() folding Unicode like strings.ToLower.
// The built-in lower() only folds ASCII.
const sqliteDriver = "sqlite3_replay"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", foldLower, true)
		},
	})
	sqlx.BindDriver(sqliteDriver, sqlx.QUESTION)
}

// foldLower lower-cases TEXT values and passes everything else through, NULL included.
func foldLower(v any) any {
	switch s := v.(type) {
	case string:
		return strings.ToLower(s)
	case []byte:
		// go-sqlite3 hands NULL over as a nil slice
		if s == nil {
			return nil
		}
		return strings.ToLower(string(s))
	}
	return v
}

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Executor is satisfied by both *sqlx.DB and *sqlx.Tx, so a repository can run
// against the pool or inside a caller's transaction.
type Executor interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	PrepareNamedContext(ctx context.Context, query string) (*sqlx.NamedStmt, error)
	PreparexContext(ctx context.Context, query string) (*sqlx.Stmt, error)
}

// Repositories hands out the per-table repositories over one connection scope.
type Repositories interface {
	Snapshots() SnapshotRepository
	Observations() ObservationRepository
	Aircraft() AircraftRepository
	Airlines() AirlineRepository
}

// DB owns the connection pool and hands out the per-table repositories.
type DB struct {
	db     *sqlx.DB
	driver string
}

// New opens a SQLite database at dbPath.
func New(dbPath string) (*DB, error) {
	return Open(DriverSQLite, dbPath)
}

// Open connects to the store, applies driver tuning and creates the schema if needed.
func Open(driver, dsn string) (*DB, error) {
	var schema, sqlDriver string
	switch driver {
	case DriverSQLite:
		schema, sqlDriver = sqliteSchema, sqliteDriver
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
		schema, sqlDriver = postgresSchema, DriverPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		if err := optimizeSQLite(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to optimize database: %w", err)
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	database := &DB{db: db, driver: driver}

	if err := database.initSchema(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// sqliteDSN adds the per-connection settings that a one-off PRAGMA would only
// apply to a single pooled connection.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000&_foreign_keys=on"
}

// optimizeSQLite applies the journal and cache settings for a single-host store.
func optimizeSQLite(db *sqlx.DB) error {
	// WAL lets the API read while an import is writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// 64MB page cache
	if _, err := db.Exec("PRAGMA cache_size=-64000"); err != nil {
		return fmt.Errorf("failed to set cache size: %w", err)
	}

	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA temp_store=MEMORY"); err != nil {
		return fmt.Errorf("failed to set temp_store: %w", err)
	}

	return nil
}

func (d *DB) initSchema(schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// Driver reports the driver name the store was opened with.
func (d *DB) Driver() string {
	return d.driver
}

// Ping checks that the store is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Transaction runs fn with repositories bound to one transaction, committing
// when fn returns nil and rolling back otherwise.
func (d *DB) Transaction(ctx context.Context, fn func(tx Repositories) error) error {
	return inTx(ctx, d.db, func(q Executor) error {
		return fn(scope{q: q})
	})
}

func (d *DB) Snapshots() SnapshotRepository {
	return scope{q: d.db}.Snapshots()
}

func (d *DB) Observations() ObservationRepository {
	return scope{q: d.db}.Observations()
}

func (d *DB) Aircraft() AircraftRepository {
	return scope{q: d.db}.Aircraft()
}

func (d *DB) Airlines() AirlineRepository {
	return scope{q: d.db}.Airlines()
}

type scope struct {
	q Executor
}

func (s scope) Snapshots() SnapshotRepository { return NewSnapshotRepository(s.q) }
func (s scope) Observations() ObservationRepository { return NewObservationRepository(s.q) }
func (s scope) Aircraft() AircraftRepository { return NewAircraftRepository(s.q) }
func (s scope) Airlines() AirlineRepository { return NewAirlineRepository(s.q) }

// inTx runs fn in a new transaction when q is the pool. When q is already a
// transaction fn joins it and the owner decides whether to commit.
func inTx(ctx context.Context, q Executor, fn func(q Executor) error) error {
	db, ok := q.(*sqlx.DB)
	if !ok {
		return fn(q)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound and wraps everything else.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to query %s: %w", what, err)
}

// likePattern builds a lowercase substring pattern for LIKE ... ESCAPE '\'.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}
