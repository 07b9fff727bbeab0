package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"route-editor/internal/logging"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

//go:embed schema_postgres.sql
var postgresSchema string

// Dialect selects the SQL flavour of the connection
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB wraps the database connection and provides access to repositories
type DB struct {
	conn    *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// OpenSQLite opens (creating if needed) the SQLite database at path. Use
// ":memory:" for a throwaway database.
func OpenSQLite(path string, logger *zap.Logger) (*DB, error) {
	logger = logging.OrNop(logger).Named("database")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	logger.Info("Opening SQLite database", zap.String("path", path))

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection, so the pragmas below and an in-memory database are
	// shared by every query
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	return newDB(conn, DialectSQLite, logger)
}

// OpenPostgres connects to a Postgres database through the pgx driver
func OpenPostgres(databaseURL string, logger *zap.Logger) (*DB, error) {
	logger = logging.OrNop(logger).Named("database")

	conn, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to verify postgres connection: %w", err)
	}
	logger.Info("Connected to Postgres")

	return newDB(conn, DialectPostgres, logger)
}

func newDB(conn *sql.DB, dialect Dialect, logger *zap.Logger) (*DB, error) {
	db := &DB{conn: conn, dialect: dialect, logger: logger}
	if err := db.runMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// Dialect returns the SQL flavour of the connection
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// HealthCheck verifies the database connection is alive
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Archive returns the snapshot archive
func (db *DB) Archive() *Archive {
	return &Archive{db: db}
}

// RouteCache returns the directions cache. Entries older than ttl are
// treated as missing; ttl <= 0 keeps them forever.
func (db *DB) RouteCache(ttl time.Duration) *RouteCache {
	return &RouteCache{db: db, ttl: ttl}
}

// runMigrations executes the schema SQL
func (db *DB) runMigrations() error {
	schema := sqliteSchema
	if db.dialect == DialectPostgres {
		schema = postgresSchema
	}
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders into the connection's dialect
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
