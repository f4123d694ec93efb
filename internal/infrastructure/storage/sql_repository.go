package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"FeedsImporter/internal/domain"
	"FeedsImporter/internal/ports"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	entitiesTable = "feeds_entities"
	linkageTable  = "feeds_item"
	stateTable    = "feeds_state"
)

// deleteChunk bounds the IN list of a delete; SQLite allows 32766 bind variables and Postgres 65535.
const deleteChunk = 500

// SQLRepository persists records, their linkage and run state in Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	driver  string
	now     func() time.Time
}

var (
	_ ports.EntityStore       = (*SQLRepository)(nil)
	_ ports.EntityFinder      = (*SQLRepository)(nil)
	_ ports.LinkageRepository = (*SQLRepository)(nil)
	_ ports.StateStore        = (*SQLRepository)(nil)
)

// Open connects to the database and makes sure the schema exists.
func Open(ctx context.Context, driverName, dsn string) (*SQLRepository, error) {
	if driverName != DriverPostgres && driverName != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driverName)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driverName == DriverSQLite {
		// in-memory databases live and die with a single connection
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := NewSQLRepository(db, driverName)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLRepository wires an existing sql.DB; driverName selects the SQL dialect.
func NewSQLRepository(db *sql.DB, driverName string) *SQLRepository {
	var placeholder sq.PlaceholderFormat = sq.Question
	if driverName == DriverPostgres {
		placeholder = sq.Dollar
	}
	return &SQLRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
		driver:  driverName,
		now:     time.Now,
	}
}

// Close releases the connection pool.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// Migrate creates the tables if they do not exist yet.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if r.driver == DriverPostgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + entitiesTable + ` (
			id ` + serial + `,
			entity_type TEXT NOT NULL,
			bundle TEXT NOT NULL DEFAULT '',
			fields TEXT NOT NULL DEFAULT '{}',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + linkageTable + ` (
			id ` + serial + `,
			entity_type TEXT NOT NULL,
			entity_id BIGINT NOT NULL,
			processor_id TEXT NOT NULL,
			origin_id TEXT NOT NULL,
			fingerprint TEXT NOT NULL DEFAULT '',
			imported_at BIGINT NOT NULL DEFAULT 0,
			url TEXT NOT NULL DEFAULT '',
			guid TEXT NOT NULL DEFAULT '',
			UNIQUE (entity_type, entity_id)
		)`,
		`CREATE INDEX IF NOT EXISTS feeds_item_lookup_guid ON ` + linkageTable + ` (processor_id, origin_id, entity_type, guid)`,
		`CREATE INDEX IF NOT EXISTS feeds_item_lookup_url ON ` + linkageTable + ` (processor_id, origin_id, entity_type, url)`,
		`CREATE TABLE IF NOT EXISTS ` + stateTable + ` (
			state_key TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	return nil
}

// deleteByIDs removes the rows of table whose column is in ids, one chunk per statement, in a single transaction.
func (r *SQLRepository) deleteByIDs(ctx context.Context, table, column, entityType string, ids []int64, op string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin "+op, err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(ids); start += deleteChunk {
		end := min(start+deleteChunk, len(ids))

		query, args, err := r.builder.
			Delete(table).
			Where(sq.Eq{"entity_type": entityType, column: ids[start:end]}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build %s query: %w", op, err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return storageErr(op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit "+op, err)
	}
	return nil
}

// storageErr wraps err for op, flagging connection-level failures as fatal.
func storageErr(op string, err error) error {
	fatal := errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		isClosedDB(err)
	return &domain.StorageError{Op: op, Fatal: fatal, Err: err}
}

// database/sql reports a closed pool with an unexported error value.
func isClosedDB(err error) bool {
	return err != nil && strings.Contains(err.Error(), "sql: database is closed")
}
