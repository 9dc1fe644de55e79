package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"oswl-go/internal/database/migrations"
	"oswl-go/internal/database/sqlc"
	"oswl-go/internal/oswl"
)

// Schema is the current SQLite schema, generated from the migrations.
//
//go:embed sqlc/schema.sql
var Schema string

// Driver selects the SQLite driver implementation.
type Driver string

const (
	// DriverCGo is mattn/go-sqlite3.
	DriverCGo Driver = "sqlite3"
	// DriverPureGo is modernc.org/sqlite.
	DriverPureGo Driver = "sqlite"
)

func (d Driver) dialect() migrations.Dialect {
	if d == DriverPureGo {
		return migrations.SQLite
	}
	return migrations.SQLite3
}

// SQLiteDatabase implements the oswl.Database interface using SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *sqlc.Queries
	builder sq.StatementBuilderType
	driver  Driver
	path    string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string, driver Driver) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path, driver)
	if err != nil {
		return nil, err
	}

	s := NewSQLiteDatabaseFromDB(db, driver)
	s.path = path
	return s, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB, driver Driver) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		driver:  driver,
	}
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string, driver Driver) (*sql.DB, error) {
	if driver == "" {
		driver = DriverCGo
	}

	db, err := sql.Open(string(driver), path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" gets its own empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (s *SQLiteDatabase) GetLastRecord(ctx context.Context, groupKey, kind string) (*oswl.Record, error) {
	row, err := s.queries.GetLastStat(ctx, sqlc.GetLastStatParams{
		GroupKey:     groupKey,
		ResourceKind: kind,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding last record: %w", err)
	}
	return toRecord(row)
}

func (s *SQLiteDatabase) FindRecord(ctx context.Context, groupKey, kind string, date oswl.Date) (*oswl.Record, error) {
	row, err := s.queries.GetStatByDate(ctx, sqlc.GetStatByDateParams{
		GroupKey:     groupKey,
		ResourceKind: kind,
		CreatedDate:  date.String(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding record by date: %w", err)
	}
	return toRecord(row)
}

func (s *SQLiteDatabase) CreateRecord(ctx context.Context, rec *oswl.Record) error {
	rec.Version = 1
	data, err := oswl.EncodeResourceData(rec.ResourceData)
	if err != nil {
		return err
	}

	_, err = s.queries.InsertStat(ctx, sqlc.InsertStatParams{
		ID:               rec.ID,
		GroupKey:         rec.GroupKey,
		ResourceKind:     rec.ResourceKind,
		CreatedDate:      rec.CreatedDate.String(),
		UpdatedTime:      rec.UpdatedTime,
		ResourceChecksum: rec.ResourceChecksum,
		ResourceData:     string(data),
		IsSent:           rec.IsSent,
		Version:          rec.Version,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("creating record for %s/%s on %s: %w",
				rec.GroupKey, rec.ResourceKind, rec.CreatedDate, oswl.ErrRecordExists)
		}
		return fmt.Errorf("creating record: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateRecord(ctx context.Context, rec *oswl.Record, fields ...oswl.RecordField) error {
	query, args, err := buildUpdate(s.builder, rec, fields, func(b []byte) any { return string(b) })
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("updating record %s: %w", rec.ID, oswl.ErrConcurrentUpdate)
	}
	rec.Version++
	return nil
}

func (s *SQLiteDatabase) ListRecords(ctx context.Context, groupKey, kind string, limit int) ([]*oswl.Record, error) {
	rows, err := s.queries.ListStats(ctx, sqlc.ListStatsParams{
		GroupKey:     groupKey,
		ResourceKind: kind,
		Limit:        int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return toRecords(rows)
}

func (s *SQLiteDatabase) ListUnsentRecords(ctx context.Context, limit int) ([]*oswl.Record, error) {
	rows, err := s.queries.ListUnsentStats(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing unsent records: %w", err)
	}
	return toRecords(rows)
}

func (s *SQLiteDatabase) MarkRecordsSent(ctx context.Context, recs []*oswl.Record) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	marked := 0
	for _, rec := range recs {
		n, err := qtx.MarkStatSent(ctx, sqlc.MarkStatSentParams{
			ID:      rec.ID,
			Version: rec.Version,
		})
		if err != nil {
			return 0, fmt.Errorf("marking record %s sent: %w", rec.ID, err)
		}
		marked += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return marked, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies any pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db, s.driver.dialect())
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db, s.driver.dialect())
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func toRecords(rows []sqlc.OswlStat) ([]*oswl.Record, error) {
	result := make([]*oswl.Record, len(rows))
	for i, row := range rows {
		rec, err := toRecord(row)
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure from
// either SQLite driver.
func isUniqueViolation(err error) bool {
	var cgoErr sqlite3.Error
	if errors.As(err, &cgoErr) {
		return cgoErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			cgoErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pureErr *sqlite.Error
	if errors.As(err, &pureErr) {
		return pureErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE ||
			pureErr.Code() == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// Compile-time check that SQLiteDatabase implements oswl.Database interface
var _ oswl.Database = (*SQLiteDatabase)(nil)
