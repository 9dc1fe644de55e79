package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"oswl-go/internal/config"
	"oswl-go/internal/database/migrations"
	"oswl-go/internal/database/sqlc"
	"oswl-go/internal/oswl"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresDatabase implements the oswl.Database interface using PostgreSQL.
// Queries are built with squirrel; created_date is a DATE and resource_data
// is JSONB.
type PostgresDatabase struct {
	pool    *pgxpool.Pool
	builder sq.StatementBuilderType
}

// NewPool creates a PostgreSQL connection pool configured from DatabaseConfig.
// It parses the DSN, applies pool sizes and pings the database before
// returning the ready pool.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// NewPostgresDatabase wraps an existing pool. The database takes ownership
// of the pool and closes it on Close.
func NewPostgresDatabase(pool *pgxpool.Pool) *PostgresDatabase {
	return &PostgresDatabase{
		pool:    pool,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// selectStats starts a SELECT of full records. created_date is rendered
// back to its YYYY-MM-DD form.
func (p *PostgresDatabase) selectStats() sq.SelectBuilder {
	cols := make([]string, len(statColumns))
	copy(cols, statColumns)
	cols[3] = "to_char(created_date, 'YYYY-MM-DD')"
	return p.builder.Select(cols...).From(statsTable)
}

func (p *PostgresDatabase) queryOne(ctx context.Context, q sq.SelectBuilder) (*oswl.Record, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	row, err := scanStat(p.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return toRecord(row)
}

func (p *PostgresDatabase) queryMany(ctx context.Context, q sq.SelectBuilder) ([]*oswl.Record, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []sqlc.OswlStat
	for rows.Next() {
		row, err := scanStat(rows)
		if err != nil {
			return nil, err
		}
		stats = append(stats, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return toRecords(stats)
}

func scanStat(row pgx.Row) (sqlc.OswlStat, error) {
	var s sqlc.OswlStat
	var data []byte
	err := row.Scan(
		&s.ID,
		&s.GroupKey,
		&s.ResourceKind,
		&s.CreatedDate,
		&s.UpdatedTime,
		&s.ResourceChecksum,
		&data,
		&s.IsSent,
		&s.Version,
	)
	s.ResourceData = string(data)
	return s, err
}

func (p *PostgresDatabase) GetLastRecord(ctx context.Context, groupKey, kind string) (*oswl.Record, error) {
	q := p.selectStats().
		Where(sq.Eq{"group_key": groupKey, "resource_kind": kind}).
		OrderBy("created_date DESC").
		Limit(1)

	rec, err := p.queryOne(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("finding last record: %w", err)
	}
	return rec, nil
}

func (p *PostgresDatabase) FindRecord(ctx context.Context, groupKey, kind string, date oswl.Date) (*oswl.Record, error) {
	d, err := pgDate(date)
	if err != nil {
		return nil, err
	}

	q := p.selectStats().
		Where(sq.Eq{"group_key": groupKey, "resource_kind": kind, "created_date": d})

	rec, err := p.queryOne(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("finding record by date: %w", err)
	}
	return rec, nil
}

func (p *PostgresDatabase) CreateRecord(ctx context.Context, rec *oswl.Record) error {
	rec.Version = 1
	d, err := pgDate(rec.CreatedDate)
	if err != nil {
		return err
	}
	data, err := oswl.EncodeResourceData(rec.ResourceData)
	if err != nil {
		return err
	}

	query, args, err := p.builder.Insert(statsTable).
		Columns(statColumns...).
		Values(rec.ID, rec.GroupKey, rec.ResourceKind, d, rec.UpdatedTime, rec.ResourceChecksum, data, rec.IsSent, rec.Version).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("creating record for %s/%s on %s: %w",
				rec.GroupKey, rec.ResourceKind, rec.CreatedDate, oswl.ErrRecordExists)
		}
		return fmt.Errorf("creating record: %w", err)
	}
	return nil
}

func (p *PostgresDatabase) UpdateRecord(ctx context.Context, rec *oswl.Record, fields ...oswl.RecordField) error {
	query, args, err := buildUpdate(p.builder, rec, fields, func(b []byte) any { return b })
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating record %s: %w", rec.ID, oswl.ErrConcurrentUpdate)
	}
	rec.Version++
	return nil
}

func (p *PostgresDatabase) ListRecords(ctx context.Context, groupKey, kind string, limit int) ([]*oswl.Record, error) {
	q := p.selectStats().
		Where(sq.Eq{"group_key": groupKey, "resource_kind": kind}).
		OrderBy("created_date DESC").
		Limit(uint64(max(limit, 0)))

	recs, err := p.queryMany(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return recs, nil
}

func (p *PostgresDatabase) ListUnsentRecords(ctx context.Context, limit int) ([]*oswl.Record, error) {
	q := p.selectStats().
		Where(sq.Eq{"is_sent": false}).
		OrderBy("created_date", "group_key", "resource_kind").
		Limit(uint64(max(limit, 0)))

	recs, err := p.queryMany(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing unsent records: %w", err)
	}
	return recs, nil
}

func (p *PostgresDatabase) MarkRecordsSent(ctx context.Context, recs []*oswl.Record) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	marked := 0
	for _, rec := range recs {
		query, args, err := p.builder.Update(statsTable).
			Set("is_sent", true).
			Where(sq.Eq{"id": rec.ID, "version": rec.Version}).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("building update: %w", err)
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("marking record %s sent: %w", rec.ID, err)
		}
		marked += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return marked, nil
}

// Migrate applies any pending schema migrations.
func (p *PostgresDatabase) Migrate() error {
	return migrations.MigrateUp(stdlib.OpenDBFromPool(p.pool), migrations.Postgres)
}

// CheckMigrations verifies the database schema is up-to-date.
func (p *PostgresDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(stdlib.OpenDBFromPool(p.pool), migrations.Postgres)
}

// Close closes the connection pool.
func (p *PostgresDatabase) Close() error {
	p.pool.Close()
	return nil
}

func pgDate(d oswl.Date) (time.Time, error) {
	t, err := time.Parse("2006-01-02", d.String())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid record date %q: %w", d, err)
	}
	return t, nil
}

// Compile-time check that PostgresDatabase implements oswl.Database interface
var _ oswl.Database = (*PostgresDatabase)(nil)
