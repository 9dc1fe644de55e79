package testutil

import (
	"context"
	"sync"
	"testing"

	"oswl-go/internal/database"
	"oswl-go/internal/oswl"
)

// NewTestDatabase creates a new in-memory SQLite database with schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) oswl.Database {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:", database.DriverCGo)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB, database.DriverCGo)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// FaultyDatabase wraps a Database and fails selected operations with the
// configured errors. A nil error passes the call through. It also counts
// writes so tests can assert that nothing was persisted.
type FaultyDatabase struct {
	oswl.Database

	mu        sync.Mutex
	GetErr    error
	CreateErr error
	UpdateErr error
	ListErr   error
	MarkErr   error
	Creates   int
	Updates   int
}

// NewFaultyDatabase wraps db.
func NewFaultyDatabase(db oswl.Database) *FaultyDatabase {
	return &FaultyDatabase{Database: db}
}

func (f *FaultyDatabase) GetLastRecord(ctx context.Context, groupKey, kind string) (*oswl.Record, error) {
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	return f.Database.GetLastRecord(ctx, groupKey, kind)
}

func (f *FaultyDatabase) CreateRecord(ctx context.Context, rec *oswl.Record) error {
	if f.CreateErr != nil {
		return f.CreateErr
	}
	f.mu.Lock()
	f.Creates++
	f.mu.Unlock()
	return f.Database.CreateRecord(ctx, rec)
}

func (f *FaultyDatabase) UpdateRecord(ctx context.Context, rec *oswl.Record, fields ...oswl.RecordField) error {
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.mu.Lock()
	f.Updates++
	f.mu.Unlock()
	return f.Database.UpdateRecord(ctx, rec, fields...)
}

func (f *FaultyDatabase) ListUnsentRecords(ctx context.Context, limit int) ([]*oswl.Record, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.Database.ListUnsentRecords(ctx, limit)
}

func (f *FaultyDatabase) MarkRecordsSent(ctx context.Context, recs []*oswl.Record) (int, error) {
	if f.MarkErr != nil {
		return 0, f.MarkErr
	}
	return f.Database.MarkRecordsSent(ctx, recs)
}

// Writes returns the number of successful-looking create and update calls.
func (f *FaultyDatabase) Writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Creates + f.Updates
}

var _ oswl.Database = (*FaultyDatabase)(nil)
