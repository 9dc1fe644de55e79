package oswl

import "context"

// Store is the persistence the changelog orchestrator needs. Commit
// boundaries belong to the implementation or its caller, never to Service.
type Store interface {
	// GetLastRecord returns the most recent record for the pair by
	// creation date, or nil if there is none.
	GetLastRecord(ctx context.Context, groupKey, kind string) (*Record, error)

	// CreateRecord inserts a new record at version 1 and sets rec.Version.
	// It returns ErrRecordExists if a record for the same group, kind and
	// date is already stored.
	CreateRecord(ctx context.Context, rec *Record) error

	// UpdateRecord writes only the listed fields of rec and bumps the
	// version. The write only happens while the stored version still equals
	// rec.Version, otherwise ErrConcurrentUpdate is returned. On success
	// rec.Version holds the new version.
	UpdateRecord(ctx context.Context, rec *Record, fields ...RecordField) error
}

// Database is the full record store used by the application: the Store
// operations plus history and export queries.
type Database interface {
	Store

	// FindRecord returns the record of the pair for a given date, or nil.
	FindRecord(ctx context.Context, groupKey, kind string, date Date) (*Record, error)

	// ListRecords returns up to limit records of the pair, newest first.
	ListRecords(ctx context.Context, groupKey, kind string, limit int) ([]*Record, error)

	// ListUnsentRecords returns up to limit records not yet exported,
	// oldest first.
	ListUnsentRecords(ctx context.Context, limit int) ([]*Record, error)

	// MarkRecordsSent sets is_sent on the given records, skipping any whose
	// stored version no longer matches (it changed after being read and
	// still has to be exported). Marking does not bump the version. It
	// returns how many records were marked.
	MarkRecordsSent(ctx context.Context, recs []*Record) (int, error)

	// CheckMigrations verifies the schema is up to date.
	CheckMigrations() error

	// Close releases the underlying connection.
	Close() error
}
