package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"oswl-go/internal/config"
	"oswl-go/internal/database"
	"oswl-go/internal/encryption"
	"oswl-go/internal/oswl"
	"oswl-go/internal/query"
	"oswl-go/internal/snapshot"
	"oswl-go/internal/vault"
)

// OSWLApp is the application layer between the CLI and the oswl package.
// It constructs all dependencies from config and manages the DB lifecycle
// on Close.
type OSWLApp struct {
	cfg       *config.Config
	db        oswl.Database
	vault     oswl.Vault
	encryptor oswl.Encryptor
	service   *oswl.Service
	exporter  *oswl.Exporter
	logger    oswl.Logger
	logFile   *os.File
}

// NewOSWLApp creates a fully wired OSWLApp from the given config.
// operation identifies the CLI command being run (e.g. "Save", "Export")
// and is attached to every log line. The caller must call Close when done.
func NewOSWLApp(ctx context.Context, cfg *config.Config, operation string) (*OSWLApp, error) {
	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date (run `oswl db migrate`): %w", err)
	}

	var v oswl.Vault
	if len(cfg.Vaults) > 0 {
		v, err = vault.NewVaultFromConfig(ctx, cfg.Vaults[0])
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	l, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: l.With("op", operation)}

	return &OSWLApp{
		cfg:       cfg,
		db:        db,
		vault:     v,
		encryptor: enc,
		service:   oswl.NewService(db, logger, oswl.RealClock{}, oswl.UUIDGenerator{}),
		exporter:  newExporter(db, v, enc, logger),
		logger:    logger,
		logFile:   logFile,
	}, nil
}

// newExporter returns nil when no vault is configured.
func newExporter(db oswl.Database, v oswl.Vault, enc oswl.Encryptor, logger oswl.Logger) *oswl.Exporter {
	if v == nil {
		return nil
	}
	return oswl.NewExporter(db, v, enc, logger, oswl.RealClock{}, oswl.ULIDGenerator{})
}

// Save decodes a snapshot from r and records it for the (group, kind) pair.
func (a *OSWLApp) Save(ctx context.Context, group, kind string, r io.Reader, format snapshot.Format) (oswl.Outcome, error) {
	s, err := snapshot.Load(r, format)
	if err != nil {
		return 0, err
	}
	return a.service.Save(ctx, group, kind, s)
}

// Record returns the record of the pair for date, or the latest one when
// date is empty. It returns nil if there is none.
func (a *OSWLApp) Record(ctx context.Context, group, kind, date string) (*oswl.Record, error) {
	var d oswl.Date
	if date != "" {
		var err error
		if d, err = oswl.ParseDate(date); err != nil {
			return nil, err
		}
	}
	return a.service.Record(ctx, group, kind, d)
}

// History returns up to limit records of the pair, newest first.
func (a *OSWLApp) History(ctx context.Context, group, kind string, limit int) ([]*oswl.Record, error) {
	return a.service.History(ctx, group, kind, limit)
}

// Query returns the resources of the pair's snapshot that match a JsonLogic
// rule. date selects the record as in Record.
func (a *OSWLApp) Query(ctx context.Context, group, kind, date, rule string) (oswl.Snapshot, error) {
	q, err := query.ParseRule(rule)
	if err != nil {
		return nil, err
	}
	rec, err := a.Record(ctx, group, kind, date)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return oswl.Snapshot{}, nil
	}
	return query.Filter(q, rec.ResourceData.Current)
}

// Export writes unsent records to the vault. A limit of zero or less uses
// the configured batch limit.
func (a *OSWLApp) Export(ctx context.Context, limit int) (*oswl.ExportResult, error) {
	exp, err := a.requireExporter()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = a.cfg.BatchLimit()
	}
	return exp.ExportUnsent(ctx, limit)
}

// ListReports returns the names of the reports stored in the vault.
func (a *OSWLApp) ListReports() ([]string, error) {
	exp, err := a.requireExporter()
	if err != nil {
		return nil, err
	}
	return exp.ListReports()
}

// NeedsPassphrase reports whether reading the named report requires
// unlocking the private key.
func (a *OSWLApp) NeedsPassphrase(name string) bool {
	return oswl.IsEncryptedReport(name)
}

// FetchReport reads a report from the vault. passphrase is only used for
// encrypted reports.
func (a *OSWLApp) FetchReport(name, passphrase string) (*oswl.Report, error) {
	exp, err := a.requireExporter()
	if err != nil {
		return nil, err
	}

	var dc oswl.DecryptionContext
	if oswl.IsEncryptedReport(name) {
		if a.encryptor == nil {
			return nil, fmt.Errorf("report %s is encrypted but encryption is disabled", name)
		}
		dc, err = a.encryptor.Unlock(passphrase)
		if err != nil {
			return nil, fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return exp.FetchReport(name, dc)
}

func (a *OSWLApp) requireExporter() (*oswl.Exporter, error) {
	if a.exporter == nil {
		return nil, fmt.Errorf("no vaults configured")
	}
	return a.exporter, nil
}

// Close closes all resources.
func (a *OSWLApp) Close() error {
	var firstErr error
	if err := a.db.Close(); err != nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// SetupKeys generates the report encryption key pair.
func SetupKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil {
		return fmt.Errorf("encryption is disabled in the configuration")
	}
	return enc.Setup(passphrase)
}

// MigrateDatabase applies pending schema migrations to the configured database.
func MigrateDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	m, ok := db.(database.Migrator)
	if !ok {
		return fmt.Errorf("database type %s does not support migrations", cfg.Database.Type)
	}
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// CheckDatabase reports whether the configured database schema is current.
func CheckDatabase(ctx context.Context, cfg *config.Config) error {
	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()
	return db.CheckMigrations()
}
