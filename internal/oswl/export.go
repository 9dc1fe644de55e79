package oswl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	reportPrefix       = "reports/"
	reportExt          = ".json"
	encryptedReportExt = ".json.age"
)

// Report is the unit handed to the reporting side: every record that
// changed since the previous export.
type Report struct {
	ID          string    `json:"report_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Records     []*Record `json:"records"`
}

// ExportResult describes one ExportUnsent run.
type ExportResult struct {
	// Name is the vault name of the written report. Empty when there was
	// nothing to export.
	Name string
	// Exported is the number of records included in the report.
	Exported int
	// Marked is the number of records flagged as sent. It can be lower than
	// Exported when a record was saved again while the export ran.
	Marked int
}

// Exporter ships unsent records to a vault and flags them as sent.
type Exporter struct {
	db        Database
	vault     Vault
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewExporter creates an Exporter. encryptor may be nil, in which case
// reports are stored as plain JSON.
func NewExporter(db Database, vault Vault, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator) *Exporter {
	return &Exporter{
		db:        db,
		vault:     vault,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// ExportUnsent writes up to limit unsent records as one report and marks
// them sent. Records stay unsent if the vault write fails.
func (e *Exporter) ExportUnsent(ctx context.Context, limit int) (*ExportResult, error) {
	recs, err := e.db.ListUnsentRecords(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unsent records: %w", err)
	}
	if len(recs) == 0 {
		e.logger.Debug("nothing to export")
		return &ExportResult{}, nil
	}

	report := &Report{
		ID:          e.idgen.New(),
		GeneratedAt: e.clock.Now().UTC(),
		Records:     recs,
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}

	name := reportPrefix + report.ID + reportExt
	if e.encryptor != nil {
		var buf bytes.Buffer
		if err := e.encryptor.Encrypt(bytes.NewReader(payload), &buf); err != nil {
			return nil, fmt.Errorf("encrypting report: %w", err)
		}
		payload = buf.Bytes()
		name = reportPrefix + report.ID + encryptedReportExt
	}

	if err := e.vault.PutReport(name, bytes.NewReader(payload), int64(len(payload))); err != nil {
		return nil, fmt.Errorf("storing report: %w", err)
	}

	marked, err := e.db.MarkRecordsSent(ctx, recs)
	if err != nil {
		return nil, fmt.Errorf("marking records sent: %w", err)
	}

	e.logger.Info("report exported", "name", name, "records", len(recs), "marked", marked)
	return &ExportResult{Name: name, Exported: len(recs), Marked: marked}, nil
}

// FetchReport reads a report back from the vault. dc is required for
// encrypted reports and ignored otherwise.
func (e *Exporter) FetchReport(name string, dc DecryptionContext) (*Report, error) {
	var buf bytes.Buffer
	if err := e.vault.GetReport(name, &buf); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}

	payload := buf.Bytes()
	if IsEncryptedReport(name) {
		if dc == nil {
			return nil, fmt.Errorf("report %s is encrypted: unlock required", name)
		}
		var plain bytes.Buffer
		if err := dc.Decrypt(bytes.NewReader(payload), &plain); err != nil {
			return nil, fmt.Errorf("decrypting report: %w", err)
		}
		payload = plain.Bytes()
	}

	var report Report
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &report, nil
}

// ListReports returns the names of stored reports.
func (e *Exporter) ListReports() ([]string, error) {
	names, err := e.vault.ListReports()
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return names, nil
}

// IsEncryptedReport reports whether name refers to an age-encrypted report.
func IsEncryptedReport(name string) bool {
	return strings.HasSuffix(name, encryptedReportExt)
}
