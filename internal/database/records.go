package database

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"oswl-go/internal/database/sqlc"
	"oswl-go/internal/oswl"
)

const statsTable = "oswl_stats"

// statColumns is the column order shared by every SELECT of a full record.
var statColumns = []string{
	"id",
	"group_key",
	"resource_kind",
	"created_date",
	"updated_time",
	"resource_checksum",
	"resource_data",
	"is_sent",
	"version",
}

// toRecord converts a stored row into a domain record.
func toRecord(row sqlc.OswlStat) (*oswl.Record, error) {
	data, err := oswl.DecodeResourceData([]byte(row.ResourceData))
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", row.ID, err)
	}
	return &oswl.Record{
		ID:               row.ID,
		GroupKey:         row.GroupKey,
		ResourceKind:     row.ResourceKind,
		CreatedDate:      oswl.Date(row.CreatedDate),
		UpdatedTime:      row.UpdatedTime,
		ResourceChecksum: row.ResourceChecksum,
		IsSent:           row.IsSent,
		Version:          row.Version,
		ResourceData:     data,
	}, nil
}

// buildUpdate builds the partial UPDATE for UpdateRecord. Only the listed
// fields are written, plus the bumped version. The statement is a
// compare-and-swap on rec.Version: it matches no row once anyone else has
// updated the record. dataArg adapts the encoded resource data to the
// column type of the target database.
func buildUpdate(b sq.StatementBuilderType, rec *oswl.Record, fields []oswl.RecordField, dataArg func([]byte) any) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}

	q := b.Update(statsTable).Where(sq.Eq{"id": rec.ID, "version": rec.Version})

	for _, f := range fields {
		switch f {
		case oswl.FieldUpdatedTime:
			q = q.Set("updated_time", rec.UpdatedTime)
		case oswl.FieldResourceChecksum:
			q = q.Set("resource_checksum", rec.ResourceChecksum)
		case oswl.FieldIsSent:
			q = q.Set("is_sent", rec.IsSent)
		case oswl.FieldResourceData:
			data, err := oswl.EncodeResourceData(rec.ResourceData)
			if err != nil {
				return "", nil, err
			}
			q = q.Set("resource_data", dataArg(data))
		default:
			return "", nil, fmt.Errorf("unknown record field: %q", f)
		}
	}

	return q.Set("version", rec.Version+1).ToSql()
}
