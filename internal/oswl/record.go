package oswl

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Stamp marks when something happened, as a time of day.
type Stamp struct {
	Time string `json:"time"`
}

// Added maps resource ids to the time they first appeared.
type Added map[string]Stamp

// Removed maps resource ids to their last known state plus a "time" field.
type Removed map[string]Resource

// Modified maps resource ids to their change events, oldest first. Each
// event holds the overridden previous field values plus a "time" field.
type Modified map[string][]Resource

// ResourceData is the changelog payload of a record.
type ResourceData struct {
	Current  Snapshot `json:"current"`
	Added    Added    `json:"added"`
	Removed  Removed  `json:"removed"`
	Modified Modified `json:"modified"`
}

// Record is the daily rollup for one (group, resource kind) pair.
type Record struct {
	ID               string       `json:"id"`
	GroupKey         string       `json:"group_key"`
	ResourceKind     string       `json:"resource_kind"`
	CreatedDate      Date         `json:"created_date"`
	UpdatedTime      string       `json:"updated_time"`
	ResourceChecksum string       `json:"resource_checksum"`
	IsSent           bool         `json:"is_sent"`
	// Version starts at 1 and is bumped by every UpdateRecord. Stores use
	// it as the compare-and-swap token.
	Version          int64        `json:"version"`
	ResourceData     ResourceData `json:"resource_data"`
}

// RecordField names a column a store may update in place.
type RecordField string

const (
	FieldUpdatedTime      RecordField = "updated_time"
	FieldResourceChecksum RecordField = "resource_checksum"
	FieldResourceData     RecordField = "resource_data"
	FieldIsSent           RecordField = "is_sent"
)

// EncodeResourceData serializes d for storage.
func EncodeResourceData(d ResourceData) ([]byte, error) {
	d.normalize()
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding resource data: %w", err)
	}
	return data, nil
}

// DecodeResourceData parses stored resource data. Numbers are kept as
// json.Number in the canonical form produced by Canonicalize, whatever
// notation the store handed back (JSONB rewrites 1e-07 as 0.0000001).
func DecodeResourceData(data []byte) (ResourceData, error) {
	var d ResourceData
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&d); err != nil {
		return ResourceData{}, fmt.Errorf("decoding resource data: %w", err)
	}
	d.normalize()

	for _, r := range d.Current {
		canonicalizeNumbers(r)
	}
	for _, r := range d.Removed {
		canonicalizeNumbers(r)
	}
	for _, events := range d.Modified {
		for _, e := range events {
			canonicalizeNumbers(e)
		}
	}
	return d, nil
}

// normalize replaces nil collections with empty ones so they encode as
// [] and {} rather than null.
func (d *ResourceData) normalize() {
	if d.Current == nil {
		d.Current = Snapshot{}
	}
	if d.Added == nil {
		d.Added = Added{}
	}
	if d.Removed == nil {
		d.Removed = Removed{}
	}
	if d.Modified == nil {
		d.Modified = Modified{}
	}
}
