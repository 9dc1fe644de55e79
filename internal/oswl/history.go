package oswl

import (
	"context"
	"fmt"
)

// History returns up to limit records of the pair, newest first.
func (s *Service) History(ctx context.Context, groupKey, kind string, limit int) ([]*Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("history limit must be positive, got %d", limit)
	}
	recs, err := s.db.ListRecords(ctx, groupKey, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return recs, nil
}

// Record returns the record of the pair for date. An empty date means the
// most recent record. It returns nil if there is no such record.
func (s *Service) Record(ctx context.Context, groupKey, kind string, date Date) (*Record, error) {
	if date == "" {
		rec, err := s.db.GetLastRecord(ctx, groupKey, kind)
		if err != nil {
			return nil, fmt.Errorf("loading last record: %w", err)
		}
		return rec, nil
	}

	rec, err := s.db.FindRecord(ctx, groupKey, kind, date)
	if err != nil {
		return nil, fmt.Errorf("finding record: %w", err)
	}
	return rec, nil
}
