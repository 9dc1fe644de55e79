package oswl

import (
	"context"
	"fmt"
	"time"
)

// Outcome reports what a Save call did.
type Outcome int

const (
	// OutcomeUnchanged means the snapshot matched the stored checksum and
	// nothing was written.
	OutcomeUnchanged Outcome = iota + 1
	// OutcomeUpdated means today's record was updated with new deltas.
	OutcomeUpdated
	// OutcomeCreated means a new record was started for today.
	OutcomeCreated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeUpdated:
		return "updated"
	case OutcomeCreated:
		return "created"
	default:
		return "unknown"
	}
}

// Service is the changelog orchestrator. It keeps one record per group,
// resource kind and UTC calendar day, folding each newly observed snapshot
// into that day's added/removed/modified accumulators.
//
// Saves for the same (group, kind) pair are serialized within a Service.
// Across processes the store's unique key and the record version turn a lost
// race into ErrRecordExists or ErrConcurrentUpdate instead of a silent
// overwrite, even when the snapshot has since changed back to the content the
// stale writer loaded.
type Service struct {
	db     Database
	logger Logger
	clock  Clock
	idgen  IDGenerator
	locks  *keyedMutex
}

// NewService creates a new Service with the provided dependencies.
func NewService(db Database, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		db:     db,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
		locks:  newKeyedMutex(),
	}
}

// Save records snapshot as the latest state of the (groupKey, kind) pair.
// It performs at most one store write: none when the snapshot checksum
// matches the last record, an update when the last record is from today,
// and a create otherwise.
func (s *Service) Save(ctx context.Context, groupKey, kind string, snapshot Snapshot) (Outcome, error) {
	unlock := s.locks.Lock(groupKey + "\x00" + kind)
	defer unlock()

	now := s.clock.Now().UTC()

	last, err := s.db.GetLastRecord(ctx, groupKey, kind)
	if err != nil {
		return 0, fmt.Errorf("loading last record: %w", err)
	}

	current, checksum, err := Canonicalize(snapshot)
	if err != nil {
		return 0, err
	}

	if last != nil && last.ResourceChecksum == checksum {
		s.logger.Debug("snapshot unchanged", "group", groupKey, "kind", kind)
		return OutcomeUnchanged, nil
	}

	if last != nil && last.CreatedDate == DateOf(now) {
		if err := s.update(ctx, last, now, current, checksum); err != nil {
			return 0, err
		}
		return OutcomeUpdated, nil
	}

	if err := s.create(ctx, groupKey, kind, now, current, checksum); err != nil {
		return 0, err
	}
	return OutcomeCreated, nil
}

// update folds the delta between the stored snapshot and current into the
// record's accumulators and writes the changed fields back.
func (s *Service) update(ctx context.Context, rec *Record, now time.Time, current Snapshot, checksum string) error {
	data := rec.ResourceData
	prev := data.Current

	data.Added = ComputeAdded(now, prev, current, data.Added)
	data.Removed = ComputeRemoved(now, prev, current, data.Removed)
	data.Modified = ComputeModified(now, prev, current, data.Modified)
	data.Current = current

	rec.ResourceData = data
	rec.ResourceChecksum = checksum
	rec.UpdatedTime = FormatTimeOfDay(now)
	rec.IsSent = false

	err := s.db.UpdateRecord(ctx, rec,
		FieldResourceData, FieldResourceChecksum, FieldUpdatedTime, FieldIsSent)
	if err != nil {
		return fmt.Errorf("updating record: %w", err)
	}

	s.logger.Info("record updated",
		"group", rec.GroupKey,
		"kind", rec.ResourceKind,
		"date", rec.CreatedDate,
		"added", len(data.Added),
		"removed", len(data.Removed),
		"modified", len(data.Modified),
	)
	return nil
}

// create starts a new record for today. Everything in current counts as
// added; removed and modified start empty.
func (s *Service) create(ctx context.Context, groupKey, kind string, now time.Time, current Snapshot, checksum string) error {
	rec := &Record{
		ID:               s.idgen.New(),
		GroupKey:         groupKey,
		ResourceKind:     kind,
		CreatedDate:      DateOf(now),
		UpdatedTime:      FormatTimeOfDay(now),
		ResourceChecksum: checksum,
		Version:          1,
		ResourceData: ResourceData{
			Current:  current,
			Added:    ComputeAdded(now, nil, current, Added{}),
			Removed:  Removed{},
			Modified: Modified{},
		},
	}

	if err := s.db.CreateRecord(ctx, rec); err != nil {
		return fmt.Errorf("creating record: %w", err)
	}

	s.logger.Info("record created",
		"group", groupKey,
		"kind", kind,
		"date", rec.CreatedDate,
		"resources", len(current),
	)
	return nil
}
