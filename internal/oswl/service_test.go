package oswl_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"oswl-go/internal/oswl"
	"oswl-go/internal/testutil"
)

type serviceFixture struct {
	db     oswl.Database
	svc    *oswl.Service
	clock  *testutil.StubClock
	logger *testutil.RecordingLogger
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	clock := testutil.FixedClock()
	logger := testutil.NewRecordingLogger()
	svc := oswl.NewService(db, logger, clock, testutil.NewStubIDGenerator())
	return &serviceFixture{db: db, svc: svc, clock: clock, logger: logger}
}

func (f *serviceFixture) save(t *testing.T, s oswl.Snapshot) oswl.Outcome {
	t.Helper()
	out, err := f.svc.Save(context.Background(), "G", "vm", s)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	return out
}

func (f *serviceFixture) last(t *testing.T) *oswl.Record {
	t.Helper()
	return lastRecord(t, f.db)
}

func lastRecord(t *testing.T, db oswl.Database) *oswl.Record {
	t.Helper()
	rec, err := db.GetLastRecord(context.Background(), "G", "vm")
	if err != nil {
		t.Fatalf("GetLastRecord() error = %v", err)
	}
	if rec == nil {
		t.Fatal("no record stored")
	}
	return rec
}

func TestService_Save(t *testing.T) {
	t.Run("first save creates record", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)

		if out := f.save(t, oswl.Snapshot{{"id": 1, "x": 1}, {"id": 2}}); out != oswl.OutcomeCreated {
			t.Fatalf("outcome = %v, want created", out)
		}

		rec := f.last(t)
		if rec.ID != "id-1" {
			t.Errorf("ID = %q, want id-1", rec.ID)
		}
		if rec.CreatedDate != "2024-01-15" {
			t.Errorf("CreatedDate = %q, want 2024-01-15", rec.CreatedDate)
		}
		if rec.UpdatedTime != "10:30:00" {
			t.Errorf("UpdatedTime = %q, want 10:30:00", rec.UpdatedTime)
		}
		if rec.IsSent {
			t.Error("new record is marked sent")
		}
		wantAdded := oswl.Added{"1": {Time: "10:30:00"}, "2": {Time: "10:30:00"}}
		if !reflect.DeepEqual(rec.ResourceData.Added, wantAdded) {
			t.Errorf("Added = %v, want %v", rec.ResourceData.Added, wantAdded)
		}
		if len(rec.ResourceData.Removed) != 0 || len(rec.ResourceData.Modified) != 0 {
			t.Errorf("Removed/Modified not empty: %v %v", rec.ResourceData.Removed, rec.ResourceData.Modified)
		}
		if !f.logger.Has("INFO", "record created") {
			t.Errorf("missing creation log, got:\n%s", f.logger)
		}
	})

	t.Run("unchanged snapshot is a no-op", func(t *testing.T) {
		t.Parallel()
		db := testutil.NewFaultyDatabase(testutil.NewTestDatabase(t))
		clock := testutil.FixedClock()
		logger := testutil.NewRecordingLogger()
		svc := oswl.NewService(db, logger, clock, testutil.NewStubIDGenerator())
		ctx := context.Background()

		s := oswl.Snapshot{{"id": 1, "x": 1}}
		if _, err := svc.Save(ctx, "G", "vm", s); err != nil {
			t.Fatalf("first Save() error = %v", err)
		}
		clock.Advance(time.Minute)
		// Same content, different field order.
		out, err := svc.Save(ctx, "G", "vm", oswl.Snapshot{{"x": 1, "id": 1}})
		if err != nil {
			t.Fatalf("second Save() error = %v", err)
		}

		if out != oswl.OutcomeUnchanged {
			t.Errorf("outcome = %v, want unchanged", out)
		}
		if db.Writes() != 1 {
			t.Errorf("writes = %d, want 1", db.Writes())
		}
		if !logger.Has("DEBUG", "snapshot unchanged") {
			t.Errorf("missing no-op log, got:\n%s", logger)
		}
	})

	t.Run("unchanged snapshot on a new day writes nothing", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		s := oswl.Snapshot{{"id": 1}}
		f.save(t, s)

		f.clock.Advance(24 * time.Hour)
		if out := f.save(t, s); out != oswl.OutcomeUnchanged {
			t.Errorf("outcome = %v, want unchanged", out)
		}

		recs, err := f.db.ListRecords(context.Background(), "G", "vm", 10)
		if err != nil {
			t.Fatalf("ListRecords() error = %v", err)
		}
		if len(recs) != 1 {
			t.Errorf("got %d records, want 1", len(recs))
		}
	})

	t.Run("same day save updates record", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.save(t, oswl.Snapshot{{"id": 1}, {"id": 2}})
		first := f.last(t)

		if _, err := f.db.MarkRecordsSent(context.Background(), []*oswl.Record{first}); err != nil {
			t.Fatalf("MarkRecordsSent() error = %v", err)
		}

		f.clock.Advance(2 * time.Hour)
		if out := f.save(t, oswl.Snapshot{{"id": 1}, {"id": 3}}); out != oswl.OutcomeUpdated {
			t.Fatalf("outcome = %v, want updated", out)
		}

		rec := f.last(t)
		if rec.ID != first.ID {
			t.Errorf("record ID changed: %q -> %q", first.ID, rec.ID)
		}
		if rec.UpdatedTime != "12:30:00" {
			t.Errorf("UpdatedTime = %q, want 12:30:00", rec.UpdatedTime)
		}
		if rec.IsSent {
			t.Error("updated record still marked sent")
		}
		if rec.ResourceChecksum == first.ResourceChecksum {
			t.Error("checksum not updated")
		}
		if _, ok := rec.ResourceData.Added["3"]; !ok {
			t.Errorf("Added missing id 3: %v", rec.ResourceData.Added)
		}
		wantRemoved := oswl.Removed{"2": {"id": json.Number("2"), "time": "12:30:00"}}
		if !reflect.DeepEqual(rec.ResourceData.Removed, wantRemoved) {
			t.Errorf("Removed = %v, want %v", rec.ResourceData.Removed, wantRemoved)
		}
		if !f.logger.Has("INFO", "record updated") {
			t.Errorf("missing update log, got:\n%s", f.logger)
		}
	})

	t.Run("new day starts a fresh record", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		f.save(t, oswl.Snapshot{{"id": 1, "x": 1}})
		f.clock.Advance(time.Hour)
		f.save(t, oswl.Snapshot{{"id": 1, "x": 2}})

		f.clock.Set(time.Date(2024, 1, 16, 0, 0, 5, 0, time.UTC))
		if out := f.save(t, oswl.Snapshot{{"id": 1, "x": 3}, {"id": 2}}); out != oswl.OutcomeCreated {
			t.Fatalf("outcome = %v, want created", out)
		}

		recs, err := f.db.ListRecords(context.Background(), "G", "vm", 10)
		if err != nil {
			t.Fatalf("ListRecords() error = %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("got %d records, want 2", len(recs))
		}

		rec := recs[0]
		if rec.CreatedDate != "2024-01-16" {
			t.Errorf("CreatedDate = %q, want 2024-01-16", rec.CreatedDate)
		}
		wantAdded := oswl.Added{"1": {Time: "00:00:05"}, "2": {Time: "00:00:05"}}
		if !reflect.DeepEqual(rec.ResourceData.Added, wantAdded) {
			t.Errorf("Added = %v, want %v", rec.ResourceData.Added, wantAdded)
		}
		if len(rec.ResourceData.Removed) != 0 || len(rec.ResourceData.Modified) != 0 {
			t.Errorf("new day carried accumulators: %v %v", rec.ResourceData.Removed, rec.ResourceData.Modified)
		}

		if len(recs[1].ResourceData.Modified["1"]) != 1 {
			t.Errorf("previous day record changed: %v", recs[1].ResourceData.Modified)
		}
	})

	t.Run("dates follow UTC", func(t *testing.T) {
		t.Parallel()
		f := newServiceFixture(t)
		// 23:30 on the 15th in UTC-5 is already the 16th in UTC.
		f.clock.Set(time.Date(2024, 1, 15, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)))
		f.save(t, oswl.Snapshot{{"id": 1}})

		rec := f.last(t)
		if rec.CreatedDate != "2024-01-16" || rec.UpdatedTime != "04:30:00" {
			t.Errorf("stored %s %s, want 2024-01-16 04:30:00", rec.CreatedDate, rec.UpdatedTime)
		}
	})
}

func TestService_Save_Scenario(t *testing.T) {
	f := newServiceFixture(t)

	f.save(t, oswl.Snapshot{{"id": 1, "x": 1}})
	rec := f.last(t)

	wantCurrent := oswl.Snapshot{{"id": json.Number("1"), "x": json.Number("1")}}
	if !reflect.DeepEqual(rec.ResourceData.Current, wantCurrent) {
		t.Errorf("Current = %v, want %v", rec.ResourceData.Current, wantCurrent)
	}
	if want := (oswl.Added{"1": {Time: "10:30:00"}}); !reflect.DeepEqual(rec.ResourceData.Added, want) {
		t.Errorf("Added = %v, want %v", rec.ResourceData.Added, want)
	}

	f.clock.Advance(time.Hour)
	if out := f.save(t, oswl.Snapshot{{"id": 1, "x": 2}, {"id": 2, "x": 1}}); out != oswl.OutcomeUpdated {
		t.Fatalf("outcome = %v, want updated", out)
	}
	rec = f.last(t)

	wantCurrent = oswl.Snapshot{
		{"id": json.Number("1"), "x": json.Number("2")},
		{"id": json.Number("2"), "x": json.Number("1")},
	}
	if !reflect.DeepEqual(rec.ResourceData.Current, wantCurrent) {
		t.Errorf("Current = %v, want %v", rec.ResourceData.Current, wantCurrent)
	}
	wantAdded := oswl.Added{"1": {Time: "10:30:00"}, "2": {Time: "11:30:00"}}
	if !reflect.DeepEqual(rec.ResourceData.Added, wantAdded) {
		t.Errorf("Added = %v, want %v", rec.ResourceData.Added, wantAdded)
	}
	wantModified := oswl.Modified{"1": {{"x": json.Number("1"), "time": "11:30:00"}}}
	if !reflect.DeepEqual(rec.ResourceData.Modified, wantModified) {
		t.Errorf("Modified = %v, want %v", rec.ResourceData.Modified, wantModified)
	}
	if len(rec.ResourceData.Removed) != 0 {
		t.Errorf("Removed = %v, want empty", rec.ResourceData.Removed)
	}

	sum, err := oswl.Checksum(rec.ResourceData.Current)
	if err != nil {
		t.Fatalf("Checksum() error = %v", err)
	}
	if sum != rec.ResourceChecksum {
		t.Errorf("stored checksum %s does not match stored snapshot %s", rec.ResourceChecksum, sum)
	}
}

func TestService_Save_Errors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		setup  func(db *testutil.FaultyDatabase)
		seed   bool
		target error
	}{
		{
			name:   "fetch failure",
			setup:  func(db *testutil.FaultyDatabase) { db.GetErr = boom },
			target: boom,
		},
		{
			name:   "create failure",
			setup:  func(db *testutil.FaultyDatabase) { db.CreateErr = boom },
			target: boom,
		},
		{
			name:   "update failure",
			setup:  func(db *testutil.FaultyDatabase) { db.UpdateErr = boom },
			seed:   true,
			target: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			db := testutil.NewFaultyDatabase(testutil.NewTestDatabase(t))
			svc := oswl.NewService(db, oswl.NewNopLogger(), testutil.FixedClock(), testutil.NewStubIDGenerator())
			ctx := context.Background()

			if tt.seed {
				if _, err := svc.Save(ctx, "G", "vm", oswl.Snapshot{{"id": 1}}); err != nil {
					t.Fatalf("seed Save() error = %v", err)
				}
			}
			tt.setup(db)

			_, err := svc.Save(ctx, "G", "vm", oswl.Snapshot{{"id": 2}})
			if !errors.Is(err, tt.target) {
				t.Errorf("Save() error = %v, want %v", err, tt.target)
			}
		})
	}

	t.Run("malformed snapshot writes nothing", func(t *testing.T) {
		t.Parallel()
		db := testutil.NewFaultyDatabase(testutil.NewTestDatabase(t))
		svc := oswl.NewService(db, oswl.NewNopLogger(), testutil.FixedClock(), testutil.NewStubIDGenerator())

		_, err := svc.Save(context.Background(), "G", "vm", oswl.Snapshot{{"id": 1}, {"name": "orphan"}})
		var mre *oswl.MalformedResourceError
		if !errors.As(err, &mre) {
			t.Fatalf("Save() error = %v, want MalformedResourceError", err)
		}
		if db.Writes() != 0 {
			t.Errorf("writes = %d, want 0", db.Writes())
		}
	})

	t.Run("stale read fails with concurrent update", func(t *testing.T) {
		t.Parallel()
		db := testutil.NewTestDatabase(t)
		clock := testutil.FixedClock()
		svc := oswl.NewService(db, oswl.NewNopLogger(), clock, testutil.NewStubIDGenerator())
		ctx := context.Background()

		if _, err := svc.Save(ctx, "G", "vm", oswl.Snapshot{{"id": 1}}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		stale, err := db.GetLastRecord(ctx, "G", "vm")
		if err != nil {
			t.Fatalf("GetLastRecord() error = %v", err)
		}
		if _, err := svc.Save(ctx, "G", "vm", oswl.Snapshot{{"id": 2}}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		other := oswl.NewService(&staleDatabase{Database: db, rec: stale}, oswl.NewNopLogger(), clock, testutil.NewStubIDGenerator())
		_, err = other.Save(ctx, "G", "vm", oswl.Snapshot{{"id": 3}})
		if !errors.Is(err, oswl.ErrConcurrentUpdate) {
			t.Errorf("Save() error = %v, want ErrConcurrentUpdate", err)
		}
	})

	t.Run("stale read fails after snapshot changed back", func(t *testing.T) {
		t.Parallel()
		db := testutil.NewTestDatabase(t)
		clock := testutil.FixedClock()
		svc := oswl.NewService(db, oswl.NewNopLogger(), clock, testutil.NewStubIDGenerator())
		ctx := context.Background()

		a := oswl.Snapshot{{"id": 1, "x": 1}, {"id": 2}}
		b := oswl.Snapshot{{"id": 1, "x": 2}}
		if _, err := svc.Save(ctx, "G", "vm", a); err != nil {
			t.Fatalf("Save(a) error = %v", err)
		}
		stale, err := db.GetLastRecord(ctx, "G", "vm")
		if err != nil {
			t.Fatalf("GetLastRecord() error = %v", err)
		}
		for _, s := range []oswl.Snapshot{b, a} {
			clock.Advance(time.Minute)
			if _, err := svc.Save(ctx, "G", "vm", s); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		}
		before := lastRecord(t, db)

		other := oswl.NewService(&staleDatabase{Database: db, rec: stale}, oswl.NewNopLogger(), clock, testutil.NewStubIDGenerator())
		_, err = other.Save(ctx, "G", "vm", oswl.Snapshot{{"id": 3}})
		if !errors.Is(err, oswl.ErrConcurrentUpdate) {
			t.Fatalf("Save() error = %v, want ErrConcurrentUpdate", err)
		}

		after := lastRecord(t, db)
		if !reflect.DeepEqual(after.ResourceData, before.ResourceData) {
			t.Errorf("accumulators overwritten by stale save:\nbefore %v\nafter  %v", before.ResourceData, after.ResourceData)
		}
		if got := len(after.ResourceData.Modified["1"]); got != 2 {
			t.Errorf("modified[1] has %d events, want 2", got)
		}
	})
}

// staleDatabase always hands out the same previously read record.
type staleDatabase struct {
	oswl.Database
	rec *oswl.Record
}

func (s *staleDatabase) GetLastRecord(context.Context, string, string) (*oswl.Record, error) {
	cp := *s.rec
	return &cp, nil
}

func TestService_Save_Concurrent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := oswl.Snapshot{{"id": 1, "n": i}}
			if _, err := f.svc.Save(ctx, "G", "vm", s); err != nil {
				errs <- fmt.Errorf("save %d: %w", i, err)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	recs, err := f.db.ListRecords(ctx, "G", "vm", 10)
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	// Every save after the first changed field n of id 1.
	if got := len(recs[0].ResourceData.Modified["1"]); got != 19 {
		t.Errorf("modified events = %d, want 19", got)
	}
}

func TestService_History(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	for day := range 3 {
		f.clock.Set(time.Date(2024, 1, 15+day, 9, 0, 0, 0, time.UTC))
		f.save(t, oswl.Snapshot{{"id": day}})
	}

	t.Run("newest first", func(t *testing.T) {
		recs, err := f.svc.History(ctx, "G", "vm", 2)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(recs) != 2 {
			t.Fatalf("got %d records, want 2", len(recs))
		}
		if recs[0].CreatedDate != "2024-01-17" || recs[1].CreatedDate != "2024-01-16" {
			t.Errorf("dates = %s, %s", recs[0].CreatedDate, recs[1].CreatedDate)
		}
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		if _, err := f.svc.History(ctx, "G", "vm", 0); err == nil {
			t.Error("History() expected error for limit 0")
		}
	})

	t.Run("record by date", func(t *testing.T) {
		rec, err := f.svc.Record(ctx, "G", "vm", "2024-01-15")
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if rec == nil || rec.CreatedDate != "2024-01-15" {
			t.Errorf("Record() = %+v, want 2024-01-15", rec)
		}
	})

	t.Run("latest record when date is empty", func(t *testing.T) {
		rec, err := f.svc.Record(ctx, "G", "vm", "")
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if rec == nil || rec.CreatedDate != "2024-01-17" {
			t.Errorf("Record() = %+v, want 2024-01-17", rec)
		}
	})

	t.Run("missing date returns nil", func(t *testing.T) {
		rec, err := f.svc.Record(ctx, "G", "vm", "2023-12-31")
		if err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if rec != nil {
			t.Errorf("Record() = %+v, want nil", rec)
		}
	})
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()
	for o, want := range map[oswl.Outcome]string{
		oswl.OutcomeUnchanged: "unchanged",
		oswl.OutcomeUpdated:   "updated",
		oswl.OutcomeCreated:   "created",
		oswl.Outcome(0):       "unknown",
	} {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}
}
