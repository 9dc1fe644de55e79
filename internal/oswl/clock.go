package oswl

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// ULIDGenerator produces lexically sortable ULIDs.
type ULIDGenerator struct{}

func (ULIDGenerator) New() string { return ulid.Make().String() }

const dateLayout = "2006-01-02"

// Date is a calendar date in YYYY-MM-DD form.
type Date string

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// ParseDate validates s as a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(s), nil
}

func (d Date) String() string { return string(d) }

// FormatTimeOfDay renders the time-of-day part of t in ISO 8601 form:
// HH:MM:SS, with a microsecond fraction only when it is non-zero.
func FormatTimeOfDay(t time.Time) string {
	if t.Nanosecond()/1000 == 0 {
		return t.Format("15:04:05")
	}
	return t.Format("15:04:05.000000")
}
