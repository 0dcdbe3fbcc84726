package deck

import (
	"crypto/rand"
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

// ULIDGenerator produces lexically sortable IDs timestamped by Clock, so
// IDs issued later sort after earlier ones.
type ULIDGenerator struct {
	Clock Clock
}

func (g ULIDGenerator) New() string {
	return ulid.MustNew(ulid.Timestamp(g.Clock.Now()), rand.Reader).String()
}

// Timer is a pending callback created by a TimerFactory.
type Timer interface {
	// Stop prevents the callback from firing. It returns false if the
	// callback already fired or the timer was already stopped.
	Stop() bool
}

// TimerFactory abstracts timer creation so schedulers can run on virtual
// time in tests.
type TimerFactory interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealTimers creates timers backed by time.AfterFunc.
type RealTimers struct{}

func (RealTimers) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
