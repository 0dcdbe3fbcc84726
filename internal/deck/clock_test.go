package deck_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"scenedeck/internal/deck"
	"scenedeck/internal/testutil"
)

func TestULIDGenerator(t *testing.T) {
	clock := testutil.FixedClock()
	gen := deck.ULIDGenerator{Clock: clock}

	first := gen.New()
	clock.Advance(time.Second)
	second := gen.New()

	if len(first) != 26 || len(second) != 26 {
		t.Fatalf("ids %q, %q: want 26 characters", first, second)
	}
	if first >= second {
		t.Errorf("ids not ordered by time: %q >= %q", first, second)
	}

	id, err := ulid.ParseStrict(first)
	if err != nil {
		t.Fatalf("ParseStrict(%q) error = %v", first, err)
	}
	want := clock.Now().Add(-time.Second).UnixMilli()
	if got := int64(id.Time()); got != want {
		t.Errorf("id timestamp = %d, want %d", got, want)
	}
}

func TestUUIDGenerator_Unique(t *testing.T) {
	gen := deck.UUIDGenerator{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := gen.New()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
