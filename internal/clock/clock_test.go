package clock

import (
	"testing"
	"time"
)

func TestNextStrictlyIncreasing(t *testing.T) {
	c := New()
	prev := c.Next()
	for i := 0; i < 100; i++ {
		next := c.Next()
		if next <= prev {
			t.Fatalf("expected strictly increasing IDs, got %q then %q", prev, next)
		}
		prev = next
	}
}

func TestNextAdvancesWhenClockStalls(t *testing.T) {
	frozen := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newWithSource(func() time.Time { return frozen })

	a := c.Next()
	b := c.Next()
	if b <= a {
		t.Fatalf("expected %q > %q despite a stalled clock source", b, a)
	}

	msA, err := ParseMillis(a)
	if err != nil {
		t.Fatalf("ParseMillis(%q): %v", a, err)
	}
	msB, err := ParseMillis(b)
	if err != nil {
		t.Fatalf("ParseMillis(%q): %v", b, err)
	}
	if msB != msA+1 {
		t.Fatalf("expected stall to bump by exactly 1ms, got %d -> %d", msA, msB)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	id := FormatMillis(1609459200123)
	ms, err := ParseMillis(id)
	if err != nil {
		t.Fatalf("ParseMillis: %v", err)
	}
	if ms != 1609459200123 {
		t.Fatalf("got %d, want 1609459200123", ms)
	}
}
