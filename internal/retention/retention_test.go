package retention

import (
	"testing"
	"time"
)

func day2021(n int) time.Time {
	return time.Date(2021, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestApplyManualDailyWindow(t *testing.T) {
	items := []Item{
		{ID: "20210101T000000.000-full", Time: day2021(1), Full: true},
		{ID: "20210102T000000.000-from-20210101T000000.000-full", Time: day2021(2), Base: "20210101T000000.000-full"},
		{ID: "20210103T000000.000-full", Time: day2021(3), Full: true},
		{ID: "20210104T000000.000-from-20210103T000000.000-full", Time: day2021(4), Base: "20210103T000000.000-full"},
		{ID: "20210105T000000.000-full", Time: day2021(5), Full: true},
		{ID: "20210106T000000.000-from-20210105T000000.000-full", Time: day2021(6), Base: "20210105T000000.000-full"},
	}
	rules, err := ParseRules("daily=3")
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	kept := Apply(items, rules)

	want := map[string]bool{
		"20210103T000000.000-full": true,
		"20210104T000000.000-from-20210103T000000.000-full": true,
		"20210105T000000.000-full": true,
		"20210106T000000.000-from-20210105T000000.000-full": true,
	}
	if len(kept) != len(want) {
		t.Fatalf("kept = %v, want %v", kept, want)
	}
	for id := range want {
		if !kept[id] {
			t.Fatalf("expected %s to be kept; kept=%v", id, kept)
		}
	}
	if err := ValidateChain(items, kept); err != nil {
		t.Fatalf("ValidateChain: %v", err)
	}
}

func TestApplyKeepsAncestorOfNewFull(t *testing.T) {
	items := []Item{
		{ID: "20210105T000000.000-full", Time: day2021(5), Full: true},
		{ID: "20210106T000000.000-from-20210105T000000.000-full", Time: day2021(6), Base: "20210105T000000.000-full"},
		{ID: "b-full", Time: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC), Full: true},
	}
	rules, err := ParseRules("daily=3")
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	kept := Apply(items, rules)
	for _, id := range []string{"20210105T000000.000-full", "20210106T000000.000-from-20210105T000000.000-full", "b-full"} {
		if !kept[id] {
			t.Fatalf("expected %s kept; kept=%v", id, kept)
		}
	}
}

func TestParseRulesLiteralDuration(t *testing.T) {
	rules, err := ParseRules("3d=2, 12h=1")
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].BucketSeconds != 3*day {
		t.Fatalf("got bucket seconds %d, want %d", rules[0].BucketSeconds, 3*day)
	}
	if rules[1].BucketSeconds != 12*3600 {
		t.Fatalf("got bucket seconds %d, want %d", rules[1].BucketSeconds, 12*3600)
	}
}

func TestParseDurationAcceptsNamedBuckets(t *testing.T) {
	d, err := ParseDuration("weekly")
	if err != nil {
		t.Fatalf("ParseDuration(weekly): %v", err)
	}
	if d != 7*24*time.Hour {
		t.Fatalf("got %v, want %v", d, 7*24*time.Hour)
	}
	if d, err := ParseDuration("daily"); err != nil || d != 24*time.Hour {
		t.Fatalf("ParseDuration(daily) = %v, %v", d, err)
	}
	if d, err := ParseDuration("2d"); err != nil || d != 48*time.Hour {
		t.Fatalf("ParseDuration(2d) = %v, %v", d, err)
	}
}

func TestParseRulesRejectsGarbage(t *testing.T) {
	if _, err := ParseRules("daily"); err == nil {
		t.Fatalf("expected error for missing count")
	}
	if _, err := ParseRules("daily=0"); err == nil {
		t.Fatalf("expected error for zero keep-count")
	}
	if _, err := ParseRules("fortnightly=2"); err == nil {
		t.Fatalf("expected error for unrecognized bucket name")
	}
}

func TestValidateChainCatchesBrokenChain(t *testing.T) {
	items := []Item{
		{ID: "full", Time: day2021(1), Full: true},
		{ID: "inc", Time: day2021(2), Base: "full"},
	}
	kept := map[string]bool{"inc": true}
	if err := ValidateChain(items, kept); err == nil {
		t.Fatalf("expected ValidateChain to catch missing base")
	}
}
