package state

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s) != 0 {
		t.Fatalf("expected empty state, got %v", s)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	s := State{"dest1": "20210101T000000.000"}
	if err := Save(path, s); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got["dest1"] != "20210101T000000.000" {
		t.Fatalf("got %v", got)
	}
}

func TestSaveFailsWithoutParentDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "state.json")
	if err := Save(path, State{}); err == nil {
		t.Fatalf("expected Save to fail when parent directory is absent")
	}
}
