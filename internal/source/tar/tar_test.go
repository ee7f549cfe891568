package tar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"uback/internal/config"
)

func resolve(t *testing.T, raw string) *config.Resolved {
	t.Helper()
	r, err := config.Resolve(raw, nil)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", raw, err)
	}
	return r
}

func TestNewRequiresPathAndSnapshotsPath(t *testing.T) {
	if _, err := New(resolve(t, "type=tar")); err == nil {
		t.Fatalf("expected error for missing path=")
	}
	if _, err := New(resolve(t, fmt.Sprintf("type=tar,path=%s", t.TempDir()))); err == nil {
		t.Fatalf("expected error for missing snapshots-path=")
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	path := t.TempDir()
	snaps := filepath.Join(t.TempDir(), "snaps")
	a, err := New(resolve(t, fmt.Sprintf("type=tar,path=%s,snapshots-path=%s", path, snaps)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if ids, err := a.ListSnapshots(ctx); err != nil || len(ids) != 0 {
		t.Fatalf("expected no snapshots before creation, got %v, %v", ids, err)
	}

	if err := a.CreateSnapshot(ctx, "20210101T000000.000"); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}
	if err := a.CreateSnapshot(ctx, "20210102T000000.000"); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	ids, err := a.ListSnapshots(ctx)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	want := []string{"20210101T000000.000", "20210102T000000.000"}
	if len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] {
		t.Fatalf("got %v, want %v", ids, want)
	}

	if !a.CanIncremental("20210101T000000.000") {
		t.Fatalf("expected CanIncremental true for an existing marker")
	}
	if a.CanIncremental("20210103T000000.000") {
		t.Fatalf("expected CanIncremental false for a missing marker")
	}

	if err := a.DeleteSnapshot(ctx, "20210101T000000.000"); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}
	ids, _ = a.ListSnapshots(ctx)
	if len(ids) != 1 || ids[0] != "20210102T000000.000" {
		t.Fatalf("after delete, got %v", ids)
	}

	// deleting an already-missing marker is not an error
	if err := a.DeleteSnapshot(ctx, "20210101T000000.000"); err != nil {
		t.Fatalf("DeleteSnapshot of missing marker: %v", err)
	}
}

func TestStreamFullInvokesTarOverPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), []byte("av1"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	snaps := filepath.Join(t.TempDir(), "snaps")
	a, err := New(resolve(t, fmt.Sprintf("type=tar,path=%s,snapshots-path=%s", dir, snaps)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	typ, rc, err := a.Stream(ctx, "20210101T000000.000", "")
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer rc.Close()
	if typ != "tar" {
		t.Fatalf("got type %q, want tar", typ)
	}
	buf := make([]byte, 512)
	if _, err := rc.Read(buf); err != nil {
		t.Fatalf("reading tar stream: %v", err)
	}
}

func TestStreamIncrementalRequiresBaseMarker(t *testing.T) {
	dir := t.TempDir()
	snaps := filepath.Join(t.TempDir(), "snaps")
	a, err := New(resolve(t, fmt.Sprintf("type=tar,path=%s,snapshots-path=%s", dir, snaps)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	if err := a.CreateSnapshot(ctx, "20210101T000000.000"); err != nil {
		t.Fatalf("CreateSnapshot: %v", err)
	}

	if _, _, err := a.Stream(ctx, "20210102T000000.000", "missing-base"); err == nil {
		t.Fatalf("expected chain-broken error for a missing base marker")
	}

	typ, rc, err := a.Stream(ctx, "20210102T000000.000", "20210101T000000.000")
	if err != nil {
		t.Fatalf("Stream with a valid base: %v", err)
	}
	rc.Close()
	if typ != "tar" {
		t.Fatalf("got type %q, want tar", typ)
	}
}
