package orchestrator_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"uback/internal/clock"
	"uback/internal/config"
	"uback/internal/destination/fs"
	"uback/internal/keys"
	"uback/internal/orchestrator"

	_ "uback/internal/source/tar"
)

func newOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	ps, err := config.LoadPresetStore(t.TempDir())
	if err != nil {
		t.Fatalf("LoadPresetStore: %v", err)
	}
	return orchestrator.New(ps, clock.New(), zerolog.Nop())
}

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		out[e.Name()] = string(data)
	}
	return out
}

func assertTree(t *testing.T, dir string, want map[string]string) {
	t.Helper()
	got := readTree(t, dir)
	if len(got) != len(want) {
		t.Fatalf("tree mismatch: got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("tree mismatch at %q: got %q, want %q (full: got %v, want %v)", k, got[k], v, got, want)
		}
	}
}

// TestTarFullIncrementalRestore walks the S1/S2/S3 scenarios: a tar
// source excluding some paths, backed up full then twice incrementally
// to an fs destination, each step restored into a clean directory and
// checked against the expected tree.
func TestTarFullIncrementalRestore(t *testing.T) {
	srcPath := t.TempDir()
	snapsPath := t.TempDir()
	dstPath := t.TempDir()
	stateFile := filepath.Join(t.TempDir(), "state.json")

	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(srcPath, name), []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	mustMkdir := func(name string) {
		if err := os.MkdirAll(filepath.Join(srcPath, name), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
	}

	write("a", "av1")
	write("c", "c")
	mustMkdir("d")
	if err := os.WriteFile(filepath.Join(srcPath, "d", "e"), []byte("e"), 0644); err != nil {
		t.Fatalf("writing d/e: %v", err)
	}

	o := newOrchestrator(t)
	srcOpts := fmt.Sprintf(
		"type=tar,path=%s,snapshots-path=%s,state-file=%s,no-encryption=1,@exclude=./c,@exclude=./d",
		srcPath, snapsPath, stateFile,
	)
	dstOpts := fmt.Sprintf("type=fs,path=%s", dstPath)
	ctx := context.Background()

	restoreInto := func(backupID string) string {
		dir := t.TempDir()
		if err := o.Restore(ctx, dstOpts, backupID, dir, ""); err != nil {
			t.Fatalf("Restore(%q): %v", backupID, err)
		}
		return dir
	}

	// S1: full backup, exclusions honored.
	id1, err := o.Backup(ctx, srcOpts, dstOpts, false, true)
	if err != nil {
		t.Fatalf("Backup (S1): %v", err)
	}
	assertTree(t, restoreInto(id1), map[string]string{"a": "av1"})

	time.Sleep(1100 * time.Millisecond) // cross tar's one-second mtime granularity

	// S2: grow the file set, incremental backup.
	write("b", "bv1")
	id2, err := o.Backup(ctx, srcOpts, dstOpts, false, true)
	if err != nil {
		t.Fatalf("Backup (S2): %v", err)
	}
	if id2 == id1 {
		t.Fatalf("S2 backup id did not change: %s", id2)
	}
	assertTree(t, restoreInto(id2), map[string]string{"a": "av1", "b": "bv1"})

	time.Sleep(1100 * time.Millisecond)

	// S3: modify a file, incremental backup.
	write("a", "av2")
	id3, err := o.Backup(ctx, srcOpts, dstOpts, false, true)
	if err != nil {
		t.Fatalf("Backup (S3): %v", err)
	}
	assertTree(t, restoreInto(id3), map[string]string{"a": "av2", "b": "bv1"})

	// restoring with no backup-id picks the newest automatically
	assertTree(t, restoreInto(""), map[string]string{"a": "av2", "b": "bv1"})
}

func TestBackupForceProducesFull(t *testing.T) {
	srcPath := t.TempDir()
	snapsPath := t.TempDir()
	dstPath := t.TempDir()
	stateFile := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(filepath.Join(srcPath, "a"), []byte("av1"), 0644); err != nil {
		t.Fatalf("writing a: %v", err)
	}

	o := newOrchestrator(t)
	srcOpts := fmt.Sprintf("type=tar,path=%s,snapshots-path=%s,state-file=%s,no-encryption=1", srcPath, snapsPath, stateFile)
	dstOpts := fmt.Sprintf("type=fs,path=%s", dstPath)
	ctx := context.Background()

	id1, err := o.Backup(ctx, srcOpts, dstOpts, false, true)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if got := id1[len(id1)-len("-full"):]; got != "-full" {
		t.Fatalf("expected a full backup id, got %s", id1)
	}

	time.Sleep(1100 * time.Millisecond)

	id2, err := o.Backup(ctx, srcOpts, dstOpts, true, true)
	if err != nil {
		t.Fatalf("Backup (force): %v", err)
	}
	if got := id2[len(id2)-len("-full"):]; got != "-full" {
		t.Fatalf("expected a forced backup to be full, got %s", id2)
	}
}

// TestBackupEncryptedWithFullIntervalAndAutomaticPrune exercises the
// option strings the real fixtures use on both sides of a backup: a
// source with `full-interval=weekly`, and a destination carrying its own
// `key-file=` (read back by Restore's identityFor(dstOpts)) plus an
// `@retention-policy` applied automatically after upload.
func TestBackupEncryptedWithFullIntervalAndAutomaticPrune(t *testing.T) {
	srcPath := t.TempDir()
	snapsPath := t.TempDir()
	dstPath := t.TempDir()
	stateFile := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(filepath.Join(srcPath, "a"), []byte("av1"), 0644); err != nil {
		t.Fatalf("writing a: %v", err)
	}

	pair, err := keys.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	keyDir := t.TempDir()
	pubFile := filepath.Join(keyDir, "backup.pub")
	privFile := filepath.Join(keyDir, "backup.key")
	if err := os.WriteFile(pubFile, []byte(pair.Public), 0644); err != nil {
		t.Fatalf("writing pub key: %v", err)
	}
	if err := os.WriteFile(privFile, []byte(pair.Private), 0644); err != nil {
		t.Fatalf("writing priv key: %v", err)
	}

	o := newOrchestrator(t)
	srcOpts := fmt.Sprintf(
		"type=tar,path=%s,snapshots-path=%s,state-file=%s,key-file=%s,full-interval=weekly",
		srcPath, snapsPath, stateFile, pubFile,
	)
	dstOpts := fmt.Sprintf("type=fs,path=%s,key-file=%s,@retention-policy=daily=3", dstPath, privFile)
	ctx := context.Background()

	id, err := o.Backup(ctx, srcOpts, dstOpts, false, false)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	dir := t.TempDir()
	if err := o.Restore(ctx, dstOpts, id, dir, ""); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	assertTree(t, dir, map[string]string{"a": "av1"})
}

func TestListAndPruneSnapshots(t *testing.T) {
	srcPath := t.TempDir()
	snapsPath := t.TempDir()
	dstPath := t.TempDir()
	stateFile := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(filepath.Join(srcPath, "a"), []byte("av1"), 0644); err != nil {
		t.Fatalf("writing a: %v", err)
	}

	o := newOrchestrator(t)
	srcOpts := fmt.Sprintf("type=tar,path=%s,snapshots-path=%s,state-file=%s,no-encryption=1", srcPath, snapsPath, stateFile)
	dstOpts := fmt.Sprintf("type=fs,path=%s", dstPath)
	ctx := context.Background()

	if _, err := o.Backup(ctx, srcOpts, dstOpts, false, true); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	snaps, err := o.List(ctx, "snapshots", srcOpts)
	if err != nil {
		t.Fatalf("List snapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected exactly one retained snapshot, got %v", snaps)
	}

	backups, err := o.List(ctx, "backups", dstOpts)
	if err != nil {
		t.Fatalf("List backups: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected exactly one backup, got %v", backups)
	}

	if err := o.Prune(ctx, "snapshots", srcOpts); err != nil {
		t.Fatalf("Prune snapshots: %v", err)
	}
	snaps, err = o.List(ctx, "snapshots", srcOpts)
	if err != nil {
		t.Fatalf("List snapshots after prune: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("expected the referenced snapshot to survive prune, got %v", snaps)
	}
}

// TestPruneBackupsRetention reproduces the six-backup daily=3 retention
// scenario: backups on 2021-01-01..06 alternating full/incremental, and
// after prune only 03-full, 04-from-03, 05-full and 06-from-05 survive
// (the three newest daily buckets keep 04, 05 and 06; 04 then pulls in
// its full ancestor 03).
func TestPruneBackupsRetention(t *testing.T) {
	dstPath := t.TempDir()
	o := newOrchestrator(t)
	dstOpts := fmt.Sprintf("type=fs,path=%s,@retention-policy=daily=3", dstPath)
	ctx := context.Background()

	fsOpts, err := config.Resolve(fmt.Sprintf("type=fs,path=%s", dstPath), nil)
	if err != nil {
		t.Fatalf("resolving fs options: %v", err)
	}
	d, err := fs.New(fsOpts)
	if err != nil {
		t.Fatalf("constructing fs destination directly: %v", err)
	}

	ids := []string{
		"20210101T000000.000-full",
		"20210102T000000.000-from-20210101T000000.000",
		"20210103T000000.000-full",
		"20210104T000000.000-from-20210103T000000.000",
		"20210105T000000.000-full",
		"20210106T000000.000-from-20210105T000000.000",
	}
	for _, id := range ids {
		if err := d.Upload(ctx, id, bytes.NewReader([]byte(id))); err != nil {
			t.Fatalf("uploading fixture backup %s: %v", id, err)
		}
	}

	if err := o.Prune(ctx, "backups", dstOpts); err != nil {
		t.Fatalf("Prune backups: %v", err)
	}

	kept, err := o.List(ctx, "backups", dstOpts)
	if err != nil {
		t.Fatalf("List backups after prune: %v", err)
	}
	want := []string{
		"20210103T000000.000-full",
		"20210104T000000.000-from-20210103T000000.000",
		"20210105T000000.000-full",
		"20210106T000000.000-from-20210105T000000.000",
	}
	if len(kept) != len(want) {
		t.Fatalf("got %v, want %v", kept, want)
	}
	for i := range want {
		if kept[i] != want[i] {
			t.Fatalf("got %v, want %v", kept, want)
		}
	}
}
