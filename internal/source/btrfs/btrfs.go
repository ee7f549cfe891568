// Package btrfs implements the btrfs-native source adapter: snapshots
// are read-only subvolumes under snapshots-path, streamed with
// `btrfs send` (optionally `-p <base>` for an incremental). Grounded on
// spec §4.6's btrfs built-in and, like the tar adapter, shells out to the
// real binary rather than reimplementing the send-stream format.
package btrfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"uback/internal/config"
	"uback/internal/execbackend"
	"uback/internal/source"
	"uback/internal/ubackerr"
)

func init() {
	source.Register("btrfs", New)
}

type adapter struct {
	dataset       string
	snapshotsPath string
	binary        string
}

func New(opts *config.Resolved) (source.Source, error) {
	if err := schema().Validate(opts); err != nil {
		return nil, err
	}
	dataset := opts.Get("dataset", "")
	if dataset == "" {
		return nil, ubackerr.Userf("btrfs source requires dataset=")
	}
	snapshotsPath := opts.Get("snapshots-path", "")
	if snapshotsPath == "" {
		return nil, ubackerr.Userf("btrfs source requires snapshots-path=")
	}
	return &adapter{dataset: dataset, snapshotsPath: snapshotsPath, binary: opts.Get("btrfs-binary", "btrfs")}, nil
}

func schema() config.Schema {
	return config.Schema{
		Kind: "btrfs",
		Fields: map[string]config.FieldKind{
			"dataset":         config.Scalar,
			"key-file":        config.Scalar,
			"state-file":      config.Scalar,
			"snapshots-path":  config.Scalar,
			"full-interval":   config.Scalar,
			"reuse-snapshots": config.Scalar,
			"no-encryption":   config.Scalar,
			"btrfs-binary":    config.Scalar,
		},
	}
}

func (a *adapter) Schema() config.Schema { return schema() }

func (a *adapter) subvol(id string) string { return filepath.Join(a.snapshotsPath, id) }

func (a *adapter) CreateSnapshot(ctx context.Context, id string) error {
	if err := os.MkdirAll(a.snapshotsPath, 0755); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "creating snapshots directory", err)
	}
	_, err := execbackend.Run(ctx, []string{a.binary, "subvolume", "snapshot", "-r", a.dataset, a.subvol(id)})
	return err
}

func (a *adapter) ListSnapshots(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(a.snapshotsPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindUser, "listing snapshots", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *adapter) DeleteSnapshot(ctx context.Context, id string) error {
	_, err := execbackend.Run(ctx, []string{a.binary, "subvolume", "delete", a.subvol(id)})
	return err
}

func (a *adapter) CanIncremental(base string) bool {
	_, err := os.Stat(a.subvol(base))
	return err == nil
}

func (a *adapter) Stream(ctx context.Context, snap, base string) (string, io.ReadCloser, error) {
	argv := []string{a.binary, "send"}
	if base != "" {
		if !a.CanIncremental(base) {
			return "", nil, ubackerr.New(ubackerr.KindChainBroken, "base subvolume missing for incremental send")
		}
		argv = append(argv, "-p", a.subvol(base))
	}
	argv = append(argv, a.subvol(snap))
	stream, err := execbackend.Stream(ctx, argv)
	if err != nil {
		return "", nil, err
	}
	return "btrfs-send", stream, nil
}
