// Package tar implements the default filesystem source adapter: a
// directory tree snapshotted by recording a cutoff marker and streamed
// with the real `tar` binary, incrementally via its mtime-based
// `--newer-mtime` selection. Grounded on spec §4.6 and the declared
// out-of-scope framing of "how tar is invoked".
package tar

import (
	"context"
	"fmt"
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
	source.Register("tar", New)
}

type adapter struct {
	path          string
	snapshotsPath string
	excludes      []string
	command       []string
}

// New constructs the tar adapter from its resolved options.
func New(opts *config.Resolved) (source.Source, error) {
	if err := schema().Validate(opts); err != nil {
		return nil, err
	}
	path := opts.Get("path", "")
	if path == "" {
		return nil, ubackerr.Userf("tar source requires path=")
	}
	snapshotsPath := opts.Get("snapshots-path", "")
	if snapshotsPath == "" {
		return nil, ubackerr.Userf("tar source requires snapshots-path=")
	}
	return &adapter{
		path:          path,
		snapshotsPath: snapshotsPath,
		excludes:      opts.List("exclude"),
		command:       opts.List("command"),
	}, nil
}

func schema() config.Schema {
	return config.Schema{
		Kind: "tar",
		Fields: map[string]config.FieldKind{
			"path":            config.Scalar,
			"key-file":        config.Scalar,
			"state-file":      config.Scalar,
			"snapshots-path":  config.Scalar,
			"full-interval":   config.Scalar,
			"reuse-snapshots": config.Scalar,
			"no-encryption":   config.Scalar,
			"command":         config.List,
			"exclude":         config.List,
		},
	}
}

func (a *adapter) Schema() config.Schema { return schema() }

func (a *adapter) markerPath(id string) string {
	return filepath.Join(a.snapshotsPath, id)
}

func (a *adapter) CreateSnapshot(ctx context.Context, id string) error {
	if err := os.MkdirAll(a.snapshotsPath, 0755); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "creating snapshots directory", err)
	}
	f, err := os.Create(a.markerPath(id))
	if err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "recording snapshot marker", err)
	}
	return f.Close()
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
		if !e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *adapter) DeleteSnapshot(ctx context.Context, id string) error {
	err := os.Remove(a.markerPath(id))
	if err != nil && !os.IsNotExist(err) {
		return ubackerr.Wrap(ubackerr.KindUser, "deleting snapshot marker", err)
	}
	return nil
}

func (a *adapter) CanIncremental(base string) bool {
	_, err := os.Stat(a.markerPath(base))
	return err == nil
}

func (a *adapter) Stream(ctx context.Context, snap, base string) (string, io.ReadCloser, error) {
	argv := append([]string{}, a.command...)
	if len(argv) == 0 {
		argv = []string{"tar"}
	}
	argv = append(argv, "-cf", "-", "-C", a.path)
	for _, e := range a.excludes {
		argv = append(argv, "--exclude="+e)
	}
	if base != "" {
		info, err := os.Stat(a.markerPath(base))
		if err != nil {
			return "", nil, ubackerr.Wrap(ubackerr.KindChainBroken, "base snapshot marker missing", err)
		}
		argv = append(argv, fmt.Sprintf("--newer-mtime=@%d", info.ModTime().Unix()))
	}
	argv = append(argv, ".")

	stream, err := execbackend.Stream(ctx, argv)
	if err != nil {
		return "", nil, err
	}
	return "tar", stream, nil
}
