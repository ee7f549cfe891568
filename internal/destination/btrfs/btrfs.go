// Package btrfs implements the btrfs destination: each backup is
// received into its own subvolume via the real `btrfs receive` binary
// (spec §4.7), named directly by Backup ID so listing needs no separate
// index.
package btrfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"uback/internal/config"
	"uback/internal/destination"
	"uback/internal/execbackend"
	"uback/internal/ubackerr"
)

func init() {
	destination.Register("btrfs", New)
}

type adapter struct {
	path   string
	prefix string
	binary string
}

func New(opts *config.Resolved) (destination.Destination, error) {
	if err := schema().Validate(opts); err != nil {
		return nil, err
	}
	path := opts.Get("path", "")
	if path == "" {
		return nil, ubackerr.Userf("btrfs destination requires path=")
	}
	return &adapter{path: path, prefix: opts.Get("prefix", ""), binary: opts.Get("btrfs-binary", "btrfs")}, nil
}

func schema() config.Schema {
	return config.Schema{
		Kind: "btrfs",
		Fields: map[string]config.FieldKind{
			"path":             config.Scalar,
			"prefix":           config.Scalar,
			"id":               config.Scalar,
			"key-file":         config.Scalar,
			"btrfs-binary":     config.Scalar,
			"retention-policy": config.List,
		},
	}
}

func (a *adapter) Schema() config.Schema { return schema() }

func (a *adapter) subvol(id string) string { return filepath.Join(a.path, a.prefix+id) }

func (a *adapter) ListBackups(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(a.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindUser, "listing backups", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if a.prefix != "" {
			id, ok := strings.CutPrefix(name, a.prefix)
			if !ok {
				continue
			}
			ids = append(ids, id)
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

// Upload receives into a fresh staging directory (btrfs receive names
// the subvolume it creates after whatever the stream embeds) and then
// renames the single resulting entry to the backup id, so a reader never
// observes a partially received subvolume under its final name.
func (a *adapter) Upload(ctx context.Context, id string, container io.Reader) error {
	if err := os.MkdirAll(a.path, 0755); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "creating destination directory", err)
	}
	staging, err := os.MkdirTemp(a.path, ".uback-receive-*")
	if err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "creating receive staging directory", err)
	}
	defer os.RemoveAll(staging)

	if err := execbackend.Apply(ctx, []string{a.binary, "receive", staging}, container); err != nil {
		return err
	}
	entries, err := os.ReadDir(staging)
	if err != nil || len(entries) != 1 {
		return ubackerr.New(ubackerr.KindHelperFailed, "btrfs receive did not produce exactly one subvolume")
	}
	return os.Rename(filepath.Join(staging, entries[0].Name()), a.subvol(id))
}

func (a *adapter) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	if _, err := os.Stat(a.subvol(id)); err != nil {
		return nil, ubackerr.Userf("no such backup: %s", id)
	}
	return execbackend.Stream(ctx, []string{a.binary, "send", a.subvol(id)})
}

func (a *adapter) Delete(ctx context.Context, id string) error {
	_, err := execbackend.Run(ctx, []string{a.binary, "subvolume", "delete", a.subvol(id)})
	return err
}
