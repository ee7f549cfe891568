// Package fs implements the local-filesystem destination: each backup is
// a file `<path>/<prefix><backup-id>.ubkp`, written via temp-then-rename
// so an upload is atomically all-or-nothing (spec §4.7).
package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"uback/internal/config"
	"uback/internal/destination"
	"uback/internal/ubackerr"
)

func init() {
	destination.Register("fs", New)
}

const suffix = ".ubkp"

type adapter struct {
	path   string
	prefix string
}

func New(opts *config.Resolved) (destination.Destination, error) {
	if err := schema().Validate(opts); err != nil {
		return nil, err
	}
	path := opts.Get("path", "")
	if path == "" {
		return nil, ubackerr.Userf("fs destination requires path=")
	}
	return &adapter{path: path, prefix: opts.Get("prefix", "")}, nil
}

func schema() config.Schema {
	return config.Schema{
		Kind: "fs",
		Fields: map[string]config.FieldKind{
			"path":             config.Scalar,
			"prefix":           config.Scalar,
			"id":               config.Scalar,
			"key-file":         config.Scalar,
			"retention-policy": config.List,
		},
	}
}

func (a *adapter) Schema() config.Schema { return schema() }

func (a *adapter) objectPath(id string) string {
	return filepath.Join(a.path, a.prefix+id+suffix)
}

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
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		name = strings.TrimSuffix(name, suffix)
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

func (a *adapter) Upload(ctx context.Context, id string, container io.Reader) error {
	if err := os.MkdirAll(a.path, 0755); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "creating destination directory", err)
	}
	tmp, err := os.CreateTemp(a.path, ".uback-upload-*")
	if err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "creating temp upload file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, container); err != nil {
		tmp.Close()
		return ubackerr.Wrap(ubackerr.KindNetwork, "writing backup payload", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ubackerr.Wrap(ubackerr.KindUser, "syncing backup payload", err)
	}
	if err := tmp.Close(); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "closing temp upload file", err)
	}
	if err := os.Rename(tmp.Name(), a.objectPath(id)); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "committing backup", err)
	}
	return nil
}

func (a *adapter) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	f, err := os.Open(a.objectPath(id))
	if os.IsNotExist(err) {
		return nil, ubackerr.Userf("no such backup: %s", id)
	}
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindUser, "opening backup", err)
	}
	return f, nil
}

func (a *adapter) Delete(ctx context.Context, id string) error {
	err := os.Remove(a.objectPath(id))
	if err != nil && !os.IsNotExist(err) {
		return ubackerr.Wrap(ubackerr.KindUser, "deleting backup", err)
	}
	return nil
}
