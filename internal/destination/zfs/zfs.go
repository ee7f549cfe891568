// Package zfs implements the zfs destination: each backup is received
// into its own dataset snapshot via the real `zfs receive` binary,
// named directly by Backup ID.
package zfs

import (
	"context"
	"io"
	"sort"
	"strings"

	"uback/internal/config"
	"uback/internal/destination"
	"uback/internal/execbackend"
	"uback/internal/ubackerr"
)

func init() {
	destination.Register("zfs", New)
}

type adapter struct {
	dataset string
	prefix  string
	binary  string
}

func New(opts *config.Resolved) (destination.Destination, error) {
	if err := schema().Validate(opts); err != nil {
		return nil, err
	}
	dataset := opts.Get("dataset", "")
	if dataset == "" {
		return nil, ubackerr.Userf("zfs destination requires dataset=")
	}
	return &adapter{dataset: dataset, prefix: opts.Get("prefix", ""), binary: opts.Get("zfs-binary", "zfs")}, nil
}

func schema() config.Schema {
	return config.Schema{
		Kind: "zfs",
		Fields: map[string]config.FieldKind{
			"dataset":          config.Scalar,
			"prefix":           config.Scalar,
			"zfs-binary":       config.Scalar,
			"id":               config.Scalar,
			"key-file":         config.Scalar,
			"retention-policy": config.List,
		},
	}
}

func (a *adapter) Schema() config.Schema { return schema() }

func (a *adapter) snapName(id string) string { return a.dataset + "@" + a.prefix + id }

func (a *adapter) ListBackups(ctx context.Context) ([]string, error) {
	out, err := execbackend.Run(ctx, []string{a.binary, "list", "-H", "-o", "name", "-t", "snapshot", a.dataset})
	if err != nil {
		return nil, err
	}
	prefix := a.dataset + "@" + a.prefix
	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		if id, ok := strings.CutPrefix(line, prefix); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *adapter) Upload(ctx context.Context, id string, container io.Reader) error {
	return execbackend.Apply(ctx, []string{a.binary, "receive", a.snapName(id)}, container)
}

func (a *adapter) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	return execbackend.Stream(ctx, []string{a.binary, "send", a.snapName(id)})
}

func (a *adapter) Delete(ctx context.Context, id string) error {
	_, err := execbackend.Run(ctx, []string{a.binary, "destroy", a.snapName(id)})
	return err
}
