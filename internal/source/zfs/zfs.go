// Package zfs implements the zfs-native source adapter: snapshots are
// `<dataset>@<id>`, streamed with `zfs send` (`-i <base>` for an
// incremental). Same out-of-scope framing as the btrfs adapter: this
// shells out to the real zfs binary rather than parsing its send format.
package zfs

import (
	"context"
	"io"
	"sort"
	"strings"

	"uback/internal/config"
	"uback/internal/execbackend"
	"uback/internal/source"
	"uback/internal/ubackerr"
)

func init() {
	source.Register("zfs", New)
}

type adapter struct {
	dataset string
	binary  string
}

func New(opts *config.Resolved) (source.Source, error) {
	if err := schema().Validate(opts); err != nil {
		return nil, err
	}
	dataset := opts.Get("dataset", "")
	if dataset == "" {
		return nil, ubackerr.Userf("zfs source requires dataset=")
	}
	return &adapter{dataset: dataset, binary: opts.Get("zfs-binary", "zfs")}, nil
}

func schema() config.Schema {
	return config.Schema{
		Kind: "zfs",
		Fields: map[string]config.FieldKind{
			"dataset":         config.Scalar,
			"key-file":        config.Scalar,
			"state-file":      config.Scalar,
			"full-interval":   config.Scalar,
			"reuse-snapshots": config.Scalar,
			"no-encryption":   config.Scalar,
			"zfs-binary":      config.Scalar,
		},
	}
}

func (a *adapter) Schema() config.Schema { return schema() }

func (a *adapter) snapName(id string) string { return a.dataset + "@" + id }

func (a *adapter) CreateSnapshot(ctx context.Context, id string) error {
	_, err := execbackend.Run(ctx, []string{a.binary, "snapshot", a.snapName(id)})
	return err
}

func (a *adapter) ListSnapshots(ctx context.Context) ([]string, error) {
	out, err := execbackend.Run(ctx, []string{a.binary, "list", "-H", "-o", "name", "-t", "snapshot", a.dataset})
	if err != nil {
		return nil, err
	}
	prefix := a.dataset + "@"
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

func (a *adapter) DeleteSnapshot(ctx context.Context, id string) error {
	_, err := execbackend.Run(ctx, []string{a.binary, "destroy", a.snapName(id)})
	return err
}

func (a *adapter) CanIncremental(base string) bool {
	ids, err := a.ListSnapshots(context.Background())
	if err != nil {
		return false
	}
	for _, id := range ids {
		if id == base {
			return true
		}
	}
	return false
}

func (a *adapter) Stream(ctx context.Context, snap, base string) (string, io.ReadCloser, error) {
	argv := []string{a.binary, "send"}
	if base != "" {
		if !a.CanIncremental(base) {
			return "", nil, ubackerr.New(ubackerr.KindChainBroken, "base snapshot missing for incremental send")
		}
		argv = append(argv, "-i", a.snapName(base))
	}
	argv = append(argv, a.snapName(snap))
	stream, err := execbackend.Stream(ctx, argv)
	if err != nil {
		return "", nil, err
	}
	return "zfs-send", stream, nil
}
