// Package proxysrc implements the `type=proxy` source adapter: the
// engine re-execs the uback binary itself with a `proxy` subcommand,
// optionally wrapped in an invocation prefix such as `ssh host` or
// `sudo`, so a built-in adapter can run on another host or under
// elevated privileges without the orchestrating process holding those
// privileges (spec §4.9).
package proxysrc

import (
	"context"
	"io"
	"os"

	"uback/internal/config"
	"uback/internal/proxyproto"
	"uback/internal/source"
	"uback/internal/ubackerr"
)

func init() {
	source.Register("proxy", New)
}

type adapter struct {
	client *proxyproto.Client
}

func New(opts *config.Resolved) (source.Source, error) {
	proxyType := opts.Get("proxy-type", "")
	if proxyType == "" {
		return nil, ubackerr.Userf("proxy source requires proxy-type=")
	}

	// `command`, if set, is an invocation prefix (e.g. "ssh", "host") that
	// the uback binary name and proxy arguments are appended after; with
	// no prefix the engine simply re-execs itself.
	prefix := opts.List("command")
	var prog string
	var args []string
	if len(prefix) == 0 {
		self, err := os.Executable()
		if err != nil {
			return nil, ubackerr.Wrap(ubackerr.KindUser, "locating uback binary for proxy re-exec", err)
		}
		prog = self
	} else {
		prog = prefix[0]
		args = append(args, prefix[1:]...)
		args = append(args, "uback")
	}
	args = append(args, "proxy", "--proxy-type="+proxyType, "--side=source")
	args = append(args, config.FlattenArgs(opts, "type", "proxy-type", "command")...)

	c, err := proxyproto.Start(prog, args)
	if err != nil {
		return nil, err
	}
	return &adapter{client: c}, nil
}

func (a *adapter) Schema() config.Schema {
	return config.Schema{Kind: "proxy", Fields: map[string]config.FieldKind{
		"proxy-type": config.Scalar,
		"command":    config.List,
	}}
}

func (a *adapter) CreateSnapshot(ctx context.Context, id string) error {
	_, err := a.client.Call("create_snapshot", map[string]string{"id": id})
	return err
}

func (a *adapter) ListSnapshots(ctx context.Context) ([]string, error) {
	resp, err := a.client.Call("list_snapshots", nil)
	if err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

func (a *adapter) DeleteSnapshot(ctx context.Context, id string) error {
	_, err := a.client.Call("delete_snapshot", map[string]string{"id": id})
	return err
}

func (a *adapter) CanIncremental(base string) bool {
	resp, err := a.client.Call("can_incremental", map[string]string{"base": base})
	if err != nil {
		return false
	}
	return resp.Fields["can_incremental"] == "true"
}

func (a *adapter) Stream(ctx context.Context, snap, base string) (string, io.ReadCloser, error) {
	resp, r, err := a.client.CallWithDownload("stream", map[string]string{"snap": snap, "base": base})
	if err != nil {
		return "", nil, err
	}
	return resp.Fields["type"], io.NopCloser(r), nil
}

func (a *adapter) Close() error { return a.client.Close() }
