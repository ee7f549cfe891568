// Package command implements the `type=command` source adapter: the
// engine spawns an external helper and speaks the proxy wire protocol
// (spec §4.9) to it on stdio, trusting it to implement the same source
// adapter contract and accept the same option keys.
package command

import (
	"context"
	"io"

	"uback/internal/config"
	"uback/internal/proxyproto"
	"uback/internal/source"
	"uback/internal/ubackerr"
)

func init() {
	source.Register("command", New)
}

type adapter struct {
	client *proxyproto.Client
}

func New(opts *config.Resolved) (source.Source, error) {
	prog := opts.Get("command", "")
	if prog == "" {
		return nil, ubackerr.Userf("command source requires command=")
	}
	args := opts.List("command-arg")
	args = append(args, config.FlattenArgs(opts, "type", "command", "command-arg")...)
	c, err := proxyproto.Start(prog, args)
	if err != nil {
		return nil, err
	}
	return &adapter{client: c}, nil
}

func (a *adapter) Schema() config.Schema {
	return config.Schema{Kind: "command", Fields: map[string]config.FieldKind{
		"command":     config.Scalar,
		"command-arg": config.List,
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

// Close stops the spawned helper. Not part of the Source interface, and
// the orchestrator does not call it; without it the helper runs until its
// stdin closes when the engine process exits.
func (a *adapter) Close() error { return a.client.Close() }
