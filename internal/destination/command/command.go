// Package command implements the `type=command` destination adapter:
// the engine spawns an external helper and speaks the proxy wire
// protocol (spec §4.9) to it on stdio.
package command

import (
	"context"
	"io"

	"uback/internal/config"
	"uback/internal/destination"
	"uback/internal/proxyproto"
	"uback/internal/ubackerr"
)

func init() {
	destination.Register("command", New)
}

type adapter struct {
	client *proxyproto.Client
}

func New(opts *config.Resolved) (destination.Destination, error) {
	prog := opts.Get("command", "")
	if prog == "" {
		return nil, ubackerr.Userf("command destination requires command=")
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
		"id":          config.Scalar,
	}}
}

func (a *adapter) ListBackups(ctx context.Context) ([]string, error) {
	resp, err := a.client.Call("list_backups", nil)
	if err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

func (a *adapter) Upload(ctx context.Context, id string, container io.Reader) error {
	_, err := a.client.CallWithUpload("upload", map[string]string{"id": id}, container)
	return err
}

func (a *adapter) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	_, r, err := a.client.CallWithDownload("download", map[string]string{"id": id})
	if err != nil {
		return nil, err
	}
	return io.NopCloser(r), nil
}

func (a *adapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Call("delete", map[string]string{"id": id})
	return err
}

func (a *adapter) Close() error { return a.client.Close() }
