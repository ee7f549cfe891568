// Package proxydst implements the `type=proxy` destination adapter: the
// engine re-execs the uback binary with a `proxy` subcommand, optionally
// behind an invocation prefix such as `ssh host` or `sudo` (spec §4.9).
package proxydst

import (
	"context"
	"io"
	"os"

	"uback/internal/config"
	"uback/internal/destination"
	"uback/internal/proxyproto"
	"uback/internal/ubackerr"
)

func init() {
	destination.Register("proxy", New)
}

type adapter struct {
	client *proxyproto.Client
}

func New(opts *config.Resolved) (destination.Destination, error) {
	proxyType := opts.Get("proxy-type", "")
	if proxyType == "" {
		return nil, ubackerr.Userf("proxy destination requires proxy-type=")
	}

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
	args = append(args, "proxy", "--proxy-type="+proxyType, "--side=destination")
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
		"id":         config.Scalar,
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
