package main

import (
	"context"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"uback/internal/config"
	"uback/internal/destination"
	"uback/internal/proxyproto"
	"uback/internal/source"
	"uback/internal/ubackerr"
)

func newProxyCommand() *cobra.Command {
	var proxyType, side string
	cmd := &cobra.Command{
		Use:    "proxy",
		Short:  "Run a built-in source or destination adapter as a proxy child (internal use)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveProxyArgs(proxyType, args)
			if err != nil {
				return err
			}
			switch side {
			case "source":
				src, err := source.New(opts)
				if err != nil {
					return err
				}
				return proxyproto.Serve(&sourceHandler{src: src})
			case "destination":
				dst, err := destination.New(opts)
				if err != nil {
					return err
				}
				return proxyproto.Serve(&destinationHandler{dst: dst})
			default:
				return ubackerr.Userf("proxy requires --side=source or --side=destination")
			}
		},
	}
	cmd.Flags().StringVar(&proxyType, "proxy-type", "", "built-in adapter type this proxy wraps")
	cmd.Flags().StringVar(&side, "side", "", "\"source\" or \"destination\"")
	return cmd
}

// resolveProxyArgs rebuilds a Resolved option set from the flattened
// "key=value"/"@key=value" tokens config.FlattenArgs produced on the
// parent side (spec §4.9), injecting the proxy-type as the adapter's
// own `type` discriminator.
func resolveProxyArgs(proxyType string, args []string) (*config.Resolved, error) {
	pairs := []config.Pair{{Key: "type", Value: proxyType}}
	for _, arg := range args {
		key, value, _ := strings.Cut(arg, "=")
		pairs = append(pairs, config.Pair{Key: key, Value: value})
	}
	return config.Render(pairs)
}

// sourceHandler adapts a source.Source to proxyproto.Handler.
type sourceHandler struct{ src source.Source }

func (h *sourceHandler) Call(method string, args map[string]string) (proxyproto.Response, error) {
	ctx := context.Background()
	switch method {
	case "create_snapshot":
		if err := h.src.CreateSnapshot(ctx, args["id"]); err != nil {
			return proxyproto.Response{}, err
		}
		return proxyproto.Response{OK: true}, nil
	case "list_snapshots":
		ids, err := h.src.ListSnapshots(ctx)
		if err != nil {
			return proxyproto.Response{}, err
		}
		return proxyproto.Response{OK: true, IDs: ids}, nil
	case "delete_snapshot":
		if err := h.src.DeleteSnapshot(ctx, args["id"]); err != nil {
			return proxyproto.Response{}, err
		}
		return proxyproto.Response{OK: true}, nil
	case "can_incremental":
		can := "false"
		if h.src.CanIncremental(args["base"]) {
			can = "true"
		}
		return proxyproto.Response{OK: true, Fields: map[string]string{"can_incremental": can}}, nil
	default:
		return proxyproto.Response{}, ubackerr.Userf("source proxy: unknown method %q", method)
	}
}

func (h *sourceHandler) CallWithUpload(method string, args map[string]string, payload io.Reader) (proxyproto.Response, error) {
	return proxyproto.Response{}, ubackerr.Userf("source proxy: unsupported upload method %q", method)
}

func (h *sourceHandler) CallWithDownload(method string, args map[string]string) (proxyproto.Response, io.Reader, error) {
	if method != "stream" {
		return proxyproto.Response{}, nil, ubackerr.Userf("source proxy: unknown method %q", method)
	}
	typ, r, err := h.src.Stream(context.Background(), args["snap"], args["base"])
	if err != nil {
		return proxyproto.Response{}, nil, err
	}
	return proxyproto.Response{OK: true, Fields: map[string]string{"type": typ}}, r, nil
}

// destinationHandler adapts a destination.Destination to proxyproto.Handler.
type destinationHandler struct{ dst destination.Destination }

func (h *destinationHandler) Call(method string, args map[string]string) (proxyproto.Response, error) {
	ctx := context.Background()
	switch method {
	case "list_backups":
		ids, err := h.dst.ListBackups(ctx)
		if err != nil {
			return proxyproto.Response{}, err
		}
		return proxyproto.Response{OK: true, IDs: ids}, nil
	case "delete":
		if err := h.dst.Delete(ctx, args["id"]); err != nil {
			return proxyproto.Response{}, err
		}
		return proxyproto.Response{OK: true}, nil
	default:
		return proxyproto.Response{}, ubackerr.Userf("destination proxy: unknown method %q", method)
	}
}

func (h *destinationHandler) CallWithUpload(method string, args map[string]string, payload io.Reader) (proxyproto.Response, error) {
	if method != "upload" {
		return proxyproto.Response{}, ubackerr.Userf("destination proxy: unknown method %q", method)
	}
	if err := h.dst.Upload(context.Background(), args["id"], payload); err != nil {
		return proxyproto.Response{}, err
	}
	return proxyproto.Response{OK: true}, nil
}

func (h *destinationHandler) CallWithDownload(method string, args map[string]string) (proxyproto.Response, io.Reader, error) {
	if method != "download" {
		return proxyproto.Response{}, nil, ubackerr.Userf("destination proxy: unknown method %q", method)
	}
	r, err := h.dst.Download(context.Background(), args["id"])
	if err != nil {
		return proxyproto.Response{}, nil, err
	}
	return proxyproto.Response{OK: true}, r, nil
}
