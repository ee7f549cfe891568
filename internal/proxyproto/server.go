package proxyproto

import (
	"bufio"
	"io"
	"os"

	"uback/internal/ubackerr"
)

// Handler is implemented by whatever built-in adapter the proxy child
// wraps. Methods receive the already-parsed args map straight from the
// Request; a method that doesn't apply to this handler should return an
// error naming that instead of panicking.
type Handler interface {
	// Call handles a stream-free request (list_snapshots, list_backups,
	// delete_snapshot, delete, can_incremental, create_snapshot).
	Call(method string, args map[string]string) (Response, error)
	// CallWithUpload handles a request whose payload arrives from the
	// engine (upload).
	CallWithUpload(method string, args map[string]string, payload io.Reader) (Response, error)
	// CallWithDownload handles a request whose payload the child sends
	// back to the engine (download, stream).
	CallWithDownload(method string, args map[string]string) (Response, io.Reader, error)
}

// uploadMethods and downloadMethods name the proxy methods that carry a
// stream on the corresponding pipe. Everything else is stream-free.
var uploadMethods = map[string]bool{"upload": true}
var downloadMethods = map[string]bool{"download": true, "stream": true}

// Serve runs the child side of the protocol: read requests from stdin,
// dispatch to h, write responses to stdout, until stdin closes or a
// "close" request arrives. It owns fds FdUpload/FdDownload for the
// stream pipes the parent set up via ExtraFiles.
func Serve(h Handler) error {
	upload := os.NewFile(FdUpload, "proxy-upload")
	download := os.NewFile(FdDownload, "proxy-download")
	if upload == nil || download == nil {
		return ubackerr.New(ubackerr.KindHelperFailed, "proxy child missing stream file descriptors")
	}
	defer upload.Close()
	defer download.Close()

	in := bufio.NewReaderSize(os.Stdin, maxFrameSize)
	for {
		if _, err := in.Peek(1); err == io.EOF {
			return nil // parent closed stdin; normal shutdown
		}
		var req Request
		if err := readFrame(in, &req); err != nil {
			return err
		}

		if req.Method == "close" {
			writeFrame(os.Stdout, Response{OK: true})
			return nil
		}

		switch {
		case uploadMethods[req.Method]:
			resp, err := h.CallWithUpload(req.Method, req.Args, newStreamReader(upload))
			if err != nil {
				resp = Response{OK: false, Error: err.Error()}
			}
			if err := writeFrame(os.Stdout, resp); err != nil {
				return err
			}
		case downloadMethods[req.Method]:
			resp, stream, err := h.CallWithDownload(req.Method, req.Args)
			if err != nil {
				if err := writeFrame(os.Stdout, Response{OK: false, Error: err.Error()}); err != nil {
					return err
				}
				continue
			}
			if err := writeFrame(os.Stdout, resp); err != nil {
				return err
			}
			if err := writeStream(download, stream); err != nil {
				return err
			}
		default:
			resp, err := h.Call(req.Method, req.Args)
			if err != nil {
				resp = Response{OK: false, Error: err.Error()}
			}
			if err := writeFrame(os.Stdout, resp); err != nil {
				return err
			}
		}
	}
}
