package proxyproto

import (
	"bufio"
	"io"
	"os"
	"os/exec"

	"uback/internal/ubackerr"
)

// Client is the engine's side of a spawned `command`/`proxy` helper: a
// child process speaking the adapter contract named in spec §4.9 over
// its stdio plus two dedicated stream pipes.
type Client struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	uploadW *os.File
	downloadR *os.File
}

// Start spawns command with args, wiring stdin/stdout for the
// request/response channel and a pair of persistent pipes for streamed
// container payloads (FdUpload, FdDownload in the child).
func Start(command string, args []string) (*Client, error) {
	uploadR, uploadW, err := os.Pipe()
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindHelperFailed, "creating upload pipe", err)
	}
	downloadR, downloadW, err := os.Pipe()
	if err != nil {
		uploadR.Close()
		uploadW.Close()
		return nil, ubackerr.Wrap(ubackerr.KindHelperFailed, "creating download pipe", err)
	}

	cmd := exec.Command(command, args...)
	cmd.ExtraFiles = []*os.File{uploadR, downloadW}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindHelperFailed, "opening helper stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindHelperFailed, "opening helper stdout", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindHelperFailed, "starting helper "+command, err)
	}
	uploadR.Close()
	downloadW.Close()

	return &Client{
		cmd:       cmd,
		stdin:     stdin,
		stdout:    bufio.NewReaderSize(stdout, maxFrameSize),
		uploadW:   uploadW,
		downloadR: downloadR,
	}, nil
}

// Call issues a request with no attached stream and waits for the reply.
func (c *Client) Call(method string, args map[string]string) (Response, error) {
	if err := writeFrame(c.stdin, Request{Method: method, Args: args}); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := readFrame(c.stdout, &resp); err != nil {
		return Response{}, err
	}
	if !resp.OK {
		return resp, ubackerr.New(ubackerr.KindHelperFailed, resp.Error)
	}
	return resp, nil
}

// CallWithUpload issues a request and then streams payload to the
// child over the upload pipe — used for destination upload.
func (c *Client) CallWithUpload(method string, args map[string]string, payload io.Reader) (Response, error) {
	if err := writeFrame(c.stdin, Request{Method: method, Args: args}); err != nil {
		return Response{}, err
	}
	if err := writeStream(c.uploadW, payload); err != nil {
		return Response{}, err
	}
	var resp Response
	if err := readFrame(c.stdout, &resp); err != nil {
		return Response{}, err
	}
	if !resp.OK {
		return resp, ubackerr.New(ubackerr.KindHelperFailed, resp.Error)
	}
	return resp, nil
}

// CallWithDownload issues a request and returns a reader over the
// stream the child sends back on the download pipe — used for
// destination download and source stream.
func (c *Client) CallWithDownload(method string, args map[string]string) (Response, io.Reader, error) {
	if err := writeFrame(c.stdin, Request{Method: method, Args: args}); err != nil {
		return Response{}, nil, err
	}
	var resp Response
	if err := readFrame(c.stdout, &resp); err != nil {
		return Response{}, nil, err
	}
	if !resp.OK {
		return resp, nil, ubackerr.New(ubackerr.KindHelperFailed, resp.Error)
	}
	return resp, newStreamReader(c.downloadR), nil
}

// Close signals the helper to exit and waits for it.
func (c *Client) Close() error {
	_, callErr := c.Call("close", nil)
	c.stdin.Close()
	c.uploadW.Close()
	c.downloadR.Close()
	waitErr := c.cmd.Wait()
	if callErr != nil {
		return callErr
	}
	if waitErr != nil {
		return ubackerr.Wrap(ubackerr.KindHelperFailed, "waiting for helper to exit", waitErr)
	}
	return nil
}
