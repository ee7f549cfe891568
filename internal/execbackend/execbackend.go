// Package execbackend is the shared plumbing behind every adapter that
// shells out to a real backend binary (tar, btrfs, zfs, mariabackup):
// spec §1 explicitly puts "the specific implementation of each adapter
// backend (how tar is invoked, how btrfs send is parsed)" out of scope,
// so these are straightforward os/exec wrappers, not a reimplementation
// of any backend's format. Streaming a child's stdout through to the
// container encoder is exactly the "independent streams wired through
// OS pipes" model spec §5 describes.
package execbackend

import (
	"context"
	"io"
	"os/exec"

	"uback/internal/ubackerr"
)

// Stream runs argv[0] with argv[1:], returning its stdout as a stream
// that, on Close, waits for the process and surfaces a non-zero exit as
// a HelperFailed error.
func Stream(ctx context.Context, argv []string) (io.ReadCloser, error) {
	if len(argv) == 0 {
		return nil, ubackerr.New(ubackerr.KindUser, "empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindHelperFailed, "opening helper stdout", err)
	}
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindHelperFailed, "starting "+argv[0], err)
	}
	return &cmdReadCloser{cmd: cmd, stdout: stdout}, nil
}

// Apply runs argv[0] with argv[1:], feeding payload to its stdin, and
// waits for it to finish. Used by restore's apply routines (untar,
// btrfs/zfs receive).
func Apply(ctx context.Context, argv []string, payload io.Reader) error {
	if len(argv) == 0 {
		return ubackerr.New(ubackerr.KindUser, "empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = payload
	if out, err := cmd.CombinedOutput(); err != nil {
		return ubackerr.Wrap(ubackerr.KindHelperFailed, argv[0]+" failed: "+string(out), err)
	}
	return nil
}

// Run executes argv and returns its combined output, for adapters that
// need a quick synchronous call (listing subvolumes, deleting a dataset).
func Run(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, ubackerr.New(ubackerr.KindUser, "empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, ubackerr.Wrap(ubackerr.KindHelperFailed, argv[0]+" failed: "+string(out), err)
	}
	return out, nil
}

type cmdReadCloser struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
}

func (c *cmdReadCloser) Read(p []byte) (int, error) {
	return c.stdout.Read(p)
}

func (c *cmdReadCloser) Close() error {
	c.stdout.Close()
	if err := c.cmd.Wait(); err != nil {
		return ubackerr.Wrap(ubackerr.KindHelperFailed, c.cmd.Path+" exited with an error", err)
	}
	return nil
}
