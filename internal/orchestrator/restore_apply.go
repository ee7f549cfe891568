package orchestrator

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"uback/internal/execbackend"
	"uback/internal/ubackerr"
)

// restoreApply applies one container's decoded plaintext to dir,
// dispatching on the type tag a source adapter stamped into the
// container header. Mirrors the out-of-scope framing of the source
// adapters themselves (spec §1): restoring a tar stream means running
// tar, restoring a btrfs/zfs send stream means running the matching
// receive command, not reimplementing either format.
func restoreApply(ctx context.Context, typ string, body io.Reader, dir string) error {
	switch typ {
	case "tar", "mariabackup":
		return execbackend.Apply(ctx, []string{"tar", "-xf", "-", "-C", dir}, body)
	case "btrfs-send":
		return execbackend.Apply(ctx, []string{"btrfs", "receive", dir}, body)
	case "zfs-send":
		return execbackend.Apply(ctx, []string{"zfs", "receive", "-F", dir}, body)
	default:
		return writeRawPayload(dir, typ, body)
	}
}

// writeRawPayload is the fallback for a command/proxy source adapter's
// own, opaque type tag: the plaintext is written verbatim to a file
// named after the tag, since only that adapter's own tooling knows how
// to interpret it further.
func writeRawPayload(dir, typ string, body io.Reader) error {
	if typ == "" {
		typ = "payload"
	}
	f, err := os.Create(filepath.Join(dir, typ))
	if err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "writing restored payload", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, body); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "writing restored payload", err)
	}
	return nil
}
