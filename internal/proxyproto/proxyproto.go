// Package proxyproto implements spec §4.9's wire protocol between the
// engine and a `command`/`proxy` helper child process: a line-delimited
// JSON request/response exchange over the child's stdin/stdout, plus two
// persistent chunk-framed pipes (passed as extra file descriptors) for
// the container payload itself. Requests and responses stay on one line
// each so either side can log or replay a session by eye, the same
// reasoning the WAL package gives for one-record-per-line.
package proxyproto

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"

	"uback/internal/ubackerr"
)

// maxFrameSize bounds one JSON request/response line. Adapter option
// maps are small; there is no legitimate reason for a frame this large.
const maxFrameSize = 1 << 20

// Fd numbers for the two stream pipes passed via ExtraFiles. Upload runs
// parent-to-child (engine pushing a container to a destination helper);
// Download runs child-to-parent (a destination's download or a source's
// stream).
const (
	FdUpload   = 3
	FdDownload = 4
)

// Request is one call against the adapter contract a proxy child
// implements: create_snapshot, list_snapshots, delete_snapshot,
// can_incremental, stream, list_backups, upload, download, delete, close.
type Request struct {
	Method string            `json:"method"`
	Args   map[string]string `json:"args,omitempty"`
}

// Response answers a Request. IDs carries list results (list_snapshots,
// list_backups); Fields carries scalar results (can_incremental, and the
// container type tag of a stream).
type Response struct {
	OK     bool              `json:"ok"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	IDs    []string          `json:"ids,omitempty"`
}

func writeFrame(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ubackerr.Wrap(ubackerr.KindHelperFailed, "encoding proxy frame", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return ubackerr.Wrap(ubackerr.KindHelperFailed, "writing proxy frame", err)
	}
	return nil
}

func readFrame(r *bufio.Reader, v any) error {
	line, err := r.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return ubackerr.New(ubackerr.KindHelperFailed, "proxy frame too large")
		}
		if errors.Is(err, io.EOF) {
			return ubackerr.New(ubackerr.KindHelperFailed, "proxy helper closed its output")
		}
		return ubackerr.Wrap(ubackerr.KindHelperFailed, "reading proxy frame", err)
	}
	if err := json.Unmarshal(line, v); err != nil {
		return ubackerr.Wrap(ubackerr.KindHelperFailed, "decoding proxy frame", err)
	}
	return nil
}

// writeStream copies r onto w as a sequence of length-prefixed chunks,
// terminated by a zero-length chunk. This lets a single persistent pipe
// carry many streams over the life of one proxy child, instead of
// relying on pipe closure (and therefore a fresh pipe) per call.
func writeStream(w io.Writer, r io.Reader) error {
	buf := make([]byte, 64*1024)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if err := writeChunk(w, buf[:n]); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			return writeChunk(w, nil)
		}
		if rerr != nil {
			return ubackerr.Wrap(ubackerr.KindHelperFailed, "reading stream payload", rerr)
		}
	}
}

func writeChunk(w io.Writer, p []byte) error {
	var lenBuf [4]byte
	putUint32(lenBuf[:], uint32(len(p)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return ubackerr.Wrap(ubackerr.KindHelperFailed, "writing stream chunk length", err)
	}
	if len(p) == 0 {
		return nil
	}
	if _, err := w.Write(p); err != nil {
		return ubackerr.Wrap(ubackerr.KindHelperFailed, "writing stream chunk", err)
	}
	return nil
}

// streamReader turns a chunk-framed pipe back into a plain io.Reader
// that returns io.EOF exactly once the terminating zero-length chunk
// arrives, without closing the underlying pipe.
type streamReader struct {
	r         io.Reader
	remaining int
	done      bool
}

func newStreamReader(r io.Reader) io.Reader {
	return &streamReader{r: r}
}

func (s *streamReader) Read(p []byte) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	if s.remaining == 0 {
		var lenBuf [4]byte
		if _, err := io.ReadFull(s.r, lenBuf[:]); err != nil {
			return 0, ubackerr.Wrap(ubackerr.KindHelperFailed, "reading stream chunk length", err)
		}
		n := int(uint32FromBytes(lenBuf[:]))
		if n == 0 {
			s.done = true
			return 0, io.EOF
		}
		s.remaining = n
	}
	toRead := len(p)
	if toRead > s.remaining {
		toRead = s.remaining
	}
	n, err := io.ReadFull(s.r, p[:toRead])
	s.remaining -= n
	if err != nil {
		return n, ubackerr.Wrap(ubackerr.KindHelperFailed, "reading stream chunk", err)
	}
	return n, nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func uint32FromBytes(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
