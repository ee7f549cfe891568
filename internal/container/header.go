package container

import (
	"encoding/binary"
	"errors"
	"io"

	"uback/internal/ubackerr"
)

// magic identifies a uback container. version 0 means the payload
// follows in cleartext (no-encryption testing mode, spec §4.6's
// "no-encryption" key); version 1 means the payload is an age stream.
var magic = [4]byte{'U', 'B', 'A', 'K'}

const (
	versionPlain byte = 0
	versionAge   byte = 1
)

// Header is the container envelope's typed, streamable prefix: spec
// §4.1's "magic, a version byte, the type tag, and a recipient table".
// The recipient table itself is carried inside the age stream's own
// header when version is versionAge (age already names each recipient
// slot); Header only needs to say which mode the body uses.
type Header struct {
	Version byte
	Type    string
}

// writeHeader writes magic, version, and the length-prefixed type tag.
func writeHeader(w io.Writer, version byte, typ string) error {
	if len(typ) > 255 {
		return ubackerr.Userf("container type tag too long: %d bytes", len(typ))
	}
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte{version}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(len(typ))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, typ); err != nil {
		return err
	}
	return nil
}

// readHeader reads and validates the envelope header, leaving r
// positioned at the start of the body. This is the only I/O
// decode_type(ciphertext_stream) performs (spec §4.1).
func readHeader(r io.Reader) (Header, error) {
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, ubackerr.Wrap(ubackerr.KindTruncated, "reading container magic", err)
		}
		return Header{}, err
	}
	if got != magic {
		return Header{}, ubackerr.New(ubackerr.KindUnsupportedVersion, "not a uback container (bad magic)")
	}

	var versionBuf [1]byte
	if _, err := io.ReadFull(r, versionBuf[:]); err != nil {
		return Header{}, ubackerr.Wrap(ubackerr.KindTruncated, "reading container version", err)
	}
	version := versionBuf[0]
	if version != versionPlain && version != versionAge {
		return Header{}, ubackerr.New(ubackerr.KindUnsupportedVersion, "unknown container version")
	}

	var typeLen uint8
	if err := binary.Read(r, binary.BigEndian, &typeLen); err != nil {
		return Header{}, ubackerr.Wrap(ubackerr.KindTruncated, "reading container type length", err)
	}
	typeBytes := make([]byte, typeLen)
	if _, err := io.ReadFull(r, typeBytes); err != nil {
		return Header{}, ubackerr.Wrap(ubackerr.KindTruncated, "reading container type", err)
	}

	return Header{Version: version, Type: string(typeBytes)}, nil
}
