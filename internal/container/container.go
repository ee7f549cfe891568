// Package container implements spec §4.1's container codec: an
// encrypted, typed, streamable envelope around a source adapter's
// payload. The header (magic, version, type tag) is in cleartext so
// DecodeType never needs a private key; the body is an age stream, which
// already provides exactly the "AEAD-chunked, streaming, tamper- and
// truncation-evident" body spec §4.1 asks for — age's own STREAM
// construction authenticates every chunk and carries an explicit
// end-of-stream marker, so a reader that hits EOF early fails closed.
package container

import (
	"io"
	"strings"

	"filippo.io/age"

	"uback/internal/ubackerr"
)

// Encode writes a container: header (type in cleartext) followed by the
// payload, AEAD-encrypted under an ephemeral content key wrapped once per
// recipient. If recipients is empty, the payload is written in cleartext
// instead — the "no-encryption" testing mode from spec §4.6.
func Encode(w io.Writer, typ string, recipients []age.Recipient, plaintext io.Reader) error {
	if len(recipients) == 0 {
		if err := writeHeader(w, versionPlain, typ); err != nil {
			return err
		}
		_, err := io.Copy(w, plaintext)
		return err
	}

	if err := writeHeader(w, versionAge, typ); err != nil {
		return err
	}
	enc, err := age.Encrypt(w, recipients...)
	if err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "initializing container encryption", err)
	}
	if _, err := io.Copy(enc, plaintext); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "writing container payload", err)
	}
	if err := enc.Close(); err != nil {
		return ubackerr.Wrap(ubackerr.KindUser, "finalizing container payload", err)
	}
	return nil
}

// DecodeType reads only the container header and returns its type tag,
// without touching the (possibly encrypted) body.
func DecodeType(r io.Reader) (string, error) {
	h, err := readHeader(r)
	if err != nil {
		return "", err
	}
	return h.Type, nil
}

// Decode reads the container header and returns the type tag plus a
// reader over the authenticated plaintext. identities is ignored when
// the container was written in "no-encryption" mode.
func Decode(r io.Reader, identities []age.Identity) (string, io.Reader, error) {
	h, err := readHeader(r)
	if err != nil {
		return "", nil, err
	}

	if h.Version == versionPlain {
		return h.Type, r, nil
	}

	if len(identities) == 0 {
		return "", nil, ubackerr.New(ubackerr.KindNoMatchingRecipient, "no private key provided to decode an encrypted container")
	}

	plain, err := age.Decrypt(r, identities...)
	if err != nil {
		return "", nil, classifyDecryptError(err)
	}
	return h.Type, plain, nil
}

// classifyDecryptError maps age's decode-time errors onto the spec §4.1
// error kinds. age doesn't export structured error types for every
// failure mode, so this matches on the documented error text rather than
// depending on internal error types that may change across age versions.
func classifyDecryptError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no identity matched"):
		return ubackerr.Wrap(ubackerr.KindNoMatchingRecipient, "no matching recipient", err)
	case strings.Contains(msg, "unexpected EOF") || strings.Contains(msg, "EOF"):
		return ubackerr.Wrap(ubackerr.KindTruncated, "container body truncated", err)
	default:
		return ubackerr.Wrap(ubackerr.KindAuthenticationFailed, "container authentication failed", err)
	}
}
