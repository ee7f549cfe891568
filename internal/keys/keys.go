// Package keys implements spec §4.2's recipient/key module: generating
// key pairs, deriving a public key from a private one, and loading one or
// more recipients from a key-file. The hybrid-encryption primitive itself
// is the named, out-of-scope collaborator spec §1 points to — here that's
// filippo.io/age, whose X25519 identities are exactly the "AGE-SECRET-KEY-1…"
// / "age1…" text encodings the original implementation's fixtures pin down.
package keys

import (
	"bufio"
	"io"
	"strings"

	"filippo.io/age"

	"uback/internal/ubackerr"
)

// KeyPair is a generated identity plus its public recipient, both in
// age's single-line text encoding.
type KeyPair struct {
	Private string
	Public  string
}

// Generate creates a fresh X25519 key pair.
func Generate() (KeyPair, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return KeyPair{}, ubackerr.Wrap(ubackerr.KindUser, "generating key pair", err)
	}
	return KeyPair{Private: id.String(), Public: id.Recipient().String()}, nil
}

// DerivePublic returns the public recipient string for a private key.
func DerivePublic(private string) (string, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(private))
	if err != nil {
		return "", ubackerr.Wrap(ubackerr.KindUser, "parsing private key", err)
	}
	return id.Recipient().String(), nil
}

// ParseIdentity parses a single private key line into an age.Identity
// usable with Decode.
func ParseIdentity(private string) (age.Identity, error) {
	id, err := age.ParseX25519Identity(strings.TrimSpace(private))
	if err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindUser, "parsing private key", err)
	}
	return id, nil
}

// ParseRecipients reads one or more public keys, one per non-blank line,
// from r. A key-file may concatenate several recipients' public keys;
// encode(...) wraps the content key once per recipient found here, and
// any one matching private key can later decode it (spec §4.1, §4.2).
func ParseRecipients(r io.Reader) ([]age.Recipient, error) {
	var recipients []age.Recipient
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := age.ParseX25519Recipient(line)
		if err != nil {
			return nil, ubackerr.Wrap(ubackerr.KindUser, "parsing recipient", err)
		}
		recipients = append(recipients, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, ubackerr.Wrap(ubackerr.KindUser, "reading key-file", err)
	}
	if len(recipients) == 0 {
		return nil, ubackerr.Userf("key-file contains no recipients")
	}
	return recipients, nil
}
