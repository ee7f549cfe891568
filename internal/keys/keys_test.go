package keys

import (
	"strings"
	"testing"
)

func TestGenerateDerivePublicRoundTrip(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(kp.Private, "AGE-SECRET-KEY-1") {
		t.Fatalf("unexpected private key encoding: %s", kp.Private)
	}
	if !strings.HasPrefix(kp.Public, "age1") {
		t.Fatalf("unexpected public key encoding: %s", kp.Public)
	}

	pub, err := DerivePublic(kp.Private)
	if err != nil {
		t.Fatalf("DerivePublic: %v", err)
	}
	if pub != kp.Public {
		t.Fatalf("got %q, want %q", pub, kp.Public)
	}
}

func TestParseIdentityMatchesParseRecipients(t *testing.T) {
	kp, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := ParseIdentity(kp.Private); err != nil {
		t.Fatalf("ParseIdentity: %v", err)
	}

	recipients, err := ParseRecipients(strings.NewReader(kp.Public + "\n"))
	if err != nil {
		t.Fatalf("ParseRecipients: %v", err)
	}
	if len(recipients) != 1 {
		t.Fatalf("got %d recipients, want 1", len(recipients))
	}
}

func TestParseRecipientsMultipleLines(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	recipients, err := ParseRecipients(strings.NewReader(a.Public + "\n\n" + b.Public + "\n"))
	if err != nil {
		t.Fatalf("ParseRecipients: %v", err)
	}
	if len(recipients) != 2 {
		t.Fatalf("got %d recipients, want 2 (blank lines must be skipped)", len(recipients))
	}
}

func TestParseRecipientsEmptyIsError(t *testing.T) {
	if _, err := ParseRecipients(strings.NewReader("\n\n")); err == nil {
		t.Fatalf("expected an error for a key-file with no recipients")
	}
}

func TestParseRecipientsRejectsGarbage(t *testing.T) {
	if _, err := ParseRecipients(strings.NewReader("not-a-key\n")); err == nil {
		t.Fatalf("expected an error for a malformed recipient line")
	}
}
