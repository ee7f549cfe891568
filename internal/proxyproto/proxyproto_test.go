package proxyproto

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := Request{Method: "upload", Args: map[string]string{"backup_id": "abc"}}
	if err := writeFrame(&buf, req); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}
	var got Request
	if err := readFrame(bufio.NewReader(&buf), &got); err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if got.Method != "upload" || got.Args["backup_id"] != "abc" {
		t.Fatalf("got %+v", got)
	}
}

func TestStreamChunkRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := bytes.Repeat([]byte("uback"), 20000)
	if err := writeStream(&buf, bytes.NewReader(payload)); err != nil {
		t.Fatalf("writeStream: %v", err)
	}
	got, err := io.ReadAll(newStreamReader(&buf))
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round-tripped payload mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestStreamChunkEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := writeStream(&buf, bytes.NewReader(nil)); err != nil {
		t.Fatalf("writeStream: %v", err)
	}
	got, err := io.ReadAll(newStreamReader(&buf))
	if err != nil {
		t.Fatalf("reading stream: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d bytes, want 0", len(got))
	}
}

func TestMultipleStreamsOverSamePipe(t *testing.T) {
	var buf bytes.Buffer
	if err := writeStream(&buf, bytes.NewReader([]byte("first"))); err != nil {
		t.Fatalf("writeStream 1: %v", err)
	}
	if err := writeStream(&buf, bytes.NewReader([]byte("second"))); err != nil {
		t.Fatalf("writeStream 2: %v", err)
	}
	first, err := io.ReadAll(newStreamReader(&buf))
	if err != nil || string(first) != "first" {
		t.Fatalf("first = %q, err = %v", first, err)
	}
	second, err := io.ReadAll(newStreamReader(&buf))
	if err != nil || string(second) != "second" {
		t.Fatalf("second = %q, err = %v", second, err)
	}
}
