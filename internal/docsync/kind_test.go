package docsync

import (
	"errors"
	"testing"
)

func TestDetectKind(t *testing.T) {
	cases := []struct {
		path string
		want ContentKind
	}{
		{"docs/readme.md", KindText},
		{"src/main.go", KindText},
		{"Makefile", KindText},
		{"config/app.json", KindJSON},
		{"assets/logo.PNG", KindBlob},
		{"report.pdf", KindBlob},
		{"data/archive.tar.gz", KindBlob},
		{"fonts/inter.woff2", KindBlob},
	}
	for _, tc := range cases {
		if got := DetectKind(tc.path); got != tc.want {
			t.Errorf("DetectKind(%q): expected %s, got %s", tc.path, tc.want, got)
		}
	}
}

func TestDecodePayloadPrettyPrintsJSON(t *testing.T) {
	payload, err := decodePayload("cfg.json", []byte(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.Kind != KindJSON {
		t.Fatalf("expected json kind, got %s", payload.Kind)
	}
	want := "{\n  \"b\": 2,\n  \"a\": 1\n}"
	if payload.Text != want {
		t.Fatalf("expected indented JSON, got %q", payload.Text)
	}
}

func TestDecodePayloadRejectsInvalidJSON(t *testing.T) {
	_, err := decodePayload("cfg.json", []byte(`{"broken":`))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestDecodePayloadRejectsBinaryText(t *testing.T) {
	_, err := decodePayload("notes.txt", []byte{0xff, 0xfe, 0x00, 0x01})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected decode error for invalid UTF-8, got %v", err)
	}
}

func TestDecodePayloadPassesBlobThrough(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	payload, err := decodePayload("logo.png", raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.Kind != KindBlob || len(payload.Data) != len(raw) {
		t.Fatalf("expected raw blob passthrough, got %+v", payload)
	}
}
