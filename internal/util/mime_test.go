package util

import (
	"encoding/base64"
	"testing"
)

func TestSniffMimeForOCR(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "JPEG"},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, "PNG"},
		{"pdf", []byte("%PDF-1.4"), "PDF"},
		{"unknown", []byte("not an image"), ""},
		{"too short", []byte{0xFF}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SniffMimeForOCR(tt.in); got != tt.want {
				t.Errorf("SniffMimeForOCR() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeBase64MaybeDataURL(t *testing.T) {
	raw := []byte("hello world")
	enc := base64.StdEncoding.EncodeToString(raw)

	t.Run("plain base64", func(t *testing.T) {
		b, mime, err := DecodeBase64MaybeDataURL(enc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(b) != string(raw) {
			t.Errorf("decoded = %q, want %q", b, raw)
		}
		if mime != "" {
			t.Errorf("mime = %q, want empty", mime)
		}
	})

	t.Run("data URL", func(t *testing.T) {
		s := "data:image/jpeg;base64," + enc
		b, mime, err := DecodeBase64MaybeDataURL(s)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(b) != string(raw) {
			t.Errorf("decoded = %q, want %q", b, raw)
		}
		if mime != "image/jpeg" {
			t.Errorf("mime = %q, want image/jpeg", mime)
		}
	})
}
