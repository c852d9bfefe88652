package util

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// SniffMimeForOCR returns the upper-case mime family name the Yandex-style
// OCR contract expects ("JPEG" | "PNG" | "PDF"), or "" if unrecognized.
func SniffMimeForOCR(b []byte) string {
	switch {
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8:
		return "JPEG"
	case len(b) >= 8 && b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A:
		return "PNG"
	case len(b) >= 5 && b[0] == '%' && b[1] == 'P' && b[2] == 'D' && b[3] == 'F' && b[4] == '-':
		return "PDF"
	}
	return ""
}

// SniffMimeHTTP returns a standard MIME type string, falling back to
// http.DetectContentType.
func SniffMimeHTTP(b []byte) string {
	if len(b) == 0 {
		return "application/octet-stream"
	}
	return http.DetectContentType(b)
}

// DecodeBase64MaybeDataURL decodes s, returning the MIME hint from a
// data: URI prefix if present.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, hintMIME, nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	return b, hintMIME, err
}
