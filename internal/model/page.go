package model

import "image"

// Page is one uploaded worksheet photo, normalized by the preprocessor.
type Page struct {
	Index  int // 0-based
	Width  int
	Height int

	// Raw is the original upload; WhiteBalanced is the gray-world
	// corrected, re-encoded JPEG fed to both the VLM and OCR clients so
	// their coordinates never drift apart.
	Raw           []byte
	WhiteBalanced []byte
	Decoded       image.Image
}
