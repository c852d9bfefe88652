// Package preprocess decodes, downscales, white-balances, and
// re-encodes uploaded worksheet pages.
package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"dictationgrader/internal/config"
	"dictationgrader/internal/model"
)

var (
	// ErrInvalidImage is returned when a blob cannot be decoded.
	ErrInvalidImage = errors.New("preprocess: invalid image")
	// ErrTooLarge is returned when a dimension exceeds the configured cap.
	ErrTooLarge = errors.New("preprocess: image too large")
)

// Blob is one uploaded page before processing.
type Blob struct {
	Data     []byte
	MIMEHint string
}

// Preprocessor normalizes uploaded page images before OCR and VLM
// inference.
type Preprocessor struct {
	maxLongSide int
	jpegQuality int
}

func New(cfg *config.Config) *Preprocessor {
	return &Preprocessor{
		maxLongSide: cfg.ImageMaxLongSide,
		jpegQuality: cfg.ImageJPEGQuality,
	}
}

// Process decodes every blob, downscales it if its long side exceeds
// the cap, applies a gray-world white balance, and re-encodes to JPEG.
// The same preprocessed bytes are later handed to both the VLM and OCR
// clients so their coordinates never drift apart.
func (p *Preprocessor) Process(blobs []Blob) ([]model.Page, error) {
	pages := make([]model.Page, 0, len(blobs))
	for i, b := range blobs {
		img, _, err := image.Decode(bytes.NewReader(b.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrInvalidImage, i, err)
		}

		bounds := img.Bounds()
		w, h := bounds.Dx(), bounds.Dy()
		longSide := w
		if h > longSide {
			longSide = h
		}
		// A cap exists to bound VLM payload size and OCR latency; an
		// image already within it is never upscaled or re-checked
		// after resize since resize only ever shrinks.
		if p.maxLongSide > 0 && longSide > p.maxLongSide*4 {
			return nil, fmt.Errorf("%w: page %d: long side %d exceeds hard cap", ErrTooLarge, i, longSide)
		}
		if p.maxLongSide > 0 && longSide > p.maxLongSide {
			if w >= h {
				img = imaging.Resize(img, p.maxLongSide, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, p.maxLongSide, imaging.Lanczos)
			}
			bounds = img.Bounds()
			w, h = bounds.Dx(), bounds.Dy()
		}

		balanced := whiteBalance(img)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, balanced, &jpeg.Options{Quality: p.jpegQuality}); err != nil {
			return nil, fmt.Errorf("preprocess: encode page %d: %w", i, err)
		}

		pages = append(pages, model.Page{
			Index:         i,
			Width:         w,
			Height:        h,
			Raw:           b.Data,
			WhiteBalanced: buf.Bytes(),
			Decoded:       balanced,
		})
	}
	return pages, nil
}
