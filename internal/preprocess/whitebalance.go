package preprocess

import (
	"image"
	"image/color"
)

// whiteBalance applies a gray-world correction: compute the per-channel
// mean over the full image, then scale each channel so all three means
// equal their joint mean, clipping to [0,255]. This removes the
// yellow/cool cast that otherwise degrades OCR on phone photos.
func whiteBalance(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return img
	}

	var sumR, sumG, sumB uint64
	n := uint64(w * h)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			sumR += uint64(r >> 8)
			sumG += uint64(g >> 8)
			sumB += uint64(b >> 8)
		}
	}
	avgR := float64(sumR) / float64(n)
	avgG := float64(sumG) / float64(n)
	avgB := float64(sumB) / float64(n)
	gray := (avgR + avgG + avgB) / 3

	scaleR := scaleFor(avgR, gray)
	scaleG := scaleFor(avgG, gray)
	scaleB := scaleFor(avgB, gray)

	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			out.Set(x, y, color.RGBA{
				R: clip8(float64(r>>8) * scaleR),
				G: clip8(float64(g>>8) * scaleG),
				B: clip8(float64(b>>8) * scaleB),
				A: uint8(a >> 8),
			})
		}
	}
	return out
}

func scaleFor(avg, gray float64) float64 {
	if avg <= 0 {
		return 1.0
	}
	return gray / avg
}

func clip8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
