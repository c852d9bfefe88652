// Package annotate draws grading marks onto worksheet pages: a green
// checkmark for correct answers, a red ellipse for incorrect ones,
// and an orange rectangle for unanswered questions.
package annotate

import (
	"bytes"
	"image"
	"image/jpeg"
	"sort"

	"github.com/fogleman/gg"

	"dictationgrader/internal/model"
)

const (
	colorCorrect   = "#07A86C"
	colorIncorrect = "#E5484D"
	colorUnanswered = "#F59E0B"

	checkStroke     = 6.0
	ellipseStroke   = 6.0
	rectStroke      = 4.0
	checkOffsetX    = 8.0
	checkOffsetY    = -6.0
	checkSizeMin    = 30.0
	checkSizeMax    = 50.0
	checkSizeFactor = 0.8
)

// Annotator draws GradedItems onto each page's decoded image.
type Annotator struct {
	jpegQuality int
}

func New(jpegQuality int) *Annotator {
	return &Annotator{jpegQuality: jpegQuality}
}

// Annotate draws every item belonging to pg onto a copy of the page's
// decoded image, in Position order, and returns the re-encoded JPEG.
func (a *Annotator) Annotate(pg image.Image, items []model.GradedItem) ([]byte, error) {
	ordered := make([]model.GradedItem, len(items))
	copy(ordered, items)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	dc := gg.NewContextForImage(pg)
	for _, it := range ordered {
		drawItem(dc, it)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: a.jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawItem(dc *gg.Context, it model.GradedItem) {
	hasAnswer := it.LLMText != ""
	switch {
	case it.IsCorrect && hasAnswer:
		drawCheck(dc, it.BBox)
	case !it.IsCorrect && hasAnswer:
		drawEllipse(dc, it.BBox)
	case !it.IsCorrect && !hasAnswer:
		drawRectangle(dc, it.BBox)
	}
}

func drawCheck(dc *gg.Context, bbox model.BBoxAbs) {
	s := clip(bbox.Height()*checkSizeFactor, checkSizeMin, checkSizeMax)
	x := bbox.X2 + checkOffsetX
	y := bbox.Y1 + checkOffsetY

	dc.SetHexColor(colorCorrect)
	dc.SetLineWidth(checkStroke)
	dc.MoveTo(x, y+0.55*s)
	dc.LineTo(x+0.35*s, y+s)
	dc.LineTo(x+s, y)
	dc.Stroke()
}

func drawEllipse(dc *gg.Context, bbox model.BBoxAbs) {
	cx := (bbox.X1 + bbox.X2) / 2
	cy := (bbox.Y1 + bbox.Y2) / 2
	rx := bbox.Width()/2 + 6
	ry := bbox.Height()/2 + 6

	dc.SetHexColor(colorIncorrect)
	dc.SetLineWidth(ellipseStroke)
	dc.DrawEllipse(cx, cy, rx, ry)
	dc.Stroke()
}

func drawRectangle(dc *gg.Context, bbox model.BBoxAbs) {
	dc.SetHexColor(colorUnanswered)
	dc.SetLineWidth(rectStroke)
	dc.DrawRectangle(bbox.X1, bbox.Y1, bbox.Width(), bbox.Height())
	dc.Stroke()
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
