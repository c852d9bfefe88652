package model

// RawVLMItem is one question as returned by the VLM, after short field
// names (q, hint, ans, ok, conf, pg, note, bbox) have been mapped onto
// their canonical long names.
type RawVLMItem struct {
	Position int // monotonic, assigned in VLM emission order, starting at 1

	Section Section

	QuestionOrder int    // the VLM's own "q" field; metadata only, never an index
	ZhHint        string // Chinese prompt, no leading numbering
	StudentText   string // "ans"; may be empty
	IsCorrect     bool   // "ok"
	Confidence    float64
	PageIndex     int    // "pg", 0-based
	Note          string // "note"; free text, may carry spelling annotations

	// HandwritingBBox is the VLM's own bbox, normalized to [0,1]
	// against the page's original dimensions. Nil when the VLM omitted it.
	HandwritingBBox *BBoxNorm
}

// BBoxNorm is a bounding box normalized to [0,1] on both axes.
type BBoxNorm struct {
	X1, Y1, X2, Y2 float64
}

// Scale denormalizes the box against a page of the given pixel size.
func (b BBoxNorm) Scale(width, height int) BBoxAbs {
	return BBoxAbs{
		X1: b.X1 * float64(width),
		Y1: b.Y1 * float64(height),
		X2: b.X2 * float64(width),
		Y2: b.Y2 * float64(height),
	}
}

// BBoxAbs is a bounding box in absolute pixel coordinates on the
// original page.
type BBoxAbs struct {
	X1, Y1, X2, Y2 float64
}

// Pad grows the box by n pixels on every side.
func (b BBoxAbs) Pad(n float64) BBoxAbs {
	return BBoxAbs{X1: b.X1 - n, Y1: b.Y1 - n, X2: b.X2 + n, Y2: b.Y2 + n}
}

func (b BBoxAbs) Width() float64  { return b.X2 - b.X1 }
func (b BBoxAbs) Height() float64 { return b.Y2 - b.Y1 }
