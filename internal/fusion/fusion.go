// Package fusion reconciles the VLM's per-question judgments with the
// OCR client's handwriting lines into graded items.
package fusion

import (
	"fmt"
	"math"
	"strings"

	"dictationgrader/internal/config"
	"dictationgrader/internal/model"
	"dictationgrader/internal/util"
)

const bboxPad = 6

// Matcher runs the five-strategy cascade and assembles GradedItems.
type Matcher struct {
	textThreshold        float64
	positionMaxDistance  float64
	consistencyThreshold float64
}

func New(cfg *config.Config) *Matcher {
	return &Matcher{
		textThreshold:        cfg.MatchTextThreshold,
		positionMaxDistance:  cfg.MatchPositionMaxDistance,
		consistencyThreshold: cfg.MatchConsistencyThreshold,
	}
}

// pageLines indexes unconsumed OCR lines per page, in reading order.
type pageLines struct {
	lines    []model.OCRLine
	consumed []bool
}

// Match runs every VLM item through the cascade against the OCR lines
// and printed question positions, in VLM emission order, and returns
// the GradedItems in that same monotonic order.
func (m *Matcher) Match(items []model.RawVLMItem, linesByPage map[int][]model.OCRLine, positionsByPage map[int][]model.QuestionPosition, pageDims map[int][2]int) []model.GradedItem {
	pages := make(map[int]*pageLines, len(linesByPage))
	for pg, ls := range linesByPage {
		cp := make([]model.OCRLine, len(ls))
		copy(cp, ls)
		pages[pg] = &pageLines{lines: cp, consumed: make([]bool, len(cp))}
	}

	out := make([]model.GradedItem, 0, len(items))
	for _, it := range items {
		out = append(out, m.matchOne(it, pages, positionsByPage, pageDims))
	}
	return out
}

func (m *Matcher) matchOne(it model.RawVLMItem, pages map[int]*pageLines, positionsByPage map[int][]model.QuestionPosition, pageDims map[int][2]int) model.GradedItem {
	gi := model.GradedItem{
		Position:     it.Position,
		SectionTitle: it.Section.Title,
		SectionType:  it.Section.Type,
		ZhHint:       it.ZhHint,
		LLMText:      it.StudentText,
		IsCorrect:    it.IsCorrect,
		Confidence:   it.Confidence,
		Note:         it.Note,
		PageIndex:    it.PageIndex,
	}

	studentText := strings.TrimSpace(it.StudentText)
	pl := pages[it.PageIndex]

	var matchedLine *model.OCRLine
	var matchedIdx int = -1

	switch {
	case studentText == "":
		gi.MatchMethod = string(model.MatchEmptyAnswer)

	default:
		if pl != nil {
			if idx, ratio := bestTextMatch(studentText, pl); idx >= 0 && ratio >= m.textThreshold {
				matchedIdx = idx
				matchedLine = &pl.lines[idx]
				gi.MatchMethod = fmt.Sprintf("%s_%.2f", model.MatchTextSimilarity, ratio)
			} else if idx := bestPositionalMatch(it, pl, positionsByPage[it.PageIndex], m.positionMaxDistance); idx >= 0 {
				matchedIdx = idx
				matchedLine = &pl.lines[idx]
				gi.MatchMethod = string(model.MatchPosition)
			} else if idx := firstUnconsumed(pl); idx >= 0 {
				matchedIdx = idx
				matchedLine = &pl.lines[idx]
				gi.MatchMethod = string(model.MatchSequential)
			} else {
				gi.MatchMethod = string(model.MatchNone)
			}
		} else {
			gi.MatchMethod = string(model.MatchNone)
		}
	}

	if matchedIdx >= 0 {
		pl.consumed[matchedIdx] = true
		gi.OCRText = matchedLine.Text
		if matchedLine.PageIndex != it.PageIndex {
			gi.PageConflict = true
		}
	}

	gi.ConsistencyOK = consistency(gi.LLMText, gi.OCRText, m.consistencyThreshold)
	gi.BBox = resolveBBox(it, matchedLine, positionsByPage[it.PageIndex], pageDims[it.PageIndex])

	return gi
}

func bestTextMatch(studentText string, pl *pageLines) (int, float64) {
	target := util.AlphanumericLower(studentText)
	bestIdx := -1
	bestRatio := 0.0
	for i, line := range pl.lines {
		if pl.consumed[i] {
			continue
		}
		ratio := util.SimilarityRatio(target, util.AlphanumericLower(line.Text))
		if ratio > bestRatio {
			bestRatio = ratio
			bestIdx = i
		}
	}
	return bestIdx, bestRatio
}

func bestPositionalMatch(it model.RawVLMItem, pl *pageLines, positions []model.QuestionPosition, maxDistance float64) int {
	if it.QuestionOrder == 0 {
		return -1
	}
	var anchorTop float64
	found := false
	for _, p := range positions {
		if p.QNum == it.QuestionOrder {
			anchorTop = p.Top
			found = true
			break
		}
	}
	if !found {
		return -1
	}

	bestIdx := -1
	bestDist := math.MaxFloat64
	for i, line := range pl.lines {
		if pl.consumed[i] {
			continue
		}
		d := math.Abs(line.Top() - anchorTop)
		if d <= maxDistance && d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return bestIdx
}

func firstUnconsumed(pl *pageLines) int {
	for i := range pl.lines {
		if !pl.consumed[i] {
			return i
		}
	}
	return -1
}

func consistency(llmText, ocrText string, threshold float64) *bool {
	llmText = strings.TrimSpace(llmText)
	ocrText = strings.TrimSpace(ocrText)
	if llmText == "" || ocrText == "" {
		return nil
	}
	ratio := util.SimilarityRatio(util.NormalizeAnswer(llmText), util.NormalizeAnswer(ocrText))
	ok := ratio >= threshold
	return &ok
}

func resolveBBox(it model.RawVLMItem, matchedLine *model.OCRLine, positions []model.QuestionPosition, dims [2]int) model.BBoxAbs {
	var bbox model.BBoxAbs
	switch {
	case it.HandwritingBBox != nil && dims[0] > 0 && dims[1] > 0:
		bbox = it.HandwritingBBox.Scale(dims[0], dims[1])
	case matchedLine != nil:
		bbox = matchedLine.BBox
	default:
		for _, p := range positions {
			if p.QNum == it.QuestionOrder {
				bbox = model.BBoxAbs{X1: 0, Y1: p.Top, X2: 0, Y2: p.Top}
				break
			}
		}
	}
	return bbox.Pad(bboxPad)
}
