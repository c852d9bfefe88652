// Package lines converts OCR handwriting words into answer lines and
// extracts printed question positions.
package lines

import (
	"regexp"
	"sort"
	"unicode"

	"dictationgrader/internal/config"
	"dictationgrader/internal/model"
	"dictationgrader/internal/util"
)

// questionNumberRe matches a leading decimal number followed by a
// separator: ASCII/CJK punctuation, or whitespace.
var questionNumberRe = regexp.MustCompile(`^(\d+)[\s.．。:、]`)

// Builder merges handwritten OCR words into lines and scans printed
// words for question-number anchors.
type Builder struct {
	wordThreshold   float64
	phraseThreshold float64
}

func New(cfg *config.Config) *Builder {
	return &Builder{
		wordThreshold:   cfg.MergeWordThreshold,
		phraseThreshold: cfg.MergePhraseThreshold,
	}
}

// BuildLines groups handwritten words on one page into OCRLines. The
// merge threshold is section-type-aware: dominantType reflects the
// VLM's own classification for the section the words are believed to
// belong to (an empty type applies the stricter WORD threshold).
func (b *Builder) BuildLines(words []model.OCRWord, dominantType model.SectionType) []model.OCRLine {
	// Printed Chinese hint text occasionally bleeds into the handwritten
	// bucket along a worksheet's scan artifacts; the dictation answer
	// itself is always English, so words with no Latin letter are
	// stray print tokens rather than student handwriting.
	handwritten := make([]model.OCRWord, 0, len(words))
	for _, w := range words {
		if w.Type == model.WordHandwritten && util.HasLatinLetter(w.Text) {
			handwritten = append(handwritten, w)
		}
	}
	if len(handwritten) == 0 {
		return nil
	}

	sort.SliceStable(handwritten, func(i, j int) bool {
		if handwritten[i].BBox.Y1 != handwritten[j].BBox.Y1 {
			return handwritten[i].BBox.Y1 < handwritten[j].BBox.Y1
		}
		return handwritten[i].BBox.X1 < handwritten[j].BBox.X1
	})

	threshold := b.wordThreshold
	if dominantType == model.SectionPhrase || dominantType == model.SectionSentence {
		threshold = b.phraseThreshold
	}

	var lines [][]model.OCRWord
	for _, w := range handwritten {
		placed := false
		for i, line := range lines {
			anchor := line[0]
			lineHeight := anchor.BBox.Height()
			if lineHeight <= 0 {
				lineHeight = w.BBox.Height()
			}
			if lineHeight > 0 && absf(w.BBox.Y1-anchor.BBox.Y1) < threshold*lineHeight {
				lines[i] = append(lines[i], w)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, []model.OCRWord{w})
		}
	}

	out := make([]model.OCRLine, 0, len(lines))
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].BBox.X1 < line[j].BBox.X1 })
		out = append(out, buildLine(line))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Top() < out[j].Top() })
	return out
}

func buildLine(words []model.OCRWord) model.OCRLine {
	bbox := words[0].BBox
	var sumConf float64
	var text []byte
	for i, w := range words {
		if i > 0 {
			text = append(text, ' ')
		}
		text = append(text, w.Text...)
		sumConf += w.Confidence
		bbox = unionBBox(bbox, w.BBox)
	}
	return model.OCRLine{
		Text:       string(text),
		BBox:       bbox,
		Confidence: sumConf / float64(len(words)),
		PageIndex:  words[0].PageIndex,
		Words:      words,
	}
}

func unionBBox(a, b model.BBoxAbs) model.BBoxAbs {
	return model.BBoxAbs{
		X1: minf(a.X1, b.X1),
		Y1: minf(a.Y1, b.Y1),
		X2: maxf(a.X2, b.X2),
		Y2: maxf(a.Y2, b.Y2),
	}
}

// ExtractPositions scans printed words for a leading question number,
// keeping the first occurrence of each number on the page.
func ExtractPositions(words []model.OCRWord, pageIndex int) []model.QuestionPosition {
	seen := make(map[int]bool)
	var out []model.QuestionPosition
	for _, w := range words {
		if w.Type != model.WordPrinted {
			continue
		}
		qnum, ok := leadingQuestionNumber(w.Text)
		if !ok || seen[qnum] {
			continue
		}
		seen[qnum] = true
		out = append(out, model.QuestionPosition{QNum: qnum, Top: w.BBox.Y1, PageIndex: pageIndex})
	}
	return out
}

func leadingQuestionNumber(text string) (int, bool) {
	if m := questionNumberRe.FindStringSubmatch(text); m != nil {
		return atoiSafe(m[1]), true
	}
	// Chinese punctuation/adjacency variant: digits immediately
	// followed by a CJK character with no ASCII separator between.
	runes := []rune(text)
	i := 0
	for i < len(runes) && unicode.IsDigit(runes[i]) {
		i++
	}
	if i == 0 || i == len(runes) {
		return 0, false
	}
	if unicode.Is(unicode.Han, runes[i]) {
		return atoiSafe(string(runes[:i])), true
	}
	return 0, false
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
