// Package identifier recovers the worksheet business identifier from
// printed OCR text across all pages.
package identifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"dictationgrader/internal/config"
	"dictationgrader/internal/model"
)

var (
	fullPattern    = regexp.MustCompile(`ES-(\d{4})-([A-Z0-9]{6})`)
	numericPattern = regexp.MustCompile(`ES-(\d{4})`)
	alphaPattern   = regexp.MustCompile(`\b([A-Z0-9]{6})\b`)
)

// Extractor recovers a WorksheetUUID from each page's printed OCR words
// and reconciles the per-page candidates into one consensus value.
type Extractor struct {
	numericWeight float64
	alphaWeight   float64
}

func New(cfg *config.Config) *Extractor {
	return &Extractor{numericWeight: cfg.UUIDNumericWeight, alphaWeight: cfg.UUIDAlphaWeight}
}

// Extract takes the printed OCR words of every page, keyed by page
// index, and returns the consensus worksheet UUID plus the per-page
// candidates for diagnostics.
func (e *Extractor) Extract(printedByPage map[int][]model.OCRWord) *model.WorksheetUUID {
	pages := make([]int, 0, len(printedByPage))
	for pg := range printedByPage {
		pages = append(pages, pg)
	}
	sort.Ints(pages)

	var candidates []model.PageUUIDCandidate
	for _, pg := range pages {
		if c := e.extractPage(printedByPage[pg], pg); c != nil {
			candidates = append(candidates, *c)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	return e.reconcile(candidates)
}

func (e *Extractor) extractPage(words []model.OCRWord, pageIndex int) *model.PageUUIDCandidate {
	var sb strings.Builder
	for i, w := range words {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w.Text)
	}
	full := sb.String()

	if m := fullPattern.FindString(full); m != "" {
		return &model.PageUUIDCandidate{
			PageIndex:  pageIndex,
			Candidate:  m,
			Confidence: confidenceOfSubstring(words, m),
			Source:     "full_match",
		}
	}

	numMatch := numericPattern.FindStringSubmatch(full)
	alphaMatch := alphaPattern.FindStringSubmatch(full)
	if numMatch != nil && alphaMatch != nil {
		candidate := fmt.Sprintf("ES-%s-%s", numMatch[1], alphaMatch[1])
		confNumeric := confidenceOfSubstring(words, numMatch[0])
		confAlpha := confidenceOfSubstring(words, alphaMatch[1])
		return &model.PageUUIDCandidate{
			PageIndex:  pageIndex,
			Candidate:  candidate,
			Confidence: e.numericWeight*confNumeric + e.alphaWeight*confAlpha,
			Source:     "two_part",
		}
	}
	return nil
}

func (e *Extractor) reconcile(candidates []model.PageUUIDCandidate) *model.WorksheetUUID {
	allEqual := true
	for _, c := range candidates[1:] {
		if c.Candidate != candidates[0].Candidate {
			allEqual = false
			break
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}
	return &model.WorksheetUUID{
		Value:      best.Candidate,
		Confidence: best.Confidence,
		Candidates: candidates,
		Consistent: allEqual,
	}
}

// Warning builds the human-readable divergence note carried in
// GradingResult.Warnings when the consensus is inconsistent.
func Warning(u *model.WorksheetUUID) string {
	if u == nil || u.Consistent {
		return ""
	}
	var parts []string
	for _, c := range u.Candidates {
		parts = append(parts, fmt.Sprintf("page %d: %s (%.2f)", c.PageIndex, c.Candidate, c.Confidence))
	}
	return "worksheet UUID candidates disagree across pages: " + strings.Join(parts, "; ")
}

func averageConfidence(words []model.OCRWord) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

func confidenceOfSubstring(words []model.OCRWord, sub string) float64 {
	var sum float64
	var n int
	for _, w := range words {
		if strings.Contains(sub, w.Text) || strings.Contains(w.Text, sub) {
			sum += w.Confidence
			n++
		}
	}
	if n == 0 {
		return averageConfidence(words)
	}
	return sum / float64(n)
}
