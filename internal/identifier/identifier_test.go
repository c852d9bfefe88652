package identifier

import (
	"testing"

	"dictationgrader/internal/config"
	"dictationgrader/internal/model"
)

func testExtractor() *Extractor {
	return New(&config.Config{UUIDNumericWeight: 0.8, UUIDAlphaWeight: 0.2})
}

func printedWord(text string, conf float64) model.OCRWord {
	return model.OCRWord{Text: text, Confidence: conf, Type: model.WordPrinted}
}

func TestExtractFullMatch(t *testing.T) {
	e := testExtractor()
	words := map[int][]model.OCRWord{
		0: {printedWord("Name:", 0.9), printedWord("ES-1234-AB12CD", 0.95)},
	}
	got := e.Extract(words)
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.Value != "ES-1234-AB12CD" {
		t.Errorf("Value = %q", got.Value)
	}
	if got.Candidates[0].Source != "full_match" {
		t.Errorf("Source = %q, want full_match", got.Candidates[0].Source)
	}
}

func TestExtractFullMatchConfidenceIgnoresUnrelatedWords(t *testing.T) {
	e := testExtractor()
	words := map[int][]model.OCRWord{
		0: {printedWord("Name:", 0.1), printedWord("ES-1234-AB12CD", 0.9)},
	}
	got := e.Extract(words)
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9 (only the matched word's confidence, not the page average)", got.Confidence)
	}
}

func TestExtractTwoPartMatch(t *testing.T) {
	e := testExtractor()
	words := map[int][]model.OCRWord{
		0: {printedWord("ES-5678", 0.9), printedWord("XY98ZQ", 0.7)},
	}
	got := e.Extract(words)
	if got == nil {
		t.Fatal("expected a result")
	}
	if got.Value != "ES-5678-XY98ZQ" {
		t.Errorf("Value = %q, want ES-5678-XY98ZQ", got.Value)
	}
	if got.Candidates[0].Source != "two_part" {
		t.Errorf("Source = %q, want two_part", got.Candidates[0].Source)
	}
}

func TestExtractConsensusAgreement(t *testing.T) {
	e := testExtractor()
	words := map[int][]model.OCRWord{
		0: {printedWord("ES-1111-ABCDEF", 0.9)},
		1: {printedWord("ES-1111-ABCDEF", 0.8)},
	}
	got := e.Extract(words)
	if !got.Consistent {
		t.Error("expected Consistent = true when all pages agree")
	}
	if got.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want max of 0.9", got.Confidence)
	}
}

func TestExtractConsensusDisagreement(t *testing.T) {
	e := testExtractor()
	words := map[int][]model.OCRWord{
		0: {printedWord("ES-1111-ABCDEF", 0.6)},
		1: {printedWord("ES-2222-ZZZZZZ", 0.9)},
	}
	got := e.Extract(words)
	if got.Consistent {
		t.Error("expected Consistent = false when pages disagree")
	}
	if got.Value != "ES-2222-ZZZZZZ" {
		t.Errorf("Value = %q, want the higher-confidence candidate", got.Value)
	}
	if w := Warning(got); w == "" {
		t.Error("expected a non-empty warning for inconsistent candidates")
	}
}

func TestExtractNoCandidates(t *testing.T) {
	e := testExtractor()
	got := e.Extract(map[int][]model.OCRWord{0: {printedWord("nothing here", 0.9)}})
	if got != nil {
		t.Errorf("expected nil result, got %+v", got)
	}
}

func TestWarningNilOrConsistent(t *testing.T) {
	if Warning(nil) != "" {
		t.Error("Warning(nil) should be empty")
	}
	if Warning(&model.WorksheetUUID{Consistent: true}) != "" {
		t.Error("Warning of a consistent result should be empty")
	}
}
