package fusion

import (
	"testing"

	"dictationgrader/internal/config"
	"dictationgrader/internal/model"
)

func testMatcher() *Matcher {
	return New(&config.Config{
		MatchTextThreshold:        0.6,
		MatchPositionMaxDistance:  100,
		MatchConsistencyThreshold: 0.88,
	})
}

func line(text string, y1 float64, pageIndex int) model.OCRLine {
	return model.OCRLine{Text: text, BBox: model.BBoxAbs{X1: 10, Y1: y1, X2: 80, Y2: y1 + 20}, Confidence: 0.9, PageIndex: pageIndex}
}

func TestMatchEmptyAnswer(t *testing.T) {
	m := testMatcher()
	items := []model.RawVLMItem{{Position: 1, StudentText: "", PageIndex: 0}}
	got := m.Match(items, map[int][]model.OCRLine{0: {line("aple", 100, 0)}}, nil, nil)
	if got[0].MatchMethod != string(model.MatchEmptyAnswer) {
		t.Errorf("MatchMethod = %q, want empty_answer", got[0].MatchMethod)
	}
	if got[0].ConsistencyOK != nil {
		t.Error("ConsistencyOK should be nil for empty answer")
	}
	if got[0].OCRText != "" {
		t.Errorf("OCRText = %q, want empty (line must stay unconsumed)", got[0].OCRText)
	}
}

func TestMatchTextSimilarity(t *testing.T) {
	m := testMatcher()
	items := []model.RawVLMItem{{Position: 1, StudentText: "apple", PageIndex: 0}}
	got := m.Match(items, map[int][]model.OCRLine{0: {line("aple", 100, 0)}}, nil, nil)
	if got[0].OCRText != "aple" {
		t.Errorf("OCRText = %q, want aple", got[0].OCRText)
	}
	if got[0].MatchMethod[:len(model.MatchTextSimilarity)] != string(model.MatchTextSimilarity) {
		t.Errorf("MatchMethod = %q, want text_similarity_ prefix", got[0].MatchMethod)
	}
}

func TestMatchConsumesLineOnlyOnce(t *testing.T) {
	m := testMatcher()
	items := []model.RawVLMItem{
		{Position: 1, StudentText: "apple", PageIndex: 0},
		{Position: 2, StudentText: "banana", PageIndex: 0},
	}
	got := m.Match(items, map[int][]model.OCRLine{0: {line("aple", 100, 0)}}, nil, nil)
	if got[0].OCRText != "aple" {
		t.Errorf("item 0 OCRText = %q, want aple", got[0].OCRText)
	}
	if got[1].OCRText != "" {
		t.Errorf("item 1 OCRText = %q, want empty (line already consumed)", got[1].OCRText)
	}
	if got[1].MatchMethod != string(model.MatchNone) {
		t.Errorf("item 1 MatchMethod = %q, want none", got[1].MatchMethod)
	}
}

func TestMatchSequentialFallback(t *testing.T) {
	m := testMatcher()
	items := []model.RawVLMItem{
		{Position: 1, StudentText: "zzz completely unrelated", PageIndex: 0},
	}
	got := m.Match(items, map[int][]model.OCRLine{0: {line("mango", 100, 0)}}, nil, nil)
	if got[0].MatchMethod != string(model.MatchSequential) {
		t.Errorf("MatchMethod = %q, want sequential", got[0].MatchMethod)
	}
	if got[0].OCRText != "mango" {
		t.Errorf("OCRText = %q, want mango", got[0].OCRText)
	}
}

func TestMatchPositional(t *testing.T) {
	m := testMatcher()
	items := []model.RawVLMItem{
		{Position: 1, StudentText: "zzz unrelated one", QuestionOrder: 1, PageIndex: 0},
		{Position: 2, StudentText: "yyy unrelated two", QuestionOrder: 2, PageIndex: 0},
	}
	linesByPage := map[int][]model.OCRLine{0: {line("near two", 500, 0), line("near one", 100, 0)}}
	positions := map[int][]model.QuestionPosition{0: {
		{QNum: 1, Top: 95, PageIndex: 0},
		{QNum: 2, Top: 505, PageIndex: 0},
	}}
	got := m.Match(items, linesByPage, positions, nil)
	if got[0].OCRText != "near one" {
		t.Errorf("item 0 OCRText = %q, want 'near one'", got[0].OCRText)
	}
	if got[0].MatchMethod != string(model.MatchPosition) {
		t.Errorf("item 0 MatchMethod = %q, want position", got[0].MatchMethod)
	}
	if got[1].OCRText != "near two" {
		t.Errorf("item 1 OCRText = %q, want 'near two'", got[1].OCRText)
	}
}

func TestConsistencyFlag(t *testing.T) {
	m := testMatcher()
	items := []model.RawVLMItem{{Position: 1, StudentText: "Apple!", PageIndex: 0}}
	got := m.Match(items, map[int][]model.OCRLine{0: {line("apple", 100, 0)}}, nil, nil)
	if got[0].ConsistencyOK == nil || !*got[0].ConsistencyOK {
		t.Errorf("ConsistencyOK = %v, want true", got[0].ConsistencyOK)
	}
}

func TestBBoxPaddedAndPrefersVLMBox(t *testing.T) {
	m := testMatcher()
	items := []model.RawVLMItem{{
		Position: 1, StudentText: "apple", PageIndex: 0,
		HandwritingBBox: &model.BBoxNorm{X1: 0.1, Y1: 0.1, X2: 0.2, Y2: 0.2},
	}}
	dims := map[int][2]int{0: {1000, 1000}}
	got := m.Match(items, map[int][]model.OCRLine{0: {line("aple", 100, 0)}}, nil, dims)
	want := model.BBoxAbs{X1: 100 - bboxPad, Y1: 100 - bboxPad, X2: 200 + bboxPad, Y2: 200 + bboxPad}
	if got[0].BBox != want {
		t.Errorf("BBox = %+v, want %+v", got[0].BBox, want)
	}
}

func TestPageConflictFlagged(t *testing.T) {
	m := testMatcher()
	items := []model.RawVLMItem{{Position: 1, StudentText: "apple", PageIndex: 0}}
	// line lives on a different page index than the VLM's reported page
	got := m.Match(items, map[int][]model.OCRLine{0: {line("aple", 100, 1)}}, nil, nil)
	if !got[0].PageConflict {
		t.Error("expected PageConflict to be set")
	}
}
