package vlmclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"dictationgrader/internal/model"
	"dictationgrader/internal/util"
)

// Reply is the parsed VLM response: a flattened, canonically-named
// question list plus the raw text for debug persistence.
type Reply struct {
	Items   []model.RawVLMItem
	RawText string
}

// parseReply locates the JSON object in text, parses it, and flattens
// sections into canonically-named RawVLMItems. Items are never
// reordered by question number: position is assigned in emission
// order, which the VLM is trusted to keep in worksheet reading order.
func parseReply(text string) (Reply, error) {
	obj, err := util.ExtractJSONObject(util.StripCodeFences(text))
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	var raw rawReply
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return Reply{}, fmt.Errorf("%w: bad json: %v", ErrParseFailure, err)
	}

	items := make([]model.RawVLMItem, 0, 32)
	position := 1

	appendItem := func(sec model.Section, firstInSection bool, it rawItem) {
		gi := model.RawVLMItem{
			Position:      position,
			QuestionOrder: it.Q,
			ZhHint:        strings.TrimSpace(it.Hint),
			StudentText:   it.Ans,
			IsCorrect:     it.OK,
			Confidence:    it.Conf,
			PageIndex:     it.Pg,
			Note:          it.Note,
		}
		if firstInSection {
			gi.Section = sec
		} else {
			gi.Section = model.Section{Type: sec.Type}
		}
		if len(it.BBox) == 4 {
			gi.HandwritingBBox = &model.BBoxNorm{X1: it.BBox[0], Y1: it.BBox[1], X2: it.BBox[2], Y2: it.BBox[3]}
		}
		items = append(items, gi)
		position++
	}

	if len(raw.Sections) > 0 {
		for _, s := range raw.Sections {
			sec := model.Section{Title: s.Title, Type: model.SectionType(strings.ToUpper(s.Type))}
			for i, it := range s.Items {
				appendItem(sec, i == 0, it)
			}
		}
	} else {
		for _, it := range raw.Items {
			appendItem(model.Section{}, false, it)
		}
	}

	if len(items) == 0 {
		return Reply{}, fmt.Errorf("%w: no questions in reply", ErrParseFailure)
	}

	return Reply{Items: items, RawText: text}, nil
}
