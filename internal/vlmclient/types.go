package vlmclient

// rawReply is the VLM's constrained JSON reply, with short field
// names. Both shapes are accepted: the nested "sections" shape and
// the legacy flat "items" shape.
type rawReply struct {
	Sections []rawSection `json:"sections"`
	Items    []rawItem    `json:"items"` // legacy flat shape
}

type rawSection struct {
	Title string    `json:"title"`
	Type  string    `json:"type"` // WORD | PHRASE | SENTENCE
	Items []rawItem `json:"items"`
}

type rawItem struct {
	Q    int       `json:"q"`
	Hint string    `json:"hint"`
	Ans  string    `json:"ans"`
	OK   bool      `json:"ok"`
	Conf float64   `json:"conf"`
	Pg   int       `json:"pg"`
	Note string    `json:"note"`
	BBox []float64 `json:"bbox"` // [x1,y1,x2,y2] normalized to [0,1]
}
