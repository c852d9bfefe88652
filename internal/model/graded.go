package model

// MatchMethod records which Fusion Matcher strategy produced an
// assignment. text_similarity_<ratio> carries the winning ratio rounded
// to two decimals, e.g. "text_similarity_0.91".
type MatchMethod string

const (
	MatchTextSimilarity MatchMethod = "text_similarity" // prefix; actual value has _<ratio> appended
	MatchPosition       MatchMethod = "position"
	MatchSequential     MatchMethod = "sequential"
	MatchEmptyAnswer    MatchMethod = "empty_answer"
	MatchNone           MatchMethod = "none"
)

// GradedItem is the fused per-question record the Annotator and
// downstream collaborators consume.
type GradedItem struct {
	Position int // monotonic order across all sections and pages

	SectionTitle string
	SectionType  SectionType

	ZhHint     string
	LLMText    string
	OCRText    string
	IsCorrect  bool
	Confidence float64
	Note       string

	PageIndex int     // assignment page, trusts the VLM's "pg" (see Open Question ii)
	BBox      BBoxAbs // absolute pixels, already padded for annotation

	MatchMethod string // a MatchMethod value, with ratio suffix when applicable

	// ConsistencyOK is true iff both engines produced comparable,
	// non-empty text whose normalized forms agree above the
	// consistency threshold; false on disagreement; nil when one
	// side is absent.
	ConsistencyOK *bool

	// PageConflict is set when the VLM's reported page differs from
	// the OCR line's own page (Open Question ii). Both assignment and
	// annotation use PageIndex (the VLM's page); the OCR line's page is
	// not used for drawing. This flag surfaces the discrepancy instead
	// of hiding it.
	PageConflict bool
}
