package model

// GradingResult is the top-level record returned by the grading
// pipeline to the external confirm collaborator.
type GradingResult struct {
	Items []GradedItem

	OriginalImageURLs []string
	GradedImageURLs   []string // empty entries mean the page was not persisted (DelegatePersistFailure or no delegate)
	ImageCount        int

	ExtractedDate *string
	WorksheetUUID *WorksheetUUID
	UUIDPages     []PageUUIDCandidate

	CorrectCount int
	TotalCount   int

	// DebugArtifacts holds the persistence-delegate ids of the raw
	// engine replies, populated only when debug.save_raw is enabled.
	DebugArtifacts *DebugArtifacts

	// Warnings carries user-visible, non-fatal diagnostics: UUID
	// page disagreement, per-page persist failures, VLM/OCR page
	// conflicts. Never populated for fatal errors, which are
	// returned as Go errors instead.
	Warnings []string
}

// DebugArtifacts records where the raw VLM/OCR replies for a request
// were persisted, for later replay.
type DebugArtifacts struct {
	VLMRawArtifactID string
	OCRRawArtifactIDs []string // one per page, empty string where the artifact could not be stored
}
