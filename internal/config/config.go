// Package config loads the keyed configuration bundle the grading core
// is constructed with. Nothing here is read at import time: Load
// returns a value that callers pass explicitly into every
// constructor, rather than process-wide package variables.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is the configuration bundle the grading pipeline and its
// collaborators are built from.
type Config struct {
	// llm.freeform_prompt
	FreeformPrompt []string

	VLMEndpoint       string
	VLMProvider       string // "openai" | "gemini"
	VLMAPIKey         string
	VLMModel          string
	VLMMaxTokens      int
	VLMMaxTokensRetry int

	OCREndpoint string
	OCRAPIKey   string
	OCRSecretKey string
	OCRParams   map[string]string

	ImageMaxLongSide int
	ImageJPEGQuality int

	MergeWordThreshold        float64
	MergePhraseThreshold      float64
	MergeHandwritingThreshold float64

	MatchTextThreshold        float64
	MatchPositionMaxDistance  float64
	MatchConsistencyThreshold float64

	UUIDNumericWeight float64
	UUIDAlphaWeight   float64

	DebugSaveRaw bool

	VLMTimeoutSeconds     int
	OCRTimeoutSeconds     int
	OverallTimeoutSeconds int

	VLMRateLimitRPS    float64
	OCRRateLimitRPS    float64
	RateLimitBackoffMS int

	DatabaseURL string
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getFloat(k string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getInt(k string, def int) int {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(k string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

// DefaultPrompt is the VLM instruction used when no override is
// configured. It is joined with newlines at call time, matching the
// teacher's llm.freeform_prompt shape (a sequence of lines, not one
// baked-in string), so operators can adjust it without code changes.
var DefaultPrompt = []string{
	"You are grading a handwritten English dictation worksheet.",
	"Return ONLY JSON. No prose before or after.",
	"Group questions under sections with \"title\" and \"type\" (WORD, PHRASE, or SENTENCE).",
	"Number questions sequentially per section using \"q\"; never include the numeral in \"hint\".",
	"For each question emit: q, hint (Chinese prompt), ans (transcribed student answer, empty if unanswered),",
	"ok (boolean correctness judged against spelling/grammar/case), conf (0..1), pg (0-based page index of the",
	"handwritten answer), note (free text), bbox ([x1,y1,x2,y2] of the handwritten answer, normalized to [0,1]).",
	"If a question is unanswered, set ans to the empty string, ok to false, and note to \"未作答\".",
	"Emit items in worksheet reading order; do not reorder by question number.",
}

// Load reads the bundle from the environment, applying defaults. It
// never calls log.Fatal: a missing API key is the caller's problem to
// report, not this package's.
func Load() *Config {
	return &Config{
		FreeformPrompt: DefaultPrompt,

		VLMEndpoint:       getEnv("VLM_ENDPOINT", ""),
		VLMProvider:       getEnv("VLM_PROVIDER", "openai"),
		VLMAPIKey:         getEnv("VLM_API_KEY", os.Getenv("OPENAI_API_KEY")),
		VLMModel:          getEnv("VLM_MODEL", "gpt-4o-mini"),
		VLMMaxTokens:      getInt("VLM_MAX_TOKENS", 2048),
		VLMMaxTokensRetry: getInt("VLM_MAX_TOKENS_RETRY", 4096),

		OCREndpoint:  getEnv("OCR_ENDPOINT", "https://ocr.api.cloud.yandex.net/ocr/v1/recognizeText"),
		OCRAPIKey:    getEnv("OCR_API_KEY", os.Getenv("YC_OAUTH_TOKEN")),
		OCRSecretKey: getEnv("OCR_SECRET_KEY", ""),
		OCRParams:    map[string]string{"folder_id": getEnv("YC_FOLDER_ID", "")},

		ImageMaxLongSide: getInt("IMAGE_MAX_LONG_SIDE", 3508),
		ImageJPEGQuality: getInt("IMAGE_JPEG_QUALITY", 85),

		MergeWordThreshold:        getFloat("MERGE_WORD_THRESHOLD", 0.1),
		MergePhraseThreshold:      getFloat("MERGE_PHRASE_THRESHOLD", 0.5),
		MergeHandwritingThreshold: getFloat("MERGE_HANDWRITING_THRESHOLD", 0.4),

		MatchTextThreshold:        getFloat("MATCH_TEXT_THRESHOLD", 0.6),
		MatchPositionMaxDistance:  getFloat("MATCH_POSITION_MAX_DISTANCE", 100),
		MatchConsistencyThreshold: getFloat("MATCH_CONSISTENCY_THRESHOLD", 0.88),

		UUIDNumericWeight: getFloat("UUID_NUMERIC_WEIGHT", 0.8),
		UUIDAlphaWeight:   getFloat("UUID_ALPHA_WEIGHT", 0.2),

		DebugSaveRaw: getBool("DEBUG_SAVE_RAW", false),

		VLMTimeoutSeconds:     getInt("VLM_TIMEOUT_SECONDS", 180),
		OCRTimeoutSeconds:     getInt("OCR_TIMEOUT_SECONDS", 30),
		OverallTimeoutSeconds: getInt("OVERALL_TIMEOUT_SECONDS", 270),

		VLMRateLimitRPS:    getFloat("VLM_RATE_LIMIT_RPS", 1),
		OCRRateLimitRPS:    getFloat("OCR_RATE_LIMIT_RPS", 5),
		RateLimitBackoffMS: getInt("RATE_LIMIT_BACKOFF_MS", 2000),

		DatabaseURL: getEnv("DATABASE_URL", ""),
	}
}
