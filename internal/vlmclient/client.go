// Package vlmclient calls a vision-language model over a worksheet's
// page images and parses its constrained JSON reply into RawVLMItems.
package vlmclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dictationgrader/internal/config"
)

// Engine is one VLM provider. Call returns the raw reply text; parsing
// and the retry-with-doubled-budget decision live above the engine so
// both providers share one outcome policy.
type Engine interface {
	Call(ctx context.Context, prompt string, images [][]byte, maxTokens int) (string, error)
}

// Client wraps a provider engine with a parse-then-retry policy: a
// reply that fails to parse, or a call that fails, is retried once
// with a doubled token budget before the error surfaces.
type Client struct {
	engine         Engine
	prompt         string
	maxTokens      int
	maxTokensRetry int
	timeout        time.Duration

	limiter *rate.Limiter
	backoff time.Duration
}

// New builds a Client from the configured provider.
func New(cfg *config.Config) (*Client, error) {
	var eng Engine
	switch strings.ToLower(cfg.VLMProvider) {
	case "", "openai":
		eng = newOpenAIEngine(cfg)
	case "gemini":
		eng = newGeminiEngine(cfg)
	default:
		return nil, fmt.Errorf("vlmclient: unknown provider %q", cfg.VLMProvider)
	}
	return &Client{
		engine:         eng,
		prompt:         strings.Join(cfg.FreeformPrompt, "\n"),
		maxTokens:      cfg.VLMMaxTokens,
		maxTokensRetry: cfg.VLMMaxTokensRetry,
		timeout:        time.Duration(cfg.VLMTimeoutSeconds) * time.Second,
		limiter:        newLimiter(cfg.VLMRateLimitRPS),
		backoff:        time.Duration(cfg.RateLimitBackoffMS) * time.Millisecond,
	}, nil
}

// newLimiter treats a non-positive rate as unconfigured and leaves the
// endpoint unbounded rather than blocking forever on a zero refill rate.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// Grade sends every page image in one multi-image request and returns
// the flattened item list. On a parse failure or a failed call it
// retries exactly once with the doubled token budget; a second parse
// failure surfaces ErrParseFailure, a second failed call ErrFailure or
// ErrTimeout.
func (c *Client) Grade(ctx context.Context, images [][]byte) (Reply, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.call(ctx, images, c.maxTokens)
	if err == nil {
		reply, perr := parseReply(text)
		if perr == nil {
			return reply, text, nil
		}
	}

	text2, err := c.call(ctx, images, c.maxTokensRetry)
	if err != nil {
		return Reply{}, text, classifyCallErr(err)
	}
	reply2, perr2 := parseReply(text2)
	if perr2 != nil {
		return Reply{}, text2, fmt.Errorf("%w: retry also failed: %v", ErrParseFailure, perr2)
	}
	return reply2, text2, nil
}

// call bounds the request rate per endpoint with limiter, and treats a
// 429 response as retryable: one jittered backoff, one retry, and
// whatever that retry returns is final.
func (c *Client) call(ctx context.Context, images [][]byte, maxTokens int) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	text, err := c.engine.Call(ctx, c.prompt, images, maxTokens)
	if err == nil || !isRateLimited(err) {
		return text, err
	}

	if err := sleepJittered(ctx, c.backoff); err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.engine.Call(ctx, c.prompt, images, maxTokens)
}

func sleepJittered(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	wait := base/2 + time.Duration(rand.Int63n(int64(base)))
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isRateLimited reports whether err represents an HTTP 429 from either
// provider: go-openai surfaces it as an APIError or a RequestError
// carrying the status code, while the Gemini gRPC client surfaces it
// as a ResourceExhausted status.
func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}
	return false
}

func classifyCallErr(err error) error {
	if err == context.DeadlineExceeded || strings.Contains(err.Error(), "deadline exceeded") {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrFailure, err)
}

func dataURL(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

// --- OpenAI-compatible engine ---

type openaiEngine struct {
	api   *openai.Client
	model string
}

func newOpenAIEngine(cfg *config.Config) *openaiEngine {
	conf := openai.DefaultConfig(cfg.VLMAPIKey)
	if cfg.VLMEndpoint != "" {
		conf.BaseURL = cfg.VLMEndpoint
	}
	conf.HTTPClient = &http.Client{Timeout: time.Duration(cfg.VLMTimeoutSeconds) * time.Second}
	return &openaiEngine{api: openai.NewClientWithConfig(conf), model: cfg.VLMModel}
}

func (e *openaiEngine) Call(ctx context.Context, prompt string, images [][]byte, maxTokens int) (string, error) {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: prompt}}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL("image/jpeg", img),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}

	resp, err := e.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
		MaxTokens:   maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vlmclient: openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// --- Gemini engine ---

type geminiEngine struct {
	apiKey string
	model  string
}

func newGeminiEngine(cfg *config.Config) *geminiEngine {
	return &geminiEngine{apiKey: cfg.VLMAPIKey, model: cfg.VLMModel}
}

func (e *geminiEngine) Call(ctx context.Context, prompt string, images [][]byte, maxTokens int) (string, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.model)
	budget := int32(maxTokens)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     ptrFloat32(0),
		MaxOutputTokens: &budget,
	}

	parts := []genai.Part{genai.Text(prompt)}
	for _, img := range images {
		parts = append(parts, genai.ImageData("jpeg", img))
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	txt := firstText(resp)
	if txt == "" {
		return "", fmt.Errorf("vlmclient: gemini returned empty response")
	}
	return txt, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

func ptrFloat32(v float32) *float32 { return &v }
