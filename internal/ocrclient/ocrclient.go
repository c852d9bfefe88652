// Package ocrclient calls a document-analysis OCR model on each
// worksheet page and returns word-level records tagged printed vs
// handwritten.
package ocrclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"dictationgrader/internal/config"
	"dictationgrader/internal/model"
	"dictationgrader/internal/util"
)

// ErrFailure is returned on a non-2xx response or a transport error. It
// is never fatal to the overall grading flow: the caller degrades to
// text-only and sequential fallback.
var ErrFailure = errors.New("ocrclient: failure")

// MinConfidence is the floor below which a word is still kept but
// flagged low-confidence rather than dropped; low-confidence words may
// still anchor matches.
const MinConfidence = 0.3

// Client recognizes text on worksheet pages via a Yandex-style
// document OCR endpoint, caching the IAM bearer token.
type Client struct {
	httpc    *http.Client
	iam      *iamClient
	endpoint string
	folderID string
	timeout  time.Duration

	limiter *rate.Limiter
	backoff time.Duration
}

// New builds a Client from the configured OCR endpoint and credentials.
func New(cfg *config.Config) *Client {
	return &Client{
		httpc:    &http.Client{Timeout: time.Duration(cfg.OCRTimeoutSeconds) * time.Second},
		iam:      newIamClient(cfg.OCRAPIKey),
		endpoint: cfg.OCREndpoint,
		folderID: cfg.OCRParams["folder_id"],
		timeout:  time.Duration(cfg.OCRTimeoutSeconds) * time.Second,
		limiter:  newLimiter(cfg.OCRRateLimitRPS),
		backoff:  time.Duration(cfg.RateLimitBackoffMS) * time.Millisecond,
	}
}

// newLimiter treats a non-positive rate as unconfigured and leaves the
// endpoint unbounded rather than blocking forever on a zero refill rate.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

type ocrRequest struct {
	Content  string `json:"content"`
	MimeType string `json:"mimeType,omitempty"`
	Model    string `json:"model,omitempty"`
}

type ocrResponse struct {
	Result *struct {
		TextAnnotation *struct {
			Blocks []struct {
				Lines []struct {
					Words []struct {
						Text       string  `json:"text"`
						Confidence float64 `json:"confidence"`
						BoundingBox struct {
							Vertices []struct {
								X float64 `json:"x"`
								Y float64 `json:"y"`
							} `json:"vertices"`
						} `json:"boundingBox"`
					} `json:"words"`
				} `json:"lines"`
			} `json:"blocks"`
		} `json:"textAnnotation"`
	} `json:"result"`
}

// Recognize returns the word-level OCR records for one page, in the
// order the engine emitted them. Printed vs handwritten classification
// follows the engine's own "handwritten" model flag applying uniformly
// to the page: the client issues two passes, one per model, and tags
// the results accordingly, since a single Yandex-style call recognizes
// only one class at a time.
func (c *Client) Recognize(ctx context.Context, page model.Page) ([]model.OCRWord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	printed, err := c.recognizeModel(ctx, page, "page", model.WordPrinted)
	if err != nil {
		return nil, err
	}
	handwritten, err := c.recognizeModel(ctx, page, "handwritten", model.WordHandwritten)
	if err != nil {
		return nil, err
	}
	return append(printed, handwritten...), nil
}

func (c *Client) recognizeModel(ctx context.Context, page model.Page, modelName string, wordType model.WordType) ([]model.OCRWord, error) {
	token, err := c.iam.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: iam token: %v", ErrFailure, err)
	}

	reqBody := ocrRequest{
		Content:  base64.StdEncoding.EncodeToString(page.WhiteBalanced),
		MimeType: util.SniffMimeForOCR(page.WhiteBalanced),
		Model:    modelName,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrFailure, err)
	}

	resp, err := c.send(ctx, payload, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		if err := sleepJittered(ctx, c.backoff); err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, payload, token)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailure, err)
		}
		defer resp.Body.Close()
	}

	if resp.StatusCode == http.StatusUnauthorized {
		token, err = c.iam.refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: iam refresh: %v", ErrFailure, err)
		}
		resp.Body.Close()
		resp, err = c.send(ctx, payload, token)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailure, err)
		}
		defer resp.Body.Close()
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFailure, resp.StatusCode)
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrFailure, err)
	}
	if out.Result == nil || out.Result.TextAnnotation == nil {
		return nil, nil
	}

	var words []model.OCRWord
	for _, block := range out.Result.TextAnnotation.Blocks {
		for _, line := range block.Lines {
			for _, w := range line.Words {
				text := strings.TrimSpace(w.Text)
				if text == "" {
					continue
				}
				bbox := verticesToBBox(w.BoundingBox.Vertices)
				words = append(words, model.OCRWord{
					Text:          text,
					BBox:          bbox,
					Type:          wordType,
					Confidence:    w.Confidence,
					LowConfidence: w.Confidence < MinConfidence,
					PageIndex:     page.Index,
				})
			}
		}
	}
	return words, nil
}

// send bounds the request rate against the endpoint with limiter and
// issues one POST carrying the given bearer token.
func (c *Client) send(ctx context.Context, payload []byte, token string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFailure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-folder-id", c.folderID)
	return c.httpc.Do(req)
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

func verticesToBBox(vs []struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}) model.BBoxAbs {
	if len(vs) == 0 {
		return model.BBoxAbs{}
	}
	minX, minY := vs[0].X, vs[0].Y
	maxX, maxY := vs[0].X, vs[0].Y
	for _, v := range vs[1:] {
		if v.X < minX {
			minX = v.X
		}
		if v.X > maxX {
			maxX = v.X
		}
		if v.Y < minY {
			minY = v.Y
		}
		if v.Y > maxY {
			maxY = v.Y
		}
	}
	return model.BBoxAbs{X1: minX, Y1: minY, X2: maxX, Y2: maxY}
}
