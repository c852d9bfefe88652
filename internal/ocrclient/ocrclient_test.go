package ocrclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dictationgrader/internal/config"
	"dictationgrader/internal/model"
)

func newTestServer(t *testing.T, words map[string][]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/iam/v1/tokens", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"iamToken":"test-token"}`))
	})
	mux.HandleFunc("/ocr/recognize", func(w http.ResponseWriter, r *http.Request) {
		var buf [4096]byte
		n, _ := r.Body.Read(buf[:])
		body := string(buf[:n])
		modelName := "page"
		if strings.Contains(body, `"model":"handwritten"`) {
			modelName = "handwritten"
		}
		toks := words[modelName]
		var lineWords strings.Builder
		for i, tok := range toks {
			if i > 0 {
				lineWords.WriteString(",")
			}
			lineWords.WriteString(`{"text":"` + tok + `","confidence":0.9,"boundingBox":{"vertices":[{"x":1,"y":2},{"x":10,"y":2},{"x":10,"y":12},{"x":1,"y":12}]}}`)
		}
		w.Write([]byte(`{"result":{"textAnnotation":{"blocks":[{"lines":[{"words":[` + lineWords.String() + `]}]}]}}}`))
	})
	return httptest.NewServer(mux)
}

func TestRecognize(t *testing.T) {
	srv := newTestServer(t, map[string][]string{
		"page":        {"1.", "Listen"},
		"handwritten": {"aple"},
	})
	defer srv.Close()

	cfg := &config.Config{
		OCREndpoint:       srv.URL + "/ocr/recognize",
		OCRAPIKey:         "oauth-token",
		OCRTimeoutSeconds: 5,
		OCRParams:         map[string]string{"folder_id": "f1"},
	}
	c := New(cfg)
	c.iam.token = "test-token"
	c.iam.expiry = time.Now().Add(time.Hour)

	words, err := c.Recognize(context.Background(), model.Page{Index: 0, WhiteBalanced: []byte{0xFF, 0xD8, 0xFF, 0xE0}})
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}

	var printedCount, handwrittenCount int
	for _, w := range words {
		if w.PageIndex != 0 {
			t.Errorf("word %q has PageIndex %d, want 0", w.Text, w.PageIndex)
		}
		switch w.Type {
		case model.WordPrinted:
			printedCount++
		case model.WordHandwritten:
			handwrittenCount++
		}
	}
	if printedCount != 2 {
		t.Errorf("printed words = %d, want 2", printedCount)
	}
	if handwrittenCount != 1 {
		t.Errorf("handwritten words = %d, want 1", handwrittenCount)
	}
}

func TestRecognizeRetriesOnceOn429(t *testing.T) {
	var hits int
	mux := http.NewServeMux()
	mux.HandleFunc("/iam/v1/tokens", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"iamToken":"test-token"}`))
	})
	mux.HandleFunc("/ocr/recognize", func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"result":{"textAnnotation":{"blocks":[]}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := &config.Config{
		OCREndpoint:        srv.URL + "/ocr/recognize",
		OCRAPIKey:          "oauth-token",
		OCRTimeoutSeconds:  5,
		OCRParams:          map[string]string{"folder_id": "f1"},
		RateLimitBackoffMS: 1,
	}
	c := New(cfg)
	c.iam.token = "test-token"
	c.iam.expiry = time.Now().Add(time.Hour)

	_, err := c.recognizeModel(context.Background(), model.Page{Index: 0, WhiteBalanced: []byte{0xFF, 0xD8, 0xFF, 0xE0}}, "page", model.WordPrinted)
	if err != nil {
		t.Fatalf("recognizeModel() error = %v, want success after one 429 retry", err)
	}
	if hits != 2 {
		t.Errorf("server hits = %d, want 2 (one 429, one retry)", hits)
	}
}

func TestIamTokenCaching(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/iam/v1/tokens", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"iamToken":"tok"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newIamClient("oauth")
	c.httpc = srv.Client()
	// redirect the fixed IAM URL isn't possible without refactor; this
	// test only exercises the in-process cache hit path.
	c.token = "cached"
	c.expiry = time.Now().Add(time.Hour)

	tok, err := c.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok != "cached" {
		t.Errorf("Token() = %q, want cached (no network call)", tok)
	}
	if calls != 0 {
		t.Errorf("expected no IAM calls when token is cached, got %d", calls)
	}
}
