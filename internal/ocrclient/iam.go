package ocrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// iamClient caches a bearer token obtained from an OAuth token,
// refreshing a minute before expiry and on a 401 response.
type iamClient struct {
	httpc *http.Client

	mu     sync.Mutex
	oauth  string
	token  string
	expiry time.Time
}

func newIamClient(oauth string) *iamClient {
	return &iamClient{
		httpc: &http.Client{Timeout: 20 * time.Second},
		oauth: oauth,
	}
}

func (c *iamClient) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expiry.Add(-time.Minute)) {
		return c.token, nil
	}
	return c.fetch(ctx)
}

func (c *iamClient) refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetch(ctx)
}

func (c *iamClient) fetch(ctx context.Context) (string, error) {
	body := map[string]string{"yandexPassportOauthToken": c.oauth}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://iam.api.cloud.yandex.net/iam/v1/tokens", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("iam: status %d", resp.StatusCode)
	}

	var out struct {
		IamToken string `json:"iamToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	c.token = out.IamToken
	c.expiry = time.Now().Add(11 * time.Hour)
	return c.token, nil
}
