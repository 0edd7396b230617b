package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// httpClient is the JSON-over-HTTPS transport shared by both providers.
type httpClient struct {
	provider string
	client   *http.Client
	limiter  *rate.Limiter
}

func newHTTPClient(provider string, timeout time.Duration) httpClient {
	return httpClient{
		provider: provider,
		client:   &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
}

func (c httpClient) fail(status int, msg string, err error) error {
	return &ProviderError{Provider: c.provider, StatusCode: status, Message: msg, Err: err}
}

// postJSON sends body to url and decodes a 2xx JSON response into out.
// Every failure is a *ProviderError; there is no retry.
func (c httpClient) postJSON(ctx context.Context, url string, headers map[string]string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return c.fail(0, "rate limiter error", err)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return c.fail(0, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return c.fail(0, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return c.fail(0, "provider connection error", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(resp.StatusCode, "failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.fail(resp.StatusCode, fmt.Sprintf("provider HTTP error %d: %s", resp.StatusCode, string(raw)), nil)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return c.fail(resp.StatusCode, "provider returned non-JSON response", err)
	}
	return nil
}
