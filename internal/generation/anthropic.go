package generation

import (
	"context"
	"strings"
	"time"
)

type anthropicBackend struct {
	model        string
	apiKey       string
	baseURL      string
	systemPrompt string
	http         httpClient
}

func newAnthropicBackend(model, apiKey, baseURL, systemPrompt string, timeout time.Duration) *anthropicBackend {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &anthropicBackend{
		model:        model,
		apiKey:       apiKey,
		baseURL:      baseURLOr(baseURL, defaultAnthropicBaseURL),
		systemPrompt: systemPrompt,
		http:         newHTTPClient(ProviderAnthropic, timeout),
	}
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
}

// Generate calls the messages endpoint and joins the text blocks in order.
func (a *anthropicBackend) Generate(ctx context.Context, req Request) (string, error) {
	prompt, err := userPrompt(req)
	if err != nil {
		return "", a.http.fail(0, "failed to build prompt", err)
	}

	body := anthropicRequest{
		Model:       a.model,
		MaxTokens:   anthropicMaxTokens,
		Temperature: temperature,
		System:      a.systemPrompt,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicBlock{{Type: "text", Text: prompt}},
		}},
	}

	var resp anthropicResponse
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
	}
	if err := a.http.postJSON(ctx, a.baseURL+"/v1/messages", headers, body, &resp); err != nil {
		return "", err
	}
	if resp.Content == nil {
		return "", a.http.fail(200, "invalid Anthropic response format", nil)
	}

	var texts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			texts = append(texts, block.Text)
		}
	}
	content := strings.TrimSpace(strings.Join(texts, "\n"))
	if content == "" {
		return "", a.http.fail(200, "empty Anthropic assistant content", nil)
	}
	return content, nil
}

var _ Backend = (*anthropicBackend)(nil)
