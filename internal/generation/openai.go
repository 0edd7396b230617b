package generation

import (
	"context"
	"strings"
	"time"
)

type openAIBackend struct {
	model        string
	apiKey       string
	baseURL      string
	systemPrompt string
	http         httpClient
}

func newOpenAIBackend(model, apiKey, baseURL, systemPrompt string, timeout time.Duration) *openAIBackend {
	if model == "" {
		model = defaultOpenAIModel
	}
	return &openAIBackend{
		model:        model,
		apiKey:       apiKey,
		baseURL:      baseURLOr(baseURL, defaultOpenAIBaseURL),
		systemPrompt: systemPrompt,
		http:         newHTTPClient(ProviderOpenAI, timeout),
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature"`
	Messages    []openAIMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate calls the chat completions endpoint; the text is the first
// choice's message content.
func (o *openAIBackend) Generate(ctx context.Context, req Request) (string, error) {
	prompt, err := userPrompt(req)
	if err != nil {
		return "", o.http.fail(0, "failed to build prompt", err)
	}

	body := openAIRequest{
		Model:       o.model,
		Temperature: temperature,
		Messages: []openAIMessage{
			{Role: "system", Content: o.systemPrompt},
			{Role: "user", Content: prompt},
		},
	}

	var resp openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	if err := o.http.postJSON(ctx, o.baseURL+"/v1/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == nil {
		return "", o.http.fail(200, "invalid OpenAI response format", nil)
	}
	content := strings.TrimSpace(*resp.Choices[0].Message.Content)
	if content == "" {
		return "", o.http.fail(200, "empty OpenAI assistant content", nil)
	}
	return content, nil
}

var _ Backend = (*openAIBackend)(nil)
