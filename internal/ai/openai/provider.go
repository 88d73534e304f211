package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/synthgen/internal/ai/transport"
	"github.com/kiranshivaraju/synthgen/internal/config"
	"github.com/kiranshivaraju/synthgen/pkg/models"
)

// Provider implements models.TextGenerator using the OpenAI chat completions API.
type Provider struct {
	cfg    config.OpenAIConfig
	client *http.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) GenerateText(ctx context.Context, prompt string) (string, error) {
	text, err := ChatCompletion(ctx, p.client, p.cfg.BaseURL, p.cfg.APIKey, p.cfg.Model, prompt)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	return text, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ChatCompletion sends a single user message to any server speaking the
// OpenAI /v1/chat/completions protocol and returns the first choice.
func ChatCompletion(ctx context.Context, client *http.Client, baseURL, apiKey, model, prompt string) (string, error) {
	url := strings.TrimRight(baseURL, "/") + "/v1/chat/completions"

	var headers map[string]string
	if apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + apiKey}
	}

	var resp chatResponse
	err := transport.PostJSON(ctx, client, url, headers, chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", transport.ErrInvalidResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

var _ models.TextGenerator = (*Provider)(nil)
