package vllm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/synthgen/internal/ai/openai"
	"github.com/kiranshivaraju/synthgen/internal/config"
	"github.com/kiranshivaraju/synthgen/pkg/models"
)

// Provider implements models.TextGenerator against vLLM's OpenAI-compatible server.
type Provider struct {
	cfg    config.VLLMConfig
	client *http.Client
}

func NewProvider(cfg config.VLLMConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "vllm" }

func (p *Provider) GenerateText(ctx context.Context, prompt string) (string, error) {
	text, err := openai.ChatCompletion(ctx, p.client, p.cfg.BaseURL, p.cfg.APIKey, p.cfg.Model, prompt)
	if err != nil {
		return "", fmt.Errorf("vllm chat completion: %w", err)
	}
	return text, nil
}

var _ models.TextGenerator = (*Provider)(nil)
