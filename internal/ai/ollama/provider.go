package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/synthgen/internal/ai/transport"
	"github.com/kiranshivaraju/synthgen/internal/config"
	"github.com/kiranshivaraju/synthgen/pkg/models"
)

// Provider implements models.TextGenerator using Ollama's generate API.
type Provider struct {
	cfg    config.OllamaConfig
	client *http.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "ollama" }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (p *Provider) GenerateText(ctx context.Context, prompt string) (string, error) {
	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/api/generate"

	var resp generateResponse
	err := transport.PostJSON(ctx, p.client, url, nil, generateRequest{
		Model:  p.cfg.Model,
		Prompt: prompt,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return resp.Response, nil
}

var _ models.TextGenerator = (*Provider)(nil)
