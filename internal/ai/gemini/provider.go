package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kiranshivaraju/synthgen/internal/ai/transport"
	"github.com/kiranshivaraju/synthgen/internal/config"
	"github.com/kiranshivaraju/synthgen/pkg/models"
)

// Provider implements models.TextGenerator using the Gemini generateContent API.
type Provider struct {
	cfg    config.GeminiConfig
	client *http.Client
}

func NewProvider(cfg config.GeminiConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "gemini" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (p *Provider) GenerateText(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(p.cfg.BaseURL, "/"), url.PathEscape(p.cfg.Model))
	headers := map[string]string{"x-goog-api-key": p.cfg.APIKey}

	var resp generateResponse
	err := transport.PostJSON(ctx, p.client, endpoint, headers, generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini generate content: %w: no candidates", transport.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, pt := range resp.Candidates[0].Content.Parts {
		sb.WriteString(pt.Text)
	}
	return sb.String(), nil
}

var _ models.TextGenerator = (*Provider)(nil)
