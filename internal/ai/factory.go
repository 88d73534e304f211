package ai

import (
	"fmt"

	"github.com/kiranshivaraju/synthgen/internal/ai/anthropic"
	"github.com/kiranshivaraju/synthgen/internal/ai/gemini"
	"github.com/kiranshivaraju/synthgen/internal/ai/ollama"
	"github.com/kiranshivaraju/synthgen/internal/ai/openai"
	"github.com/kiranshivaraju/synthgen/internal/ai/vllm"
	"github.com/kiranshivaraju/synthgen/internal/config"
	"github.com/kiranshivaraju/synthgen/pkg/models"
)

// NewProvider constructs the text-generation backend selected by config.
// Called once at process start; the result is shared by all requests.
func NewProvider(cfg config.AIConfig) (models.TextGenerator, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	case "gemini":
		return gemini.NewProvider(cfg.Gemini), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai, anthropic, gemini", cfg.Provider)
	}
}
