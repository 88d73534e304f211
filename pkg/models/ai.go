// Package models contains shared data models used across the synthgen codebase.
package models

import "context"

// TextGenerator is the interface every text-generation backend implements.
// The pipeline never calls a concrete provider directly; it is injected.
type TextGenerator interface {
	// GenerateText returns the model's completion for a single prompt.
	GenerateText(ctx context.Context, prompt string) (string, error)
	// Name returns the provider identifier (e.g., "ollama", "gemini").
	Name() string
}
