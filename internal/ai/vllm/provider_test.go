package vllm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiranshivaraju/synthgen/internal/config"
)

func TestGenerateText_UsesOpenAICompatibleEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"row1\nrow2"}}]}`))
	}))
	defer ts.Close()

	p := NewProvider(config.VLLMConfig{BaseURL: ts.URL, Model: "mistral-7b"})
	out, err := p.GenerateText(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "row1\nrow2" {
		t.Errorf("unexpected output: %q", out)
	}
	if p.Name() != "vllm" {
		t.Errorf("unexpected name: %s", p.Name())
	}
}
