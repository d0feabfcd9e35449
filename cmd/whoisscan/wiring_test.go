package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/whoisscan/internal/config"
	"github.com/user/whoisscan/pkg/llm"
	"github.com/user/whoisscan/pkg/llm/openai"
)

func TestProviderConfig(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		baseURL  string
		want     llm.Config
	}{
		{"openai", openai.DefaultModel, openai.DefaultBaseURL, llm.Config{BaseURL: openai.DefaultBaseURL, Model: openai.DefaultModel}},
		{"anthropic", openai.DefaultModel, openai.DefaultBaseURL, llm.Config{}},
		{"gemini", openai.DefaultModel, openai.DefaultBaseURL, llm.Config{}},
		{"anthropic", "claude-sonnet-4-5", "http://proxy.local/v1", llm.Config{BaseURL: "http://proxy.local/v1", Model: "claude-sonnet-4-5"}},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.LLM.Provider = tt.provider
		cfg.LLM.Model = tt.model
		cfg.LLM.BaseURL = tt.baseURL

		got := providerConfig(cfg)
		if got.Model != tt.want.Model || got.BaseURL != tt.want.BaseURL {
			t.Errorf("%s: got model %q base %q, want model %q base %q",
				tt.provider, got.Model, got.BaseURL, tt.want.Model, tt.want.BaseURL)
		}
	}
}

func TestNewProvider_AnthropicDropsOpenAIModel(t *testing.T) {
	var model string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		model = req.Model
		w.Write([]byte(`{"content":[{"type":"text","text":"no"}]}`))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.BaseURL = server.URL
	cfg.LLM.APIKey = "test"

	provider, err := newProvider(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newProvider: %v", err)
	}
	if _, err := provider.Complete(context.Background(), &llm.Request{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		MaxTokens: 5,
	}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if model == "" || model == openai.DefaultModel {
		t.Errorf("anthropic request should carry an anthropic model, got %q", model)
	}
}
