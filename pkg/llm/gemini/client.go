package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/user/whoisscan/pkg/llm"
)

const defaultModel = "gemini-2.5-flash"

// Client implements llm.Provider on top of the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// New creates a Gemini-backed provider. The API key comes from config.
func New(ctx context.Context, config *llm.Config) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{client: client, model: model}, nil
}

// Complete implements llm.Provider.
func (c *Client) Complete(ctx context.Context, r *llm.Request) (*llm.Response, error) {
	contents := make([]*genai.Content, 0, len(r.Messages))
	for _, m := range r.Messages {
		contents = append(contents, genai.NewContentFromText(m.Content, roleFor(m.Role)))
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     r.Temperature,
		MaxOutputTokens: int32(r.MaxTokens),
	}
	if r.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(r.System, genai.RoleUser)
	}

	res, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	return &llm.Response{Content: res.Text()}, nil
}

func roleFor(role string) genai.Role {
	if role == llm.RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}
