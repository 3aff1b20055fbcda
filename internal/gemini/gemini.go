package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/newsqueue/internal/aisearch"
)

const defaultModel = "gemini-1.5-flash"

type Config struct {
	APIKey         string
	Model          string
	AllowedDomains []string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
}

// Client asks Gemini for a news image URL. Gemini has no domain filter, so
// callers must check the allow-list on the reply.
type Client struct {
	client *genai.Client
	cfg    Config
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{client: client, cfg: cfg}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) FiltersDomains() bool { return false }

func (c *Client) Search(ctx context.Context, headline, category string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(aisearch.SystemInstruction(c.cfg.AllowedDomains))},
	}
	model.SetTemperature(float32(c.cfg.Temperature))
	if c.cfg.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(c.cfg.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(aisearch.UserPrompt(headline, category)))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
			b.WriteString("\n")
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("no text in Gemini response")
	}
	return out, nil
}
