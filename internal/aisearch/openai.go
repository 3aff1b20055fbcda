package aisearch

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures any OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // empty = api.openai.com
	Model          string
	AllowedDomains []string
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
}

// OpenAI asks an OpenAI-compatible model for an image URL. There is no
// server-side domain filter, so callers must check the allow-list.
type OpenAI struct {
	cfg    OpenAIConfig
	client *openai.Client
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAI{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) FiltersDomains() bool { return false }

func (o *OpenAI) Search(ctx context.Context, headline, category string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemInstruction(o.cfg.AllowedDomains),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: UserPrompt(headline, category),
			},
		},
		Temperature: float32(o.cfg.Temperature),
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
