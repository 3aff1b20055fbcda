package aisearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultPerplexityURL   = "https://api.perplexity.ai"
	defaultPerplexityModel = "sonar"
)

// PerplexityConfig configures the Perplexity chat completions client.
type PerplexityConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	AllowedDomains []string
	Recency        string // day, week, month, year
	Temperature    float64
	MaxTokens      int
	Timeout        time.Duration
}

// Perplexity calls the Perplexity chat API with a server-side domain filter.
type Perplexity struct {
	cfg    PerplexityConfig
	client *http.Client
}

func NewPerplexity(cfg PerplexityConfig) *Perplexity {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPerplexityURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultPerplexityModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Perplexity{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (p *Perplexity) Name() string { return "perplexity" }

// FiltersDomains is true: the allow-list travels with the request.
func (p *Perplexity) FiltersDomains() bool { return true }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	MaxTokens           int           `json:"max_tokens,omitempty"`
	Temperature         float64       `json:"temperature"`
	SearchDomainFilter  []string      `json:"search_domain_filter,omitempty"`
	SearchRecencyFilter string        `json:"search_recency_filter,omitempty"`
}

type perplexityResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Search returns the model's raw reply for the headline.
func (p *Perplexity) Search(ctx context.Context, headline, category string) (string, error) {
	body, err := json.Marshal(perplexityRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemInstruction(p.cfg.AllowedDomains)},
			{Role: "user", Content: UserPrompt(headline, category)},
		},
		MaxTokens:           p.cfg.MaxTokens,
		Temperature:         p.cfg.Temperature,
		SearchDomainFilter:  p.cfg.AllowedDomains,
		SearchRecencyFilter: p.cfg.Recency,
	})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("perplexity request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("perplexity read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("perplexity: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out perplexityResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("perplexity decode: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("perplexity: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no response from perplexity")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
