// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultPlaceholderImage = "https://placehold.co/1200x630/png?text=News"

type Config struct {
	// Storage settings
	DatabaseURL   string // empty = JSON file store
	StoreFilePath string
	RedisAddr     string
	RedisPassword string

	// Feed settings
	FeedsConfigPath string
	FeedTimeout     time.Duration
	MaxItemsPerFeed int
	FeedConcurrency int

	// Dedup settings
	DedupPrefixLength int

	// Image settings
	StockProviders     []StockProvider
	StockTimeout       time.Duration
	StockCacheTTL      time.Duration
	StockRatePerSecond float64
	StockKeywordLimit  int
	StockConcurrency   int
	ResolveConcurrency int
	DefaultPlaceholder string
	WatermarkCheckURL  string
	WatermarkTimeout   time.Duration
	AISearch           AISearch

	// Retention settings
	ArchiveAfter time.Duration
	PurgeAfter   time.Duration

	// Cycle settings
	CycleInterval time.Duration
	TodayOnly     bool
	Timezone      string
	Location      *time.Location

	// Events
	KafkaBrokers        []string
	KafkaTopic          string
	KafkaPublishTimeout time.Duration

	// App settings
	Debug            bool
	EnableMonitoring bool
	MonitoringPort   string
	RetryAttempts    int
	RetryDelay       time.Duration
	DefaultWorkspace string
}

// StockProvider is one public image-search endpoint. URL contains {query}.
type StockProvider struct {
	Name string
	Kind string // "redirect" or "html"
	URL  string
}

// AISearch configures the search-augmented model used by the third image tier.
type AISearch struct {
	Provider       string // perplexity | openai | gemini
	APIKey         string
	BaseURL        string
	Model          string
	AllowedDomains []string
	Recency        string
	Timeout        time.Duration
	MaxDaily       int // 0 = unlimited
	Temperature    float64
	MaxTokens      int
}

// Enabled reports whether the AI tier has a credential.
func (a AISearch) Enabled() bool {
	return strings.TrimSpace(a.APIKey) != ""
}

var defaultAllowedDomains = []string{
	"images.unsplash.com",
	"unsplash.com",
	"images.pexels.com",
	"pexels.com",
	"cdn.pixabay.com",
	"pixabay.com",
	"upload.wikimedia.org",
	"commons.wikimedia.org",
	"live.staticflickr.com",
}

func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		StoreFilePath:      getEnvOrDefault("STORE_FILE_PATH", "newsqueue.json"),
		FeedsConfigPath:    getEnvOrDefault("FEEDS_CONFIG_PATH", "configs/feeds.yaml"),
		FeedTimeout:        getEnvDurationOrDefault("FEED_TIMEOUT", 10*time.Second),
		MaxItemsPerFeed:    getEnvIntOrDefault("MAX_ITEMS_PER_FEED", 20),
		FeedConcurrency:    getEnvIntOrDefault("FEED_CONCURRENCY", 4),
		DedupPrefixLength:  getEnvIntOrDefault("DEDUP_PREFIX_LENGTH", 50),
		StockTimeout:       getEnvDurationOrDefault("STOCK_TIMEOUT", 8*time.Second),
		StockCacheTTL:      getEnvDurationOrDefault("STOCK_CACHE_TTL", 6*time.Hour),
		StockRatePerSecond: getEnvFloatOrDefault("STOCK_RATE_PER_SECOND", 2),
		StockKeywordLimit:  4,
		StockConcurrency:   getEnvIntOrDefault("STOCK_CONCURRENCY", 2),
		ResolveConcurrency: getEnvIntOrDefault("RESOLVE_CONCURRENCY", 4),
		DefaultPlaceholder: getEnvOrDefault("DEFAULT_PLACEHOLDER_IMAGE", DefaultPlaceholderImage),
		WatermarkCheckURL:  os.Getenv("WATERMARK_CHECK_URL"),
		WatermarkTimeout:   getEnvDurationOrDefault("WATERMARK_TIMEOUT", 5*time.Second),
		ArchiveAfter:       getEnvDurationOrDefault("RETENTION_ARCHIVE_AFTER", 48*time.Hour),
		PurgeAfter:         getEnvDurationOrDefault("RETENTION_PURGE_AFTER", 30*24*time.Hour),
		CycleInterval:      getEnvDurationOrDefault("CYCLE_INTERVAL", 30*time.Minute),
		Timezone:           getEnvOrDefault("TIMEZONE", "Local"),
		KafkaTopic:         getEnvOrDefault("KAFKA_TOPIC", "newsqueue.entries"),
		MonitoringPort:     getEnvOrDefault("MONITORING_PORT", "8080"),
		RetryAttempts:      getEnvIntOrDefault("RETRY_ATTEMPTS", 5),
		RetryDelay:         getEnvDurationOrDefault("RETRY_DELAY", 2*time.Second),
		DefaultWorkspace:   getEnvOrDefault("DEFAULT_WORKSPACE", "Default Workspace"),
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.KafkaBrokers = splitAndTrim(os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaPublishTimeout = getEnvDurationOrDefault("KAFKA_PUBLISH_TIMEOUT", 5*time.Second)

	cfg.StockProviders = []StockProvider{
		{
			Name: getEnvOrDefault("STOCK_PROVIDER_1_NAME", "unsplash"),
			Kind: getEnvOrDefault("STOCK_PROVIDER_1_KIND", "redirect"),
			URL:  getEnvOrDefault("STOCK_PROVIDER_1_URL", "https://source.unsplash.com/1600x900/?{query}"),
		},
		{
			Name: getEnvOrDefault("STOCK_PROVIDER_2_NAME", "pexels"),
			Kind: getEnvOrDefault("STOCK_PROVIDER_2_KIND", "html"),
			URL:  getEnvOrDefault("STOCK_PROVIDER_2_URL", "https://www.pexels.com/search/{query}/"),
		},
	}

	cfg.AISearch = AISearch{
		Provider:       strings.ToLower(getEnvOrDefault("AI_SEARCH_PROVIDER", "perplexity")),
		APIKey:         os.Getenv("AI_SEARCH_API_KEY"),
		BaseURL:        os.Getenv("AI_SEARCH_BASE_URL"),
		Model:          os.Getenv("AI_SEARCH_MODEL"),
		AllowedDomains: defaultAllowedDomains,
		Recency:        getEnvOrDefault("AI_SEARCH_RECENCY", "week"),
		Timeout:        getEnvDurationOrDefault("AI_SEARCH_TIMEOUT", 15*time.Second),
		MaxDaily:       getEnvIntOrDefault("AI_SEARCH_MAX_DAILY", 200),
		Temperature:    getEnvFloatOrDefault("AI_SEARCH_TEMPERATURE", 0.2),
		MaxTokens:      getEnvIntOrDefault("AI_SEARCH_MAX_TOKENS", 300),
	}
	if domains := splitAndTrim(os.Getenv("AI_SEARCH_ALLOWED_DOMAINS")); len(domains) > 0 {
		cfg.AISearch.AllowedDomains = domains
	}
	// GEMINI_API_KEY is accepted as a fallback for the gemini backend.
	if cfg.AISearch.APIKey == "" && cfg.AISearch.Provider == "gemini" {
		cfg.AISearch.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}
	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		cfg.EnableMonitoring = true
	}
	if os.Getenv("TODAY_ONLY") == "true" {
		cfg.TodayOnly = true
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.MaxItemsPerFeed <= 0 {
		return fmt.Errorf("MAX_ITEMS_PER_FEED must be positive")
	}
	if c.FeedConcurrency <= 0 {
		return fmt.Errorf("FEED_CONCURRENCY must be positive")
	}
	if c.ResolveConcurrency <= 0 {
		return fmt.Errorf("RESOLVE_CONCURRENCY must be positive")
	}
	if c.StockConcurrency <= 0 {
		return fmt.Errorf("STOCK_CONCURRENCY must be positive")
	}
	if c.DedupPrefixLength <= 0 {
		return fmt.Errorf("DEDUP_PREFIX_LENGTH must be positive")
	}
	if c.ArchiveAfter <= 0 {
		return fmt.Errorf("RETENTION_ARCHIVE_AFTER must be positive")
	}
	if c.KafkaPublishTimeout <= 0 {
		return fmt.Errorf("KAFKA_PUBLISH_TIMEOUT must be positive")
	}
	if c.PurgeAfter <= c.ArchiveAfter {
		return fmt.Errorf("RETENTION_PURGE_AFTER must be longer than RETENTION_ARCHIVE_AFTER")
	}
	for _, p := range c.StockProviders {
		if p.Kind != "redirect" && p.Kind != "html" {
			return fmt.Errorf("stock provider %s: kind must be 'redirect' or 'html'", p.Name)
		}
		if !strings.Contains(p.URL, "{query}") {
			return fmt.Errorf("stock provider %s: URL must contain {query}", p.Name)
		}
	}
	switch c.AISearch.Provider {
	case "perplexity", "openai", "gemini":
	default:
		return fmt.Errorf("AI_SEARCH_PROVIDER must be 'perplexity', 'openai' or 'gemini'")
	}
	return nil
}
