package config

import (
	"golang-stock-digest/pkg/config"
)

// Agent holds the configuration for the OpenAI-shaped agent endpoint that
// performs live web search.
type Agent struct {
	BaseURL             string `mapstructure:"base_url"`
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	APIKey              string `mapstructure:"api_key"`
	Model               string `mapstructure:"model"`
	MaxRequestPerMinute int    `mapstructure:"max_request_per_minute"`
	MaxTokenPerMinute   int    `mapstructure:"max_token_per_minute"`
}

// AI holds configuration for AI providers.
type AI struct {
	Provider string `mapstructure:"provider"`
}

// SMTP holds the email relay configuration.
type SMTP struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Scheduler holds the daily email scheduler configuration.
type Scheduler struct {
	Enabled  bool   `mapstructure:"enabled"`
	Timezone string `mapstructure:"timezone"`
	Hour     int    `mapstructure:"hour"`
	Minute   int    `mapstructure:"minute"`
}

// Digest holds digest generation knobs.
type Digest struct {
	Timezone               string `mapstructure:"timezone"`
	MaxConcurrentCollect   int    `mapstructure:"max_concurrent_collect"`
	MaxConcurrentSummarize int    `mapstructure:"max_concurrent_summarize"`
	MaxResultsPerCompany   int    `mapstructure:"max_results_per_company"`
	MaxRetries             int    `mapstructure:"max_retries"`
	IncludeContextNews     bool   `mapstructure:"include_context_news"`
	RSSFallbackEnabled     bool   `mapstructure:"rss_fallback_enabled"`
	EnrichContent          bool   `mapstructure:"enrich_content"`
}

// Telegram holds configuration for the admin Telegram notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the digest service.
type Config struct {
	App       config.App      `mapstructure:"app"`
	Logger    config.Logger   `mapstructure:"logger"`
	Database  config.Database `mapstructure:"database"`
	Redis     config.Redis    `mapstructure:"redis"`
	API       config.API      `mapstructure:"api"`
	Agent     Agent           `mapstructure:"agent"`
	Gemini    Gemini          `mapstructure:"gemini"`
	AI        AI              `mapstructure:"ai"`
	SMTP      SMTP            `mapstructure:"smtp"`
	Scheduler Scheduler       `mapstructure:"scheduler"`
	Digest    Digest          `mapstructure:"digest"`
	Telegram  Telegram        `mapstructure:"telegram"`
}

// Load loads the digest service configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Digest.Timezone == "" {
		cfg.Digest.Timezone = "America/New_York"
	}
	if cfg.Digest.MaxConcurrentCollect <= 0 {
		cfg.Digest.MaxConcurrentCollect = 3
	}
	if cfg.Digest.MaxConcurrentSummarize <= 0 {
		cfg.Digest.MaxConcurrentSummarize = 3
	}
	if cfg.Digest.MaxResultsPerCompany <= 0 {
		cfg.Digest.MaxResultsPerCompany = 30
	}
	if cfg.Digest.MaxRetries < 0 {
		cfg.Digest.MaxRetries = 0
	} else if cfg.Digest.MaxRetries == 0 {
		cfg.Digest.MaxRetries = 2
	}
	if cfg.Scheduler.Timezone == "" {
		cfg.Scheduler.Timezone = "America/New_York"
	}
	if cfg.Agent.MaxRequestPerMinute <= 0 {
		cfg.Agent.MaxRequestPerMinute = 20
	}
	if cfg.Agent.MaxTokenPerMinute <= 0 {
		cfg.Agent.MaxTokenPerMinute = 200000
	}
	if cfg.Gemini.MaxRequestPerMinute <= 0 {
		cfg.Gemini.MaxRequestPerMinute = 20
	}
	if cfg.Gemini.MaxTokenPerMinute <= 0 {
		cfg.Gemini.MaxTokenPerMinute = 200000
	}
}
