package config

import (
	"errors"
	"fmt"
	"time"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig holds redis connection settings. Redis is optional; when no
// addr is configured, source resolution simply runs uncached.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PostgresConfig holds the storage sink settings.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// FetchConfig tunes pacing and retries for one provider.
type FetchConfig struct {
	MinInterval     string `mapstructure:"min_interval"`      // e.g. "340ms"
	MaxProviderWait string `mapstructure:"max_provider_wait"` // cap on provider-issued backoff
	MaxRetries      int    `mapstructure:"max_retries"`
}

// VKConfig controls the VK (wall posts) source.
type VKConfig struct {
	Token            string      `mapstructure:"token"`
	BaseURL          string      `mapstructure:"base_url"`
	APIVersion       string      `mapstructure:"api_version"`
	PageSize         int         `mapstructure:"page_size"`
	CommentBatchSize int         `mapstructure:"comment_batch_size"` // execute limit
	CommentCap       int         `mapstructure:"comment_cap"`        // per-post cap
	Fetch            FetchConfig `mapstructure:"fetch"`
}

// TelegramConfig controls the Telegram (channel messages) source. The
// client talks to an MTProto HTTP gateway.
type TelegramConfig struct {
	BaseURL    string      `mapstructure:"base_url"`
	Token      string      `mapstructure:"token"`
	PageSize   int         `mapstructure:"page_size"`
	CommentCap int         `mapstructure:"comment_cap"`
	Fetch      FetchConfig `mapstructure:"fetch"`
}

// DataSources groups the platform clients.
type DataSources struct {
	VK       VKConfig       `mapstructure:"vk"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// OpenAIConfig configures the sentiment classifier backend.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// IngestConfig drives the orchestrator: which topics to collect, where
// their channel-list files live, and how wide to fan out.
type IngestConfig struct {
	DaysBack         int      `mapstructure:"days_back"`
	Concurrency      int      `mapstructure:"concurrency"` // sources in flight per group
	VKListsDir       string   `mapstructure:"vk_lists_dir"`
	TelegramListsDir string   `mapstructure:"telegram_lists_dir"`
	Topics           []string `mapstructure:"topics"` // channel-list file stems
	MetricsAddr      string   `mapstructure:"metrics_addr"`
}

// Config is the top-level configuration structure.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Sources  DataSources    `mapstructure:"sources"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Postgres.MaxConns == 0 {
		c.Postgres.MaxConns = 8
	}
	if c.Sources.VK.BaseURL == "" {
		c.Sources.VK.BaseURL = "https://api.vk.com"
	}
	if c.Sources.VK.APIVersion == "" {
		c.Sources.VK.APIVersion = "5.199"
	}
	if c.Sources.VK.PageSize == 0 {
		c.Sources.VK.PageSize = 100
	}
	if c.Sources.VK.CommentBatchSize == 0 {
		c.Sources.VK.CommentBatchSize = 25
	}
	if c.Sources.VK.CommentCap == 0 {
		c.Sources.VK.CommentCap = 100
	}
	fillFetchDefaults(&c.Sources.VK.Fetch, "340ms")
	if c.Sources.Telegram.PageSize == 0 {
		c.Sources.Telegram.PageSize = 100
	}
	if c.Sources.Telegram.CommentCap == 0 {
		c.Sources.Telegram.CommentCap = 100
	}
	fillFetchDefaults(&c.Sources.Telegram.Fetch, "500ms")
	if c.Ingest.DaysBack == 0 {
		c.Ingest.DaysBack = 3
	}
	if c.Ingest.Concurrency == 0 {
		c.Ingest.Concurrency = 4
	}
}

func fillFetchDefaults(f *FetchConfig, minInterval string) {
	if f.MinInterval == "" {
		f.MinInterval = minInterval
	}
	if f.MaxProviderWait == "" {
		f.MaxProviderWait = "60s"
	}
	if f.MaxRetries == 0 {
		f.MaxRetries = 3
	}
}

// Validate fails fast on configuration the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required (set POSTGRES_DSN or postgres.dsn in config)")
	}
	if len(c.Ingest.Topics) == 0 {
		return errors.New("ingest.topics must list at least one channel-list file stem")
	}
	if c.Ingest.VKListsDir != "" && c.Sources.VK.Token == "" {
		return errors.New("sources.vk.token is required when vk_lists_dir is set (set VK_TOKEN)")
	}
	if c.Ingest.TelegramListsDir != "" && c.Sources.Telegram.BaseURL == "" {
		return errors.New("sources.telegram.base_url is required when telegram_lists_dir is set")
	}
	if c.Ingest.VKListsDir == "" && c.Ingest.TelegramListsDir == "" {
		return errors.New("at least one of ingest.vk_lists_dir / ingest.telegram_lists_dir must be set")
	}
	for _, f := range []FetchConfig{c.Sources.VK.Fetch, c.Sources.Telegram.Fetch} {
		if _, err := time.ParseDuration(f.MinInterval); err != nil {
			return fmt.Errorf("invalid fetch.min_interval %q: %w", f.MinInterval, err)
		}
		if _, err := time.ParseDuration(f.MaxProviderWait); err != nil {
			return fmt.Errorf("invalid fetch.max_provider_wait %q: %w", f.MaxProviderWait, err)
		}
	}
	return nil
}
