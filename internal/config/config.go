// Package config loads service configuration from files and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Development bool           `mapstructure:"development"`
	Ops         OpsConfig      `mapstructure:"ops"`
	Database    DatabaseConfig `mapstructure:"database"`
	Crawl       CrawlConfig    `mapstructure:"crawl"`
	RateLimit   RateConfig     `mapstructure:"rate_limit"`
	Headless    HeadlessConfig `mapstructure:"headless"`
	Validation  ValidateConfig `mapstructure:"validation"`
	Changes     ChangesConfig  `mapstructure:"changes"`
	Archive     ArchiveConfig  `mapstructure:"archive"`
	AntiBan     AntiBanConfig  `mapstructure:"anti_ban"`
}

// OpsConfig controls the operational HTTP server.
type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// CrawlConfig controls discovery and the worker pool.
type CrawlConfig struct {
	MaxConcurrentScrapers int           `mapstructure:"max_concurrent_scrapers"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	RetryAttempts         int           `mapstructure:"retry_attempts"`
	RetryDelay            time.Duration `mapstructure:"retry_delay"`
	EnableRSSDiscovery    bool          `mapstructure:"enable_rss_discovery"`
	EnableCategoryPages   bool          `mapstructure:"enable_category_pages"`
	SitemapOnly           bool          `mapstructure:"sitemap_only"`
	MaxURLsPerJob         int           `mapstructure:"max_urls_per_job"`
}

// RateConfig controls the per-domain sliding window limiter.
type RateConfig struct {
	RequestsPerMinute int            `mapstructure:"requests_per_minute"`
	PerDomain         map[string]int `mapstructure:"per_domain"`
}

// HeadlessConfig controls the chromedp render fetcher.
type HeadlessConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxParallel int           `mapstructure:"max_parallel"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ValidateConfig controls content quality scoring.
type ValidateConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	MinScore float64 `mapstructure:"min_score"`
}

// ChangesConfig controls the update decision for existing articles.
type ChangesConfig struct {
	MinUpdateInterval time.Duration `mapstructure:"min_update_interval"`
}

// ArchiveConfig controls raw HTML archiving.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseDir string `mapstructure:"base_dir"`
}

// AntiBanConfig pins request identity per domain.
type AntiBanConfig struct {
	UserAgents map[string]string `mapstructure:"user_agents"`
}

// Load reads configuration from an optional file path and the environment.
// Environment variables use the NEWSCRAWLER_ prefix with underscores for
// nesting, e.g. NEWSCRAWLER_DATABASE_DSN.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("development", false)
	v.SetDefault("ops.addr", ":9090")
	v.SetDefault("crawl.max_concurrent_scrapers", 5)
	v.SetDefault("crawl.request_timeout", 30*time.Second)
	v.SetDefault("crawl.retry_attempts", 3)
	v.SetDefault("crawl.retry_delay", 2*time.Second)
	v.SetDefault("crawl.enable_rss_discovery", true)
	v.SetDefault("crawl.enable_category_pages", true)
	v.SetDefault("crawl.sitemap_only", false)
	v.SetDefault("crawl.max_urls_per_job", 0)
	v.SetDefault("rate_limit.requests_per_minute", 10)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.timeout", 45*time.Second)
	v.SetDefault("validation.enabled", true)
	v.SetDefault("validation.min_score", 50.0)
	v.SetDefault("changes.min_update_interval", 24*time.Hour)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.base_dir", "./archive")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("NEWSCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Crawl.MaxConcurrentScrapers < 1 {
		return fmt.Errorf("crawl.max_concurrent_scrapers must be at least 1")
	}
	if c.Crawl.RetryAttempts < 0 {
		return fmt.Errorf("crawl.retry_attempts cannot be negative")
	}
	if c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("rate_limit.requests_per_minute must be at least 1")
	}
	for domain, limit := range c.RateLimit.PerDomain {
		if limit < 1 {
			return fmt.Errorf("rate_limit.per_domain[%s] must be at least 1", domain)
		}
	}
	if c.Headless.Enabled && c.Headless.MaxParallel < 1 {
		return fmt.Errorf("headless.max_parallel must be at least 1 when headless is enabled")
	}
	if c.Validation.MinScore < 0 || c.Validation.MinScore > 100 {
		return fmt.Errorf("validation.min_score must be between 0 and 100")
	}
	return nil
}
