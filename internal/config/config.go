package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Source struct {
		BaseURL         string        `yaml:"base_url"`
		Timeout         time.Duration `yaml:"timeout"`
		MaxRetries      int           `yaml:"max_retries"`
		RetryDelay      time.Duration `yaml:"retry_delay"`
		BreakerFailures int           `yaml:"breaker_failures"`
		BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
	} `yaml:"source"`
	Sync struct {
		LookbackDays    int           `yaml:"lookback_days"`
		PolitenessDelay time.Duration `yaml:"politeness_delay"`
		FullStart       string        `yaml:"full_start"`
		GapDays         int           `yaml:"gap_days"`
		Timezone        string        `yaml:"timezone"`
	} `yaml:"sync"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		Cron       string `yaml:"cron"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Output struct {
		ReadmePath  string `yaml:"readme_path"`
		BackupsDir  string `yaml:"backups_dir"`
		MaxBackups  int    `yaml:"max_backups"`
		ExportDir   string `yaml:"export_dir"`
		ExportStart string `yaml:"export_start"`
	} `yaml:"output"`
	Version struct {
		GitEnabled bool   `yaml:"git_enabled"`
		GitPush    bool   `yaml:"git_push"`
		RepoDir    string `yaml:"repo_dir"`
	} `yaml:"version"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	HTTP struct {
		Listen string `yaml:"listen"`
	} `yaml:"http"`
	Logging struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"logging"`
	Proxy string `yaml:"proxy"`
}

// DefaultBaseURL is the CNN graph data endpoint; the start date is appended.
const DefaultBaseURL = "https://production.dataviz.cnn.io/index/fearandgreed/graphdata/"

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error: defaults and the environment still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FNG_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("FNG_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("FNG_CRON"); v != "" {
		cfg.Schedule.Cron = v
	}
	if v := os.Getenv("FNG_TIMEZONE"); v != "" {
		cfg.Sync.Timezone = v
	}
	if v := os.Getenv("FNG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FNG_HTTP_LISTEN"); v != "" {
		cfg.HTTP.Listen = v
	}
	if v := os.Getenv("FNG_LOOKBACK_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.LookbackDays = n
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if os.Getenv("RUN_ON_START") == "true" {
		cfg.Schedule.RunOnStart = true
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = DefaultBaseURL
	}
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 30 * time.Second
	}
	if c.Source.MaxRetries == 0 {
		c.Source.MaxRetries = 3
	}
	if c.Source.RetryDelay == 0 {
		c.Source.RetryDelay = 5 * time.Second
	}
	if c.Source.BreakerFailures == 0 {
		c.Source.BreakerFailures = 5
	}
	if c.Source.BreakerTimeout == 0 {
		c.Source.BreakerTimeout = 5 * time.Minute
	}
	if c.Sync.LookbackDays == 0 {
		c.Sync.LookbackDays = 30
	}
	if c.Sync.PolitenessDelay == 0 {
		c.Sync.PolitenessDelay = time.Second
	}
	if c.Sync.FullStart == "" {
		c.Sync.FullStart = "2011-01-01"
	}
	if c.Sync.GapDays == 0 {
		c.Sync.GapDays = 90
	}
	if c.Sync.Timezone == "" {
		c.Sync.Timezone = "Local"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "fng_data.db"
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = "0 0 6 * * *"
	}
	if c.Output.ReadmePath == "" {
		c.Output.ReadmePath = "README.md"
	}
	if c.Output.BackupsDir == "" {
		c.Output.BackupsDir = "output/backups"
	}
	if c.Output.MaxBackups == 0 {
		c.Output.MaxBackups = 10
	}
	if c.Output.ExportDir == "" {
		c.Output.ExportDir = "output/export"
	}
	if c.Output.ExportStart == "" {
		c.Output.ExportStart = "2021-01-01"
	}
	if c.Version.RepoDir == "" {
		c.Version.RepoDir = "."
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 30
	}
}

// Location resolves the configured timezone used to turn remote timestamps
// into calendar dates.
func (c *Config) Location() (*time.Location, error) {
	switch c.Sync.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Sync.Timezone, err)
	}
	return loc, nil
}

// TelegramEnabled reports whether both Telegram credentials are present.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that all required fields are set and in range.
func (c *Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if c.Source.MaxRetries < 1 {
		return fmt.Errorf("source.max_retries must be at least 1")
	}
	if c.Source.Timeout < 0 || c.Source.RetryDelay < 0 || c.Sync.PolitenessDelay < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.Sync.LookbackDays < 1 {
		return fmt.Errorf("sync.lookback_days must be positive")
	}
	if c.Sync.GapDays < 1 {
		return fmt.Errorf("sync.gap_days must be positive")
	}
	if _, err := time.Parse("2006-01-02", c.Sync.FullStart); err != nil {
		return fmt.Errorf("sync.full_start: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	if c.Output.MaxBackups < 1 {
		return fmt.Errorf("output.max_backups must be positive")
	}
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	return nil
}
