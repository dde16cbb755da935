package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Upload   UploadConfig   `mapstructure:"upload"`
	View     ViewConfig     `mapstructure:"view"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// APIConfig holds prediction service configuration
type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// AuthConfig holds the passkey allow-set
type AuthConfig struct {
	Passkeys []string `mapstructure:"passkeys"`
}

// UploadConfig holds progress simulation and file limits
type UploadConfig struct {
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	ProgressStep     int           `mapstructure:"progress_step"`
	ProgressCap      int           `mapstructure:"progress_cap"`
	MaxFileSizeMB    int           `mapstructure:"max_file_size_mb"`
}

// MaxFileBytes returns the file size limit in bytes.
func (u UploadConfig) MaxFileBytes() int64 {
	return int64(u.MaxFileSizeMB) << 20
}

// ViewConfig holds result table paging
type ViewConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	LimitStep    int `mapstructure:"limit_step"`
	TopFeatures  int `mapstructure:"top_features"`
}

// StorageConfig holds session store configuration
type StorageConfig struct {
	Backend  string `mapstructure:"backend"`
	FilePath string `mapstructure:"file_path"`
	DBPath   string `mapstructure:"db_path"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// CHURNWATCH_API_BASE_URL overrides api.base_url
	v.SetEnvPrefix("CHURNWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.timeout", "60s")
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("api.retry_delay_base", "1s")

	v.SetDefault("auth.passkeys", []string{"admin123", "churn2026"})

	v.SetDefault("upload.progress_interval", "200ms")
	v.SetDefault("upload.progress_step", 10)
	v.SetDefault("upload.progress_cap", 90)
	v.SetDefault("upload.max_file_size_mb", 10)

	v.SetDefault("view.default_limit", 100)
	v.SetDefault("view.limit_step", 200)
	v.SetDefault("view.top_features", 4)

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.file_path", "./data/churnwatch-session.json")
	v.SetDefault("storage.db_path", "./data/churnwatch-session.db")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate API config
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL")
	}
	if c.API.Timeout < time.Second {
		return fmt.Errorf("api.timeout must be at least 1 second")
	}
	if c.API.MaxRetries < 1 {
		return fmt.Errorf("api.max_retries must be at least 1")
	}
	if c.API.RetryDelayBase < 0 {
		return fmt.Errorf("api.retry_delay_base must not be negative")
	}

	// Validate Auth config
	if len(c.Auth.Passkeys) == 0 {
		return fmt.Errorf("auth.passkeys must contain at least one key")
	}
	for _, k := range c.Auth.Passkeys {
		if k == "" {
			return fmt.Errorf("auth.passkeys must not contain empty keys")
		}
	}

	// Validate Upload config
	if c.Upload.ProgressInterval < 10*time.Millisecond {
		return fmt.Errorf("upload.progress_interval must be at least 10ms")
	}
	if c.Upload.ProgressStep < 1 {
		return fmt.Errorf("upload.progress_step must be at least 1")
	}
	if c.Upload.ProgressCap < 1 || c.Upload.ProgressCap > 99 {
		return fmt.Errorf("upload.progress_cap must be between 1 and 99")
	}
	if c.Upload.MaxFileSizeMB < 1 {
		return fmt.Errorf("upload.max_file_size_mb must be at least 1")
	}

	// Validate View config
	if c.View.DefaultLimit < 1 {
		return fmt.Errorf("view.default_limit must be at least 1")
	}
	if c.View.LimitStep < 1 {
		return fmt.Errorf("view.limit_step must be at least 1")
	}
	if c.View.TopFeatures < 1 {
		return fmt.Errorf("view.top_features must be at least 1")
	}

	// Validate Storage config
	switch c.Storage.Backend {
	case "file":
		if c.Storage.FilePath == "" {
			return fmt.Errorf("storage.file_path is required for the file backend")
		}
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("storage.db_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend must be file or sqlite")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
