package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/bilingual-subs/internal/batch"
	"github.com/MimeLyc/bilingual-subs/pkg/icron"
	"github.com/MimeLyc/bilingual-subs/pkg/log"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values come from the environment (and a .env file in the working
// directory), then from Options such as WithFile.
//
// Environment Variables:
// Media:
// - MEDIA_DIR: directory holding .srt files and their videos (default: downloads)
//
// Translate:
// - TRANSLATE_PROVIDER: "tmt" or "llm" (default: tmt)
// - TRANSLATE_QUOTA: max bytes per translate call (default: 2000)
// - TRANSLATE_CHUNK_DELAY: seconds between calls (default: 6)
// - TRANSLATE_DETECT_LANGUAGE: detect the language when the file name has no hint (default: false)
// - CRON_EXPR: schedule with a leading seconds field (default: 0 */30 * * * *)
//
// Tencent Machine Translation:
// - TENCENT_ID / TENCENT_KEY: API credentials
// - TENCENT_REGION: region (default: ap-guangzhou)
// - TENCENT_PROJECT_ID: project id (default: 0)
//
// LLM:
// - LLM_API_KEY, LLM_API_URL, LLM_MODEL, LLM_MAX_TOKENS, LLM_TEMPERATURE,
//   LLM_TIMEOUT, LLM_SITE_URL, LLM_APP_NAME
//
// Mux:
// - MUX_ENABLED: burn translated captions into matching videos (default: true)
// - FFMPEG_CMD: ffmpeg binary (default: ffmpeg)
//
// Store:
// - DB_PATH: SQLite file for the ledger and chunk cache (default: disabled)
// - CHUNK_CACHE_DAYS: days to keep cached chunks (default: 30)
//
// Logging:
// - LOG_LEVEL: debug, info, warn, error (default: info)
// - LOG_FILE: also write logs to this file (optional)
type Config struct {
	Media     MediaConfig     `toml:"media"`
	Translate TranslateConfig `toml:"translate"`
	Tencent   TencentConfig   `toml:"tencent"`
	LLM       LLMConfig       `toml:"llm"`
	Mux       MuxConfig       `toml:"mux"`
	Store     StoreConfig     `toml:"store"`
	Log       LogConfig       `toml:"log"`
}

const (
	ProviderTMT = "tmt"
	ProviderLLM = "llm"
)

type MediaConfig struct {
	Dir string `toml:"dir"`
}

type TranslateConfig struct {
	Provider          string  `toml:"provider"`
	QuotaBytes        int     `toml:"quota_bytes"`
	ChunkDelaySeconds float64 `toml:"chunk_delay_seconds"`
	DetectLanguage    bool    `toml:"detect_language"`
	CronExpr          string  `toml:"cron_expr"`
}

type TencentConfig struct {
	SecretID  string `toml:"secret_id"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region"`
	ProjectID int64  `toml:"project_id"`
}

// LLMConfig holds the configuration for an OpenAI-compatible provider.
type LLMConfig struct {
	APIKey      string  `toml:"api_key"`
	APIURL      string  `toml:"api_url"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
	Timeout     int     `toml:"timeout"`
	SiteURL     string  `toml:"site_url"`
	AppName     string  `toml:"app_name"`
}

type MuxConfig struct {
	Enabled   bool   `toml:"enabled"`
	FFmpegCmd string `toml:"ffmpeg_cmd"`
}

type StoreConfig struct {
	DBPath         string `toml:"db_path"`
	ChunkCacheDays int    `toml:"chunk_cache_days"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Option is a function type for configuring Config
type Option func(*Config) error

// WithMediaDir overrides the media directory.
func WithMediaDir(dir string) Option {
	return func(c *Config) error {
		if dir != "" {
			c.Media.Dir = dir
		}
		return nil
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	config := &Config{
		Media: MediaConfig{
			Dir: getEnvString("MEDIA_DIR", "downloads"),
		},
		Translate: TranslateConfig{
			Provider:          strings.ToLower(getEnvString("TRANSLATE_PROVIDER", ProviderTMT)),
			QuotaBytes:        getEnvInt("TRANSLATE_QUOTA", 2000),
			ChunkDelaySeconds: getEnvFloat("TRANSLATE_CHUNK_DELAY", 6),
			DetectLanguage:    getEnvBool("TRANSLATE_DETECT_LANGUAGE", false),
			CronExpr:          getEnvString("CRON_EXPR", "0 */30 * * * *"),
		},
		Tencent: TencentConfig{
			SecretID:  getEnvString("TENCENT_ID", ""),
			SecretKey: getEnvString("TENCENT_KEY", ""),
			Region:    getEnvString("TENCENT_REGION", "ap-guangzhou"),
			ProjectID: int64(getEnvInt("TENCENT_PROJECT_ID", 0)),
		},
		LLM: LLMConfig{
			APIKey:      getEnvString("LLM_API_KEY", ""),
			APIURL:      getEnvString("LLM_API_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnvString("LLM_MODEL", "openai/gpt-3.5-turbo"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 8000),
			Temperature: getEnvFloat("LLM_TEMPERATURE", 0.3),
			Timeout:     getEnvInt("LLM_TIMEOUT", 60),
			SiteURL:     getEnvString("LLM_SITE_URL", ""),
			AppName:     getEnvString("LLM_APP_NAME", "bisub"),
		},
		Mux: MuxConfig{
			Enabled:   getEnvBool("MUX_ENABLED", true),
			FFmpegCmd: getEnvString("FFMPEG_CMD", "ffmpeg"),
		},
		Store: StoreConfig{
			DBPath:         getEnvString("DB_PATH", ""),
			ChunkCacheDays: getEnvInt("CHUNK_CACHE_DAYS", 30),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
			File:  getEnvString("LOG_FILE", ""),
		},
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.Debug("Config: %+v", config.Redacted())
	return config, nil
}

// Validate checks the configuration. Missing credentials are not an
// error here; see TranslatorReady.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Media.Dir) == "" {
		return fmt.Errorf("MEDIA_DIR is required")
	}
	switch c.Translate.Provider {
	case ProviderTMT, ProviderLLM:
	default:
		return fmt.Errorf("TRANSLATE_PROVIDER must be %q or %q, got %q", ProviderTMT, ProviderLLM, c.Translate.Provider)
	}
	if c.Translate.ChunkDelaySeconds < 0 {
		return fmt.Errorf("TRANSLATE_CHUNK_DELAY must not be negative")
	}
	if err := c.Batch().Validate(); err != nil {
		return fmt.Errorf("TRANSLATE_QUOTA: %w", err)
	}
	if _, err := icron.Parse(c.Translate.CronExpr); err != nil {
		return fmt.Errorf("CRON_EXPR: %w", err)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.Store.ChunkCacheDays < 0 {
		return fmt.Errorf("CHUNK_CACHE_DAYS must not be negative")
	}
	return nil
}

// Batch returns the batcher settings: the default delimiter with the
// configured quota and delay.
func (c *Config) Batch() batch.Config {
	cfg := batch.DefaultConfig()
	cfg.QuotaBytes = c.Translate.QuotaBytes
	cfg.ChunkDelay = time.Duration(c.Translate.ChunkDelaySeconds * float64(time.Second))
	return cfg
}

// TranslatorReady reports which credentials the selected provider lacks.
func (c *Config) TranslatorReady() error {
	var missing []string
	switch c.Translate.Provider {
	case ProviderTMT:
		if c.Tencent.SecretID == "" {
			missing = append(missing, "TENCENT_ID")
		}
		if c.Tencent.SecretKey == "" {
			missing = append(missing, "TENCENT_KEY")
		}
		if c.Tencent.Region == "" {
			missing = append(missing, "TENCENT_REGION")
		}
	case ProviderLLM:
		if c.LLM.APIKey == "" {
			missing = append(missing, "LLM_API_KEY")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s translator is not configured: missing %s", c.Translate.Provider, strings.Join(missing, ", "))
	}
	return nil
}

// Redacted returns a copy that is safe to log.
func (c Config) Redacted() Config {
	c.Tencent.SecretKey = mask(c.Tencent.SecretKey)
	c.Tencent.SecretID = mask(c.Tencent.SecretID)
	c.LLM.APIKey = mask(c.LLM.APIKey)
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean value from environment variables with default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
