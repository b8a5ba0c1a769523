package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"MEDIA_DIR", "TRANSLATE_PROVIDER", "TRANSLATE_QUOTA", "TRANSLATE_CHUNK_DELAY", "CRON_EXPR", "TENCENT_ID", "TENCENT_KEY", "DB_PATH", "MUX_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "downloads", cfg.Media.Dir)
	assert.Equal(t, ProviderTMT, cfg.Translate.Provider)
	assert.Equal(t, 2000, cfg.Translate.QuotaBytes)
	assert.Equal(t, 6.0, cfg.Translate.ChunkDelaySeconds)
	assert.Equal(t, "0 */30 * * * *", cfg.Translate.CronExpr)
	assert.Equal(t, "ap-guangzhou", cfg.Tencent.Region)
	assert.True(t, cfg.Mux.Enabled)
	assert.Equal(t, "ffmpeg", cfg.Mux.FFmpegCmd)
	assert.Empty(t, cfg.Store.DBPath)
	assert.Equal(t, 30, cfg.Store.ChunkCacheDays)
}

func TestNewFromEnv_Environment(t *testing.T) {
	t.Setenv("MEDIA_DIR", "/data/subs")
	t.Setenv("TRANSLATE_PROVIDER", "LLM")
	t.Setenv("TRANSLATE_QUOTA", "1500")
	t.Setenv("TRANSLATE_CHUNK_DELAY", "0.5")
	t.Setenv("TRANSLATE_DETECT_LANGUAGE", "true")
	t.Setenv("MUX_ENABLED", "false")
	t.Setenv("TENCENT_PROJECT_ID", "12")
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := NewFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/data/subs", cfg.Media.Dir)
	assert.Equal(t, ProviderLLM, cfg.Translate.Provider)
	assert.Equal(t, 1500, cfg.Translate.QuotaBytes)
	assert.Equal(t, 0.5, cfg.Translate.ChunkDelaySeconds)
	assert.True(t, cfg.Translate.DetectLanguage)
	assert.False(t, cfg.Mux.Enabled)
	assert.Equal(t, int64(12), cfg.Tencent.ProjectID)
	assert.NoError(t, cfg.TranslatorReady())
}

func TestNewFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "provider", key: "TRANSLATE_PROVIDER", value: "deepl", wantErr: "TRANSLATE_PROVIDER"},
		{name: "quota", key: "TRANSLATE_QUOTA", value: "2", wantErr: "TRANSLATE_QUOTA"},
		{name: "quota no larger than delimiter", key: "TRANSLATE_QUOTA", value: "4", wantErr: "TRANSLATE_QUOTA"},
		{name: "delay", key: "TRANSLATE_CHUNK_DELAY", value: "-1", wantErr: "TRANSLATE_CHUNK_DELAY"},
		{name: "cron", key: "CRON_EXPR", value: "*/5 * * * *", wantErr: "CRON_EXPR"},
		{name: "log level", key: "LOG_LEVEL", value: "chatty", wantErr: "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := NewFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTranslatorReady(t *testing.T) {
	cfg := &Config{Translate: TranslateConfig{Provider: ProviderTMT}, Tencent: TencentConfig{Region: "ap-guangzhou"}}
	err := cfg.TranslatorReady()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TENCENT_ID, TENCENT_KEY")

	cfg.Tencent.SecretID = "id"
	cfg.Tencent.SecretKey = "key"
	assert.NoError(t, cfg.TranslatorReady())

	cfg.Translate.Provider = ProviderLLM
	err = cfg.TranslatorReady()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_API_KEY")
}

func TestWithFile(t *testing.T) {
	t.Setenv("MEDIA_DIR", "/from/env")
	t.Setenv("TRANSLATE_QUOTA", "1000")

	path := filepath.Join(t.TempDir(), "bisub.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[media]
dir = "/from/file"

[translate]
provider = "LLM"
chunk_delay_seconds = 2.5

[mux]
enabled = false
`), 0o644))

	cfg, err := NewFromEnv(WithFile(path))
	require.NoError(t, err)

	assert.Equal(t, "/from/file", cfg.Media.Dir)
	assert.Equal(t, ProviderLLM, cfg.Translate.Provider)
	assert.Equal(t, 2.5, cfg.Translate.ChunkDelaySeconds)
	assert.Equal(t, 1000, cfg.Translate.QuotaBytes, "keys missing from the file keep the env value")
	assert.False(t, cfg.Mux.Enabled)
}

func TestWithFile_Errors(t *testing.T) {
	_, err := NewFromEnv(WithFile(filepath.Join(t.TempDir(), "missing.toml")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[media\ndir = 1"), 0o644))
	_, err = NewFromEnv(WithFile(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestWithMediaDir(t *testing.T) {
	cfg, err := NewFromEnv(WithMediaDir("/override"))
	require.NoError(t, err)
	assert.Equal(t, "/override", cfg.Media.Dir)

	cfg, err = NewFromEnv(WithMediaDir(""))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Media.Dir)
}

func TestRedacted(t *testing.T) {
	cfg := Config{
		Tencent: TencentConfig{SecretID: "id", SecretKey: "key"},
		LLM:     LLMConfig{APIKey: "sk"},
	}
	r := cfg.Redacted()
	assert.Equal(t, "***", r.Tencent.SecretKey)
	assert.Equal(t, "***", r.Tencent.SecretID)
	assert.Equal(t, "***", r.LLM.APIKey)
	assert.Equal(t, "key", cfg.Tencent.SecretKey, "original is untouched")
}

func TestBatch(t *testing.T) {
	cfg := Config{Translate: TranslateConfig{QuotaBytes: 5, ChunkDelaySeconds: 1.5}}
	b := cfg.Batch()
	assert.Equal(t, 5, b.QuotaBytes)
	assert.Equal(t, 1500*time.Millisecond, b.ChunkDelay)
	assert.Equal(t, "🍎", b.Delimiter)
	require.NoError(t, b.Validate())

	cfg.Translate.QuotaBytes = 4
	assert.Error(t, cfg.Batch().Validate())
}
