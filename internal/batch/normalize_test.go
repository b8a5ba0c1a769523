package batch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestTargetFor(t *testing.T) {
	tests := []struct {
		hint string
		want language.Tag
	}{
		{hint: "", want: language.Chinese},
		{hint: "en", want: language.Chinese},
		{hint: "zh", want: language.English},
		{hint: "zh-Hans", want: language.English},
		{hint: "ZH", want: language.English},
		{hint: "chs", want: language.Chinese},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TargetFor(tt.hint), "hint %q", tt.hint)
	}
}

func TestThresholdFor(t *testing.T) {
	assert.Equal(t, 36, ThresholdFor(language.English))
	assert.Equal(t, 36, ThresholdFor(language.AmericanEnglish))
	assert.Equal(t, 56, ThresholdFor(language.Chinese))
	assert.Equal(t, 56, ThresholdFor(language.Japanese))
}

func TestNormalize(t *testing.T) {
	long := "This line is definitely long enough\nto stay on two lines"
	tests := []struct {
		name      string
		text      string
		threshold int
		want      string
	}{
		{name: "short multi-line folds", text: "What?\nNo way!", threshold: 36, want: "What? No way!"},
		{name: "tabs fold", text: "a\tb", threshold: 36, want: "a b"},
		{name: "crlf folds to one space", text: "a\r\nb", threshold: 36, want: "a b"},
		{name: "surrounding space trimmed when folding", text: "  a\nb  ", threshold: 36, want: "a b"},
		{name: "single line untouched", text: "  single  ", threshold: 36, want: "  single  "},
		{name: "long multi-line kept", text: long, threshold: 36, want: long},
		{name: "threshold is exclusive", text: "12345\n789", threshold: 9, want: "12345\n789"},
		{name: "bigger threshold folds", text: long, threshold: 64, want: "This line is definitely long enough to stay on two lines"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.text, tt.threshold))
		})
	}
}

func TestSqueezeBlankLines(t *testing.T) {
	assert.Equal(t, "a\nb", squeezeBlankLines("a\n\n\nb"))
	assert.Equal(t, "a\nb", squeezeBlankLines("a\n \n\t\nb"))
	assert.Equal(t, "a\nb", squeezeBlankLines("a\nb"))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "default", mutate: func(c *Config) {}},
		{name: "zero delay", mutate: func(c *Config) { c.ChunkDelay = 0 }},
		{name: "tiny quota", mutate: func(c *Config) { c.QuotaBytes = 3 }, wantErr: "at least 4"},
		{name: "negative delay", mutate: func(c *Config) { c.ChunkDelay = -time.Second }, wantErr: "negative"},
		{name: "no delimiter", mutate: func(c *Config) { c.Delimiter = "" }, wantErr: "required"},
		{name: "spaced delimiter", mutate: func(c *Config) { c.Delimiter = "a b" }, wantErr: "whitespace"},
		{name: "delimiter fills quota", mutate: func(c *Config) { c.QuotaBytes = 4 }, wantErr: "does not fit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCleanTranslation(t *testing.T) {
	assert.Equal(t, "go -> there", cleanTranslation("go --> there"))
	assert.Equal(t, "a -> -> b", cleanTranslation("a --> --> b"))
	assert.Equal(t, "a\n1 -> 2", cleanTranslation("a\n\n1 --> 2"))
	assert.Equal(t, "a-->b", cleanTranslation("a-->b"))
}
