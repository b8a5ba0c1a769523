package llm

import (
	"fmt"
	"net/url"
)

// Defaults for fields left at zero. One request carries a chunk of at most
// a few kilobytes, and its translation comes back in the same message.
const (
	DefaultMaxTokens = 4096
	DefaultTimeout   = 60 // seconds

	// MaxTemperature caps sampling; higher values start rewording captions
	// and dropping segment delimiters.
	MaxTemperature = 1.0
)

// Config holds the connection settings for an OpenAI-compatible chat
// completion endpoint (OpenRouter, OpenAI, a local gateway, ...).
type Config struct {
	APIKey      string
	APIURL      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     int // seconds
	SiteURL     string
	AppName     string
}

// withDefaults returns a copy with zero MaxTokens and Timeout filled in.
func (c Config) withDefaults() Config {
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API URL must be an http(s) URL, got %q", c.APIURL)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 1 {
		return fmt.Errorf("max tokens must be greater than 0, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > MaxTemperature {
		return fmt.Errorf("temperature must be between 0 and %.1f for translation, got %.2f", MaxTemperature, c.Temperature)
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0, got %d", c.Timeout)
	}
	return nil
}

// headers returns the request headers, including the optional
// OpenRouter attribution headers.
func (c *Config) headers() map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}
	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}
	return headers
}
