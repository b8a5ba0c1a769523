package batch

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Config controls how a stream is packed into translate calls.
type Config struct {
	// QuotaBytes is the largest request body, in bytes, one call may carry.
	QuotaBytes int
	// ChunkDelay is the pause between two outbound calls.
	ChunkDelay time.Duration
	// Delimiter separates segments inside a chunk. The backend must echo it.
	Delimiter string
}

func DefaultConfig() Config {
	return Config{
		QuotaBytes: 2000,
		ChunkDelay: 6 * time.Second,
		Delimiter:  "🍎",
	}
}

// Validate checks the config once, at construction time.
func (c Config) Validate() error {
	if c.QuotaBytes < 4 {
		return fmt.Errorf("quota must be at least 4 bytes, got %d", c.QuotaBytes)
	}
	if c.ChunkDelay < 0 {
		return fmt.Errorf("chunk delay must not be negative, got %s", c.ChunkDelay)
	}
	if c.Delimiter == "" {
		return fmt.Errorf("delimiter is required")
	}
	if strings.IndexFunc(c.Delimiter, unicode.IsSpace) >= 0 {
		return fmt.Errorf("delimiter %q must not contain whitespace", c.Delimiter)
	}
	if len(c.Delimiter) >= c.QuotaBytes {
		return fmt.Errorf("delimiter %q does not fit in a %d byte quota", c.Delimiter, c.QuotaBytes)
	}
	return nil
}
