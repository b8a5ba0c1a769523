package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// WithFile overlays a TOML file on top of the environment. Keys missing
// from the file keep their current value. An empty path is a no-op.
func WithFile(path string) Option {
	return func(c *Config) error {
		if strings.TrimSpace(path) == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
		c.Translate.Provider = strings.ToLower(c.Translate.Provider)
		return nil
	}
}
