package docpipe

import "log/slog"

// Config configures the document pipeline.
type Config struct {
	// MaxBytes is the maximum payload size to parse (default: 10 MB).
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
