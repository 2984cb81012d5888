package planstream

import (
	"log/slog"
	"time"
)

const (
	defaultFlushInterval = 50 * time.Millisecond
)

type sessionConfig struct {
	flushInterval time.Duration
	logger        *slog.Logger
}

func defaultConfig() sessionConfig {
	return sessionConfig{
		flushInterval: defaultFlushInterval,
		logger:        slog.Default(),
	}
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

// WithFlushInterval sets the coalescing window for snapshot
// publication. Delta events arriving within the window are folded into
// a single publish. An interval of zero or less publishes synchronously
// on every mutation.
func WithFlushInterval(d time.Duration) SessionOption {
	return func(c *sessionConfig) { c.flushInterval = d }
}

// WithLogger sets the session logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
