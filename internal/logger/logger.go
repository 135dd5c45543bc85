package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"ticket-scanner/internal/config"
)

// New builds the process logger on stderr, leaving stdout to the terminal
// presenter. Unknown levels fall back to info.
func New(cfg config.LogConfig) zerolog.Logger {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "ticket-scanner").
		Logger()
}
