package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"ticket-scanner/internal/config"
)

func TestNewLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log := newWithWriter(config.LogConfig{Level: tt.level}, &bytes.Buffer{})
			if got := log.GetLevel(); got != tt.want {
				t.Errorf("level = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(config.LogConfig{Level: "info"}, &buf)
	log.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"service":"ticket-scanner"`) {
		t.Errorf("log line missing service field: %s", buf.String())
	}
}
