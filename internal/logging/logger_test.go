package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantLevel zerolog.Level
	}{
		{"default level", "", zerolog.InfoLevel},
		{"debug level", "debug", zerolog.DebugLevel},
		{"warn level", "warn", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
		{"case insensitive", "DEBUG", zerolog.DebugLevel},
		{"unknown falls back to info", "verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init(&bytes.Buffer{}, tt.level)
			if zerolog.GlobalLevel() != tt.wantLevel {
				t.Errorf("expected level %v, got %v", tt.wantLevel, zerolog.GlobalLevel())
			}
		})
	}
	Init(&bytes.Buffer{}, "info")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(&buf, "info")

	log := Component("fcm")
	log.Info().Msg("sent")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["component"] != "fcm" {
		t.Errorf("component = %v, want fcm", entry["component"])
	}
	if entry["message"] != "sent" {
		t.Errorf("message = %v, want sent", entry["message"])
	}
}

func TestShortToken(t *testing.T) {
	if got := ShortToken("short"); got != "short" {
		t.Errorf("ShortToken(short) = %q", got)
	}
	if got := ShortToken("abcdefghijklmnopqrstuvwxyz"); got != "abcdefghijkl..." {
		t.Errorf("ShortToken(long) = %q", got)
	}
}
