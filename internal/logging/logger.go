package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Log is the package-global logger configured by Init
var Log = zerolog.New(os.Stderr).With().Timestamp().Logger()

// Init initializes the global logger writing to w (stdout when nil).
// level can be "debug", "info", "warn", "error".
func Init(w io.Writer, level string) {
	l := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		l = zerolog.DebugLevel
	case "info":
		l = zerolog.InfoLevel
	case "warn":
		l = zerolog.WarnLevel
	case "error":
		l = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(l)

	if w == nil {
		w = os.Stdout
	}
	Log = zerolog.New(w).With().Timestamp().Logger()
}

// Component returns a child logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}

// ShortToken trims a device token for log output.
func ShortToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
