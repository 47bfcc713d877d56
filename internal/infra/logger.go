package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logger every component receives by injection.
type Logger = zerolog.Logger

// NewLogger builds the process logger. Development gets a console writer at
// debug level, everything else JSON at info. LOG_LEVEL overrides the level;
// APP_ENV=test silences output unless a level is set explicitly.
func NewLogger(cfg *Config) zerolog.Logger {
	env, levelName := "development", ""
	if cfg != nil {
		env, levelName = cfg.AppEnv, cfg.LogLevel
	}
	return newLogger(os.Stdout, env, levelName)
}

func newLogger(out io.Writer, env, levelName string) zerolog.Logger {
	level := zerolog.InfoLevel
	switch env {
	case "development":
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "test":
		level = zerolog.Disabled
	}
	if levelName != "" {
		if parsed, err := zerolog.ParseLevel(levelName); err == nil {
			level = parsed
		}
	}
	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "ravelon").
		Logger()
}

// Component tags l with the emitting component.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
