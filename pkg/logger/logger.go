// Package logger builds the root zerolog logger the ledger wires through
// its repositories and services. New is called once at startup; components
// derive sub-loggers from the returned value with .With().Str(...).
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the log level and output format.
type Config struct {
	Level  string // zerolog level name: trace, debug, info, warn, error, disabled
	Pretty bool   // human-readable console output for dev mode
}

// New builds the root logger. An unknown level name falls back to info
// instead of failing: logging config must never keep the service down.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).
		With().
		Timestamp().
		Caller().
		Logger()
}

// SetGlobalLogger routes zerolog's package-level logger through l, so any
// stray log.Info() call shares the service's output and level.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
