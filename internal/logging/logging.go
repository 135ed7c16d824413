// Package logging builds the zerolog loggers used by the CLI and the cloud function.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Config is read from the environment.
type Config struct {
	Level   string `env:"LATTICE_LOG_LEVEL" envDefault:"info"`
	NoColor bool   `env:"LATTICE_LOG_NOCOLOR" envDefault:"false"`
	JSON    bool   `env:"LATTICE_LOG_JSON" envDefault:"false"`
}

// ConfigFromEnv parses Config from environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse log env: %w", err)
	}
	return cfg, nil
}

// New returns a logger writing to out, tagged with app.
func New(app string, out io.Writer, cfg Config) (zerolog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    cfg.NoColor,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", app).Logger(), nil
}

// FromEnv is New with the environment's Config, writing to stderr.
func FromEnv(app string) (zerolog.Logger, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return zerolog.Nop(), err
	}
	return New(app, os.Stderr, cfg)
}

func ParseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off", "none":
		return zerolog.Disabled, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", raw)
	}
}
