// Package logging builds the process slog logger from LOG_FORMAT and LOG_LEVEL.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	EnvFormat = "LOG_FORMAT"
	EnvLevel  = "LOG_LEVEL"

	appName = "infralens"
)

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

var handlers = map[string]func(io.Writer, *slog.HandlerOptions) slog.Handler{
	"json": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewJSONHandler(w, o) },
	"text": func(w io.Writer, o *slog.HandlerOptions) slog.Handler { return slog.NewTextHandler(w, o) },
}

type Config struct {
	Format string
	Level  slog.Level
}

type BootstrapOptions struct {
	Command string
	Writer  io.Writer
}

func DefaultConfig() Config {
	return Config{Format: "json", Level: slog.LevelInfo}
}

// ParseConfig validates raw format and level values. Blank values keep the
// defaults.
func ParseConfig(format, level string) (Config, error) {
	cfg := DefaultConfig()
	if f := strings.ToLower(strings.TrimSpace(format)); f != "" {
		if _, ok := handlers[f]; !ok {
			return Config{}, fmt.Errorf("%s must be one of: json, text", EnvFormat)
		}
		cfg.Format = f
	}
	if l := strings.ToLower(strings.TrimSpace(level)); l != "" {
		lvl, ok := levels[l]
		if !ok {
			return Config{}, fmt.Errorf("%s must be one of: debug, info, warn, error", EnvLevel)
		}
		cfg.Level = lvl
	}
	return cfg, nil
}

func LoadConfigFromEnv() (Config, error) {
	return ParseConfig(os.Getenv(EnvFormat), os.Getenv(EnvLevel))
}

// NewLogger tags every record with the app and the cobra command path.
// Unknown formats fall back to JSON.
func NewLogger(cfg Config, w io.Writer, command string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	newHandler, ok := handlers[strings.ToLower(strings.TrimSpace(cfg.Format))]
	if !ok {
		newHandler = handlers["json"]
	}
	if command = strings.TrimSpace(command); command == "" {
		command = appName
	}
	h := newHandler(w, &slog.HandlerOptions{Level: cfg.Level})
	return slog.New(h).With("app", appName, "command", command)
}

// BootstrapFromEnv installs the env-configured logger as the slog default.
func BootstrapFromEnv(opts BootstrapOptions) (*slog.Logger, error) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg, opts.Writer, opts.Command)
	slog.SetDefault(logger)
	return logger, nil
}
