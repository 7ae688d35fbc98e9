package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"fstore/internal/config"
)

const logLevelEnvKey = "FSTORE_LOG_LEVEL"

// levelSource records where a log level setting came from.
type levelSource struct {
	raw    string
	origin string // flag, env, config or default
}

func (s levelSource) describe() string {
	switch s.origin {
	case "env":
		return fmt.Sprintf("%s=%q", logLevelEnvKey, s.raw)
	case "config":
		return fmt.Sprintf("log_level=%q", s.raw)
	default:
		return fmt.Sprintf("%q", s.raw)
	}
}

// configureLoggerForCLI installs the default slog logger. A bad --log-level
// is an error; a bad env or config value falls back to the default level
// and is reported through the returned warning.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	src := pickLogLevel(flagLevel, os.Getenv(logLevelEnvKey), configLevel)
	level, err := parseLogLevel(src.raw)
	if err == nil {
		slog.SetDefault(newLogger(level))
		return "", nil
	}
	if src.origin == "flag" {
		return "", fmt.Errorf("invalid --log-level %q", flagLevel)
	}

	fallback, _ := parseLogLevel("")
	slog.SetDefault(newLogger(fallback))
	return fmt.Sprintf("warning: invalid %s; defaulting to %s", src.describe(), config.DefaultLogLevel), nil
}

func pickLogLevel(flagLevel, envLevel, configLevel string) levelSource {
	candidates := []levelSource{
		{raw: flagLevel, origin: "flag"},
		{raw: envLevel, origin: "env"},
		{raw: configLevel, origin: "config"},
	}
	for _, c := range candidates {
		if strings.TrimSpace(c.raw) != "" {
			return c
		}
	}
	return levelSource{origin: "default"}
}

// parseLogLevel accepts slog level names, the "warning" alias and numeric
// levels. Empty selects config.DefaultLogLevel.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = config.DefaultLogLevel
	}
	if strings.EqualFold(value, "warning") {
		value = "warn"
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
