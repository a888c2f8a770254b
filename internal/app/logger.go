package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"transport-dispatch/internal/config"
	"transport-dispatch/internal/logx"
)

// NewLogger builds the service logger from LOG_BACKEND and LOG_LEVEL.
func NewLogger(cfg *config.Config) (logx.Logger, error) {
	switch strings.ToLower(cfg.LogBackend) {
	case "zap":
		return logx.NewZapProduction(cfg.LogLevel)
	case "", "slog":
		level, err := slogLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		base := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		return logx.NewSlogAdapter(base), nil
	default:
		return nil, fmt.Errorf("unknown log backend %q", cfg.LogBackend)
	}
}

func slogLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}
