package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger returns a JSON logger on GitHub Actions and in prod, and a
// colorized tint logger for local development.
func NewLogger() *slog.Logger {
	if os.Getenv("GITHUB_ACTIONS") == "true" || os.Getenv("APP_ENV") == "prod" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		TimeFormat: time.TimeOnly,
	}))
}
