// Package observability собирает логирование, метрики и HTTP-middleware сервисов.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger создаёт структурированный логгер; format "console" включает человекочитаемый вывод.
func NewLogger(level, format string, service string) zerolog.Logger {
	return newLogger(os.Stderr, level, format).With().Str("service", service).Logger()
}

func newLogger(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
