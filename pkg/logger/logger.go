package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

func InitLogger() *zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}

	logger := zerolog.New(consoleWriter).
		With().
		Timestamp().
		Logger()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zerolog.DefaultContextLogger = &logger
	return &logger
}

func Logger(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// Base returns the process-wide logger without requiring a context.
func Base() *zerolog.Logger {
	if zerolog.DefaultContextLogger != nil {
		return zerolog.DefaultContextLogger
	}
	logger := zerolog.Nop()
	return &logger
}

// SetLevel applies a configured level name, ignoring unknown values.
func SetLevel(level string) {
	if lvl, err := zerolog.ParseLevel(level); err == nil && level != "" {
		zerolog.SetGlobalLevel(lvl)
	}
}
