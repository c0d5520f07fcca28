// Package logger configures the process-wide zerolog logger, used
// throughout via the package-level github.com/rs/zerolog/log facade.
package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup parses level, configures the global zerolog logger with a
// console writer, and returns it.
func Setup(level string) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(level))
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).
		With().
		Timestamp().
		Logger()
	log.Logger = l
	return l
}

func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return l
}
