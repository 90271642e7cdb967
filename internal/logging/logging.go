// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets a console logger at info level so config loading can log.
func Init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Setup applies the configured level and format ("console" or "json").
func Setup(level, format string) error {
	return setup(os.Stderr, level, format)
}

func setup(out io.Writer, level, format string) error {
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}

	switch strings.ToLower(format) {
	case "", "console":
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	case "json":
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
