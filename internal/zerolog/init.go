package zerolog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// InitLogger configures the global level and output of github.com/rs/zerolog/log
func InitLogger(debug bool, format string) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	InitDefaultLogger(os.Stderr, format)
}

// InitDefaultLogger replaces the global logger with one writing to w
func InitDefaultLogger(w io.Writer, format string) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := NewLogger(w, format)
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger
}

// NewLogger builds a logger with timestamps and caller info.
// Unknown formats fall back to JSON.
func NewLogger(w io.Writer, format string) zerolog.Logger {
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}
