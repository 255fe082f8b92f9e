package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describes where and how to log.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Output string // stdout, stderr, or file path

	// Rotation for file output.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// InitLogger initializes the global logger. Loggers obtained with log.Ctx
// on a context without one fall back to it.
func InitLogger(opts Options) error {
	logLevel, err := parseLevel(opts.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(logLevel)

	log.Logger = New(writer(opts), opts.Format)
	zerolog.DefaultContextLogger = &log.Logger

	return nil
}

// Reconfigure applies a reloaded logging config. Only the level changes at
// runtime; format, output and rotation are fixed by InitLogger at startup.
func Reconfigure(current, next Options) error {
	logLevel, err := parseLevel(next.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(logLevel)

	sink := next
	sink.Level = current.Level
	if sink != current {
		log.Warn().
			Str("format", next.Format).
			Str("output", next.Output).
			Msg("logging output changed, restart required to apply")
	}

	return nil
}

// New builds a logger writing to w; format "text" uses the console writer.
func New(w io.Writer, format string) zerolog.Logger {
	if format == "text" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).With().Timestamp().Caller().Logger()
}

func writer(opts Options) io.Writer {
	switch opts.Output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		return &lumberjack.Logger{
			Filename:   opts.Output,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
	}
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}
