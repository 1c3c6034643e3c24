// Package rpkilog sets up structured logging for a build run, in the
// style cuemby-warren's pkg/log uses: a single configured
// zerolog.Logger plus small With* helpers for the fields this
// module's components need (CA path, object path).
package rpkilog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level is a logging verbosity, named the way cuemby-warren's pkg/log
// names them.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Logger is the process-wide logger, set by Init.
var Logger zerolog.Logger

// Init configures Logger per cfg. Unset Output defaults to stderr, so
// a scenario's build output stays separate from any artifact summary
// cmd/rpkica writes to stdout.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: output}).With().Timestamp().Logger()
}

// WithCA returns a child logger annotated with the CA under
// construction, for the per-CA issuance/publication log lines.
func WithCA(commonName string) zerolog.Logger {
	return Logger.With().Str("ca", commonName).Logger()
}

// WithObject returns a child logger annotated with the signed object
// under construction (spec.md section 7's "path of the object under
// construction" propagation context, mirrored in the logs).
func WithObject(path string) zerolog.Logger {
	return Logger.With().Str("object", path).Logger()
}
