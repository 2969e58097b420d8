// Package logging provides structured logging for the CLI and the
// interactive dashboard session.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a Logger.
type Options struct {
	// Out receives console output. Defaults to stderr so stdout stays
	// clean for command results.
	Out io.Writer

	// LogFile, when set, additionally writes JSON entries to a rotated file.
	LogFile string

	// Verbose enables debug level.
	Verbose bool
}

// Logger wraps zerolog with the console/file routing transferctl uses.
type Logger struct {
	zlog   zerolog.Logger
	output io.Writer
	file   *lumberjack.Logger
}

// NewLogger creates a logger from opts.
func NewLogger(opts Options) *Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	l := &Logger{}
	var w io.Writer = zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05",
	}

	if opts.LogFile != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		w = zerolog.MultiLevelWriter(w, l.file)
	}

	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	l.output = w
	l.zlog = zerolog.New(w).Level(level).With().Timestamp().Logger()
	return l
}

// NewDefaultCLILogger creates a default CLI logger writing to stderr.
func NewDefaultCLILogger() *Logger {
	return NewLogger(Options{})
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{zlog: zerolog.Nop(), output: io.Discard}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{
		zlog:   l.zlog.With().Str("component", name).Logger(),
		output: l.output,
		file:   l.file,
	}
}

// Zerolog exposes the underlying zerolog.Logger for adapters.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when verbose mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// Close flushes and closes the rotated log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
