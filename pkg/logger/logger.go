// Package logger provides a simple logging interface backed by zerolog.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the logging interface
type Logger interface {
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
}

// Options configures a logger instance.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	Output     io.Writer
}

const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 3
)

type logger struct {
	zl zerolog.Logger
}

// New creates a logger configured from LOG_LEVEL and LOG_FILE.
func New() Logger {
	return NewWithOptions(Options{
		Level: os.Getenv("LOG_LEVEL"),
		File:  os.Getenv("LOG_FILE"),
	})
}

// NewWithOptions creates a logger writing to the console and, when File is
// set, to a rotated log file.
func NewWithOptions(opts Options) Logger {
	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	if opts.Output != nil {
		out = opts.Output
	}

	if opts.File != "" {
		if rotator, err := newRotator(opts); err == nil {
			out = io.MultiWriter(out, rotator)
		} else {
			fmt.Fprintf(os.Stderr, "[Logger] failed to open log file %s: %v\n", opts.File, err)
		}
	}

	zl := zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
	return &logger{zl: zl}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &logger{zl: zerolog.Nop()}
}

func newRotator(opts Options) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, err
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = defaultMaxSizeMB
	}
	maxBackups := opts.MaxBackups
	if maxBackups <= 0 {
		maxBackups = defaultMaxBackups
	}

	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}, nil
}

// ParseLevel converts a string log level to a zerolog level, defaulting to info.
func ParseLevel(levelStr string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *logger) Debug(v ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprint(v...))
}

func (l *logger) Debugf(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

func (l *logger) Info(v ...interface{}) {
	l.zl.Info().Msg(fmt.Sprint(v...))
}

func (l *logger) Infof(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

func (l *logger) Warn(v ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprint(v...))
}

func (l *logger) Warnf(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

func (l *logger) Error(v ...interface{}) {
	l.zl.Error().Msg(fmt.Sprint(v...))
}

func (l *logger) Errorf(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// Fatal logs an error message and exits
func (l *logger) Fatal(v ...interface{}) {
	l.zl.Error().Msg(fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits
func (l *logger) Fatalf(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
	os.Exit(1)
}
