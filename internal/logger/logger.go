package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string, err error)
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// Options configures a logrus-backed Logger
type Options struct {
	Level  string
	Format string
	Output io.Writer
}

type LogrusLogger struct {
	logger *logrus.Logger
	entry  *logrus.Entry
}

// New builds a Logger from level and format settings
func New(opts Options) (Logger, error) {
	l := logrus.New()

	level := opts.Level
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(parsed)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stderr)
	}

	return FromLogrus(l), nil
}

// NewLogrus returns a Logger with logrus defaults
func NewLogrus() Logger {
	return FromLogrus(logrus.New())
}

// FromLogrus wraps an existing logrus logger
func FromLogrus(l *logrus.Logger) Logger {
	return &LogrusLogger{
		logger: l,
		entry:  logrus.NewEntry(l),
	}
}

// NewDiscard returns a Logger that drops everything
func NewDiscard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return FromLogrus(l)
}

func (l *LogrusLogger) Debug(msg string) {
	l.entry.Debug(msg)
}

func (l *LogrusLogger) Info(msg string) {
	l.entry.Info(msg)
}

func (l *LogrusLogger) Warn(msg string) {
	l.entry.Warn(msg)
}

func (l *LogrusLogger) Error(msg string, err error) {
	l.entry.WithError(err).Error(msg)
}

func (l *LogrusLogger) WithField(key string, value interface{}) Logger {
	return &LogrusLogger{
		logger: l.logger,
		entry:  l.entry.WithField(key, value),
	}
}

func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{
		logger: l.logger,
		entry:  l.entry.WithFields(fields),
	}
}
