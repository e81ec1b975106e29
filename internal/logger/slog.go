package logger

import (
	"context"
	"io"
	"log/slog"
)

// Options tunes the slog backed logger.
type Options struct {
	// JSON selects the JSON handler instead of the text handler.
	JSON bool
	// AddSource includes the caller location in every record.
	AddSource bool
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger builds a Logger writing to w at the given minimum level.
// A nil opts uses the text handler.
func NewSlogLogger(w io.Writer, level LogLevel, opts *Options) Logger {
	if opts == nil {
		opts = &Options{}
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     level.slogLevel(),
		AddSource: opts.AddSource,
	}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return &slogLogger{l: slog.New(h)}
}

func (s *slogLogger) log(level slog.Level, msg string, fields []Field) {
	s.l.LogAttrs(context.Background(), level, msg, fields...)
}

func (s *slogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *slogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *slogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *slogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s *slogLogger) With(fields ...Field) Logger {
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return &slogLogger{l: s.l.With(args...)}
}

func (s *slogLogger) Module(name string) Logger {
	return s.With(String("module", name))
}
