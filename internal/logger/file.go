package logger

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes an optional rotating log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Writer returns stdout, or stdout plus a rotating file when a path is set.
// The returned closer must be called on shutdown.
func (fc FileConfig) Writer() (io.Writer, io.Closer) {
	if fc.Path == "" {
		return os.Stdout, nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays,
		Compress:   fc.Compress,
	}
	return io.MultiWriter(os.Stdout, rotator), rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
