package logging

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileOptions controls the rotating log file used by the client.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
}

// NewFileLogger writes text records to a size-rotated file. The returned
// closer flushes and closes the current file.
func NewFileLogger(opts FileOptions) (*SlogLogger, io.Closer) {
	w := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   false,
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return NewSlogLogger(slog.New(h)), w
}
