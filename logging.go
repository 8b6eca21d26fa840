package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/CodedInternet/rcremote/onboard"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging builds the process logger. With a log file configured, output
// goes to stderr and to a size rotated file, which the returned closer (nil
// otherwise) flushes.
func setupLogging(cfg onboard.LogConfig, level *slog.LevelVar) (*slog.Logger, io.Closer, error) {
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, nil, err
	}

	var out io.Writer = os.Stderr
	var closer io.Closer
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotated)
		closer = rotated
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}
