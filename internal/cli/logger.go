package cli

import (
	"io"
	"log/slog"
	"strings"

	"flight_replay/internal/config"

	"gopkg.in/natefinch/lumberjack.v2"
)

func initLogger(cfg *config.Config, stderr io.Writer) {
	var logLevel slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	// Logs go to stderr so command output on stdout stays clean.
	var w io.Writer = stderr
	if cfg.Log.File != "" {
		w = io.MultiWriter(stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}
