package main

import (
	"log/slog"
	"os"

	"flight_replay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		// The configured logger may not exist yet when config loading fails
		basicLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		basicLogger.Error("flight_replay failed", "error", err)
		os.Exit(1)
	}
}
