// Package main is the entry point for the datagen CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kiranshivaraju/synthgen/internal/cli"
	"github.com/kiranshivaraju/synthgen/internal/logging"
)

func main() {
	_ = godotenv.Load()

	// Logs go to stderr so datasets written to stdout stay clean.
	slog.SetDefault(logging.New(os.Stderr, os.Getenv("LOG_LEVEL"), "text"))

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.Run(ctx, cli.DefaultEnv(), os.Args[1:])
}
