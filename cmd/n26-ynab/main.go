package main

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog"

	"github.com/n26-ynab/bridge/internal/commands"
)

func main() {
	// Human readable output by default, JSON when LOG_FORMAT=json (e.g. for
	// cron runs that ship their output somewhere).
	output := io.Writer(zerolog.ConsoleWriter{Out: os.Stderr})
	if os.Getenv("LOG_FORMAT") == "json" {
		output = os.Stderr
	}
	log := zerolog.New(output).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := commands.NewRootCommand(log)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}
