package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"skillpulse/internal/cli"
)

func main() {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Execute logs its own failures
	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
