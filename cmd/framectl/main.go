// Command framectl inspects, verifies and converts IGWD frame files.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"gwframe/cmd/framectl/cli"
	"gwframe/internal/logging"
)

var version = "dev"

func main() {
	// Allow all levels in the base handler; filtering is done by
	// ComponentFilterHandler so --log-level and --log can change it.
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	root := cli.New(logger, filterHandler, version)
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
