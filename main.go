package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	os.Exit(runMain(os.Args[1:]))
}

func runMain(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	opts, err := cfg.Validate()
	if err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 1
	}

	result, err := run(ctx, afero.NewOsFs(), opts, logger)
	if err != nil {
		logger.Error("batch aborted", zap.Error(err))
		return 1
	}

	printSummary(os.Stdout, result)
	c := countOutcomes(result.Outcomes)
	logger.Info("done",
		zap.Int("visited", c.Visited),
		zap.Int("processed", c.Processed),
		zap.Int("skipped", c.Skipped),
		zap.Int("failed", c.Failed),
		zap.Bool("interrupted", result.Interrupted))

	if result.Interrupted {
		return 130
	}
	return 0
}
