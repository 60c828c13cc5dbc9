package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/curvewatch/internal/batch"
	"github.com/okian/curvewatch/pkg/logger"
)

func main() {
	// logs go to stderr so stdout carries only the summary
	if err := logger.Init(logger.WithFormat(os.Getenv("CURVEWATCH_LOG_FORMAT")), logger.WithOutput(os.Stderr)); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString(os.Getenv("CURVEWATCH_LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := batch.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logger.Get().Error(ctx, "run failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}
