package main

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/cleanup"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/runner"
)

func cleanupJobs(cfg *config.Config) ([]runner.Job, error) {
	return []runner.Job{cleanup.NewJob(cfg)}, nil
}

func cleanupCommand(ctx context.Context, args Command, console io.Writer, logger zerolog.Logger) error {
	return runOnce(ctx, args.Cleanup.Config, console, logger, cleanupJobs)
}
