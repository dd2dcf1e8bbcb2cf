package main

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/harvest"
	"github.com/stupid-simple/medialib/runner"
)

func harvestJobs(cfg *config.Config) ([]runner.Job, error) {
	return []runner.Job{harvest.NewJob(cfg)}, nil
}

func harvestCommand(ctx context.Context, args Command, console io.Writer, logger zerolog.Logger) error {
	return runOnce(ctx, args.Harvest.Config, console, logger, harvestJobs)
}
