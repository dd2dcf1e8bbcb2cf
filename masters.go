package main

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/masters"
	"github.com/stupid-simple/medialib/runner"
	"github.com/stupid-simple/medialib/transcode"
)

func mastersJobs(cfg *config.Config, logger zerolog.Logger) []runner.Job {
	im := transcode.NewImageMagick(cfg.ImageMagick.Command, logger)
	return []runner.Job{masters.NewJob(cfg, im)}
}

func mastersCommand(ctx context.Context, args Command, console io.Writer, logger zerolog.Logger) error {
	return runOnce(ctx, args.PublishMasters.Config, console, logger, func(cfg *config.Config) ([]runner.Job, error) {
		return mastersJobs(cfg, logger), nil
	})
}
