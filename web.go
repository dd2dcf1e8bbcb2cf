package main

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/runner"
	"github.com/stupid-simple/medialib/transcode"
	"github.com/stupid-simple/medialib/web"
)

func webJobs(cfg *config.Config, logger zerolog.Logger) []runner.Job {
	im := transcode.NewImageMagick(cfg.ImageMagick.Command, logger)
	return []runner.Job{web.NewJob(cfg, im)}
}

func webCommand(ctx context.Context, args Command, console io.Writer, logger zerolog.Logger) error {
	return runOnce(ctx, args.PublishWww.Config, console, logger, func(cfg *config.Config) ([]runner.Job, error) {
		return webJobs(cfg, logger), nil
	})
}
