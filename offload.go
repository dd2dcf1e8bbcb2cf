package main

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/stupid-simple/medialib/config"
	"github.com/stupid-simple/medialib/offload"
	"github.com/stupid-simple/medialib/runner"
	"github.com/stupid-simple/medialib/s3store"
)

// offloadJobs builds one job per group; no groups means all of them.
func offloadJobs(cfg *config.Config, groups ...int) ([]runner.Job, error) {
	if err := cfg.ValidateRemoteStore(); err != nil {
		return nil, err
	}
	store, err := s3store.New(cfg.Offload.S3)
	if err != nil {
		return nil, err
	}

	if len(groups) == 0 {
		for g := range cfg.NumBackupGroups {
			groups = append(groups, g)
		}
	}
	jobs := make([]runner.Job, 0, len(groups))
	for _, g := range groups {
		jobs = append(jobs, offload.NewJob(cfg, g, store))
	}
	return jobs, nil
}

func offloadCommand(ctx context.Context, args Command, console io.Writer, logger zerolog.Logger) error {
	return runOnce(ctx, args.Offload.Config, console, logger, func(cfg *config.Config) ([]runner.Job, error) {
		if args.Offload.All {
			return offloadJobs(cfg)
		}
		return offloadJobs(cfg, args.Offload.BackupGroup)
	})
}
